// Package metrics registers the Prometheus instruments the services
// increment. One Metrics value satisfies every service's Metrics interface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	registrationsSubmitted *prometheus.CounterVec
	registrationsResolved  *prometheus.CounterVec
	paymentGroupsSubmitted prometheus.Counter
	paymentPeriods         prometheus.Counter
	paymentGroupsResolved  *prometheus.CounterVec
	manualEntries          prometheus.Counter
	changeRequestsOpen     prometheus.Counter
	changeRequestsResolved *prometheus.CounterVec
	notificationsEmitted   *prometheus.CounterVec
}

// New registers all instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registrationsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collecta_registrations_submitted_total",
			Help: "Registration requests submitted, by kind.",
		}, []string{"kind"}),
		registrationsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collecta_registrations_resolved_total",
			Help: "Registration requests resolved, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		paymentGroupsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "collecta_payment_groups_submitted_total",
			Help: "Payment groups submitted.",
		}),
		paymentPeriods: factory.NewCounter(prometheus.CounterOpts{
			Name: "collecta_payment_periods_submitted_total",
			Help: "Periods covered by submitted payment groups.",
		}),
		paymentGroupsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collecta_payment_groups_resolved_total",
			Help: "Payment groups resolved, by outcome.",
		}, []string{"outcome"}),
		manualEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "collecta_manual_entries_total",
			Help: "Manual payment entries recorded by unit admins.",
		}),
		changeRequestsOpen: factory.NewCounter(prometheus.CounterOpts{
			Name: "collecta_change_requests_submitted_total",
			Help: "Scope change requests submitted.",
		}),
		changeRequestsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collecta_change_requests_resolved_total",
			Help: "Scope change requests resolved, by outcome.",
		}, []string{"outcome"}),
		notificationsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collecta_notifications_emitted_total",
			Help: "Notifications created, by source kind.",
		}, []string{"source_kind"}),
	}
}

func (m *Metrics) RegistrationSubmitted(kind string) {
	m.registrationsSubmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) RegistrationResolved(kind, outcome string) {
	m.registrationsResolved.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) PaymentGroupSubmitted(periods int) {
	m.paymentGroupsSubmitted.Inc()
	m.paymentPeriods.Add(float64(periods))
}

func (m *Metrics) PaymentGroupResolved(outcome string) {
	m.paymentGroupsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ManualEntryAdded() {
	m.manualEntries.Inc()
}

func (m *Metrics) ChangeRequestSubmitted() {
	m.changeRequestsOpen.Inc()
}

func (m *Metrics) ChangeRequestResolved(outcome string) {
	m.changeRequestsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotificationsEmitted(kind string, n int) {
	m.notificationsEmitted.WithLabelValues(kind).Add(float64(n))
}
