// Package events defines the domain event stream. Every successful mutation
// appends one event to the transactional outbox in the same transaction as
// its writes; the outbox worker publishes them to Kafka at least once.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names a state transition the rest of the platform may react to.
type Kind string

const (
	KindHouseholdSubmitted Kind = "household.submitted"
	KindHouseholdApproved  Kind = "household.approved"
	KindHouseholdRejected  Kind = "household.rejected"

	KindUnitSubmitted Kind = "unit.submitted"
	KindUnitApproved  Kind = "unit.approved"
	KindUnitRejected  Kind = "unit.rejected"

	KindAdminSubmitted Kind = "admin.submitted"
	KindAdminApproved  Kind = "admin.approved"
	KindAdminRejected  Kind = "admin.rejected"

	KindPaymentGroupSubmitted Kind = "payment_group.submitted"
	KindPaymentGroupApproved  Kind = "payment_group.approved"
	KindPaymentGroupRejected  Kind = "payment_group.rejected"
	KindManualEntryAdded      Kind = "payment_group.manual_entry"

	KindChangeRequestSubmitted Kind = "change_request.submitted"
	KindChangeRequestApproved  Kind = "change_request.approved"
	KindChangeRequestRejected  Kind = "change_request.rejected"
)

// Event is one outbox row. SubjectID is the primary key of the mutated
// aggregate; Payload carries kind-specific detail.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	SubjectID  string          `json:"subject_id"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Store appends events to the outbox. Implementations must join a
// transaction carried in ctx so the event commits with the mutation.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what services depend on to emit events.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills defaults and appends the event to the outbox.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return p.store.Append(ctx, event)
}

// Recorder is an in-memory Store for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Append(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Kinds lists the recorded kinds in order, for terse assertions.
func (r *Recorder) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Events))
	for _, e := range r.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
