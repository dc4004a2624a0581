// Package httptransport is the thin HTTP layer. Handlers decode requests,
// delegate to domain services and encode responses; business rules stay in
// the services.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"collecta/internal/platform/middleware"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
	"collecta/pkg/requestcontext"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Registration   registrationService
	Payments       paymentService
	ChangeRequests changeRequestService
	Notifications  notificationService
	Badges         badgeClearer
	Receipts       receiptStore
}

// NewRouter wires middleware and every domain handler. Everything under
// /api/v1 requires a valid bearer token; /healthz and /metrics stay open for
// the infrastructure.
func NewRouter(svc Services, validator middleware.TokenValidator, resolver middleware.AccountResolver, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(validator, resolver, logger))
		newRegistrationHandler(svc.Registration, logger).register(api)
		newPaymentHandler(svc.Payments, svc.Receipts, logger).register(api)
		newChangeRequestHandler(svc.ChangeRequests, logger).register(api)
		newNotificationHandler(svc.Notifications, svc.Badges, logger).register(api)
	})

	return r
}

// writeServiceError logs server-side failures with the request id and hands
// the translation to the shared envelope writer. Client-caused errors pass
// through silently; the access log already records them.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable || code == dErrors.CodePartialFailure {
		logger.ErrorContext(ctx, "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
}

// rejectRequest is the shared body for every rejection endpoint.
type rejectRequest struct {
	Reason string `json:"reason"`
}
