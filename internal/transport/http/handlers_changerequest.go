package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collecta/internal/changerequest/models"
	crservice "collecta/internal/changerequest/service"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
)

type changeRequestService interface {
	Submit(ctx context.Context, req crservice.SubmitRequest) (*models.ChangeRequest, error)
	Approve(ctx context.Context, requestID id.ChangeRequestID) error
	Reject(ctx context.Context, requestID id.ChangeRequestID, reason string) error
	Get(ctx context.Context, requestID id.ChangeRequestID) (*models.ChangeRequest, error)
	ListPending(ctx context.Context) ([]models.ChangeRequest, error)
}

type changeRequestHandler struct {
	svc    changeRequestService
	logger *slog.Logger
}

func newChangeRequestHandler(svc changeRequestService, logger *slog.Logger) *changeRequestHandler {
	return &changeRequestHandler{svc: svc, logger: logger}
}

func (h *changeRequestHandler) register(r chi.Router) {
	r.Post("/change-requests", h.handleSubmit)
	r.Get("/change-requests", h.handleListPending)
	r.Get("/change-requests/{requestID}", h.handleGet)
	r.Post("/change-requests/{requestID}/approve", h.handleApprove)
	r.Post("/change-requests/{requestID}/reject", h.handleReject)
}

type submitChangeRequest struct {
	ToCity string `json:"to_city"`
	Reason string `json:"reason"`
}

func (h *changeRequestHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitChangeRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	request, err := h.svc.Submit(r.Context(), crservice.SubmitRequest{
		ToCity: body.ToCity,
		Reason: body.Reason,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, request)
}

func (h *changeRequestHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pending)
}

func (h *changeRequestHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid change request id"))
		return
	}
	request, err := h.svc.Get(r.Context(), requestID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, request)
}

func (h *changeRequestHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid change request id"))
		return
	}
	if err := h.svc.Approve(r.Context(), requestID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *changeRequestHandler) handleReject(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseChangeRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid change request id"))
		return
	}
	var body rejectRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.svc.Reject(r.Context(), requestID, body.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
