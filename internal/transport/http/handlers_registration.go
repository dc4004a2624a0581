package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collecta/internal/registration/models"
	regservice "collecta/internal/registration/service"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
)

// registrationService is the slice of the registration service the HTTP
// layer needs.
type registrationService interface {
	SubmitHousehold(ctx context.Context, req regservice.SubmitHouseholdRequest) (*models.Household, error)
	ApproveHousehold(ctx context.Context, householdID id.HouseholdID) error
	RejectHousehold(ctx context.Context, householdID id.HouseholdID, reason string) error
	GetHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)

	SubmitUnit(ctx context.Context, req regservice.SubmitUnitRequest) (*models.Unit, error)
	ApproveUnit(ctx context.Context, unitID id.UnitID) error
	RejectUnit(ctx context.Context, unitID id.UnitID, reason string) error
	GetUnit(ctx context.Context, unitID id.UnitID) (*models.Unit, error)

	SubmitAdmin(ctx context.Context, req regservice.SubmitAdminRequest) (*models.Account, error)
	ApproveAdmin(ctx context.Context, accountID id.AccountID) error
	RejectAdmin(ctx context.Context, accountID id.AccountID, reason string) error
}

type registrationHandler struct {
	svc    registrationService
	logger *slog.Logger
}

func newRegistrationHandler(svc registrationService, logger *slog.Logger) *registrationHandler {
	return &registrationHandler{svc: svc, logger: logger}
}

func (h *registrationHandler) register(r chi.Router) {
	r.Post("/households", h.handleSubmitHousehold)
	r.Get("/households/{householdID}", h.handleGetHousehold)
	r.Post("/households/{householdID}/approve", h.handleApproveHousehold)
	r.Post("/households/{householdID}/reject", h.handleRejectHousehold)

	r.Post("/units", h.handleSubmitUnit)
	r.Get("/units/{unitID}", h.handleGetUnit)
	r.Post("/units/{unitID}/approve", h.handleApproveUnit)
	r.Post("/units/{unitID}/reject", h.handleRejectUnit)

	r.Post("/admins", h.handleSubmitAdmin)
	r.Post("/admins/{accountID}/approve", h.handleApproveAdmin)
	r.Post("/admins/{accountID}/reject", h.handleRejectAdmin)
}

type submitHouseholdRequest struct {
	UnitID      string `json:"unit_id"`
	HeadName    string `json:"head_name"`
	Contact     string `json:"contact"`
	AnnualCents int64  `json:"annual_cents"`
}

func (h *registrationHandler) handleSubmitHousehold(w http.ResponseWriter, r *http.Request) {
	var body submitHouseholdRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	unitID, err := id.ParseUnitID(body.UnitID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid unit id"))
		return
	}

	household, err := h.svc.SubmitHousehold(r.Context(), regservice.SubmitHouseholdRequest{
		UnitID:   unitID,
		HeadName: body.HeadName,
		Contact:  body.Contact,
		Annual:   id.Cents(body.AnnualCents),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, household)
}

func (h *registrationHandler) handleGetHousehold(w http.ResponseWriter, r *http.Request) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "householdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}
	household, err := h.svc.GetHousehold(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, household)
}

func (h *registrationHandler) handleApproveHousehold(w http.ResponseWriter, r *http.Request) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "householdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}
	if err := h.svc.ApproveHousehold(r.Context(), householdID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *registrationHandler) handleRejectHousehold(w http.ResponseWriter, r *http.Request) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "householdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}
	var body rejectRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.svc.RejectHousehold(r.Context(), householdID, body.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitUnitRequest struct {
	Name               string `json:"name"`
	City               string `json:"city"`
	DefaultAnnualCents int64  `json:"default_annual_cents"`
}

func (h *registrationHandler) handleSubmitUnit(w http.ResponseWriter, r *http.Request) {
	var body submitUnitRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	unit, err := h.svc.SubmitUnit(r.Context(), regservice.SubmitUnitRequest{
		Name:          body.Name,
		City:          body.City,
		DefaultAnnual: id.Cents(body.DefaultAnnualCents),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, unit)
}

func (h *registrationHandler) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "unitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid unit id"))
		return
	}
	unit, err := h.svc.GetUnit(r.Context(), unitID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, unit)
}

func (h *registrationHandler) handleApproveUnit(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "unitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid unit id"))
		return
	}
	if err := h.svc.ApproveUnit(r.Context(), unitID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *registrationHandler) handleRejectUnit(w http.ResponseWriter, r *http.Request) {
	unitID, err := id.ParseUnitID(chi.URLParam(r, "unitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid unit id"))
		return
	}
	var body rejectRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.svc.RejectUnit(r.Context(), unitID, body.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitAdminRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	City    string `json:"city"`
	Role    string `json:"role"`
}

func (h *registrationHandler) handleSubmitAdmin(w http.ResponseWriter, r *http.Request) {
	var body submitAdminRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	role, err := id.ParseRole(body.Role)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid role"))
		return
	}
	account, err := h.svc.SubmitAdmin(r.Context(), regservice.SubmitAdminRequest{
		Name:    body.Name,
		Contact: body.Contact,
		City:    body.City,
		Role:    role,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, account)
}

func (h *registrationHandler) handleApproveAdmin(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid account id"))
		return
	}
	if err := h.svc.ApproveAdmin(r.Context(), accountID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *registrationHandler) handleRejectAdmin(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid account id"))
		return
	}
	var body rejectRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.svc.RejectAdmin(r.Context(), accountID, body.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
