package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"collecta/internal/payment/models"
	paymentservice "collecta/internal/payment/service"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
	"collecta/pkg/requestcontext"
)

// maxReceiptBytes caps a single receipt upload.
const maxReceiptBytes = 5 << 20

const receiptURLTTL = 15 * time.Minute

type paymentService interface {
	SubmitGroup(ctx context.Context, req paymentservice.SubmitGroupRequest) (*paymentservice.Group, error)
	ApproveGroup(ctx context.Context, groupID id.PaymentGroupID) error
	RejectGroup(ctx context.Context, groupID id.PaymentGroupID, reason string) error
	AddManualEntry(ctx context.Context, req paymentservice.ManualEntryRequest) (*paymentservice.Group, error)
	GetGroup(ctx context.Context, groupID id.PaymentGroupID) (*paymentservice.Group, error)
	ListHouseholdPayments(ctx context.Context, householdID id.HouseholdID) ([]models.Payment, error)
	Balance(ctx context.Context, householdID id.HouseholdID, year int) (*models.BalanceStatement, error)
}

// receiptStore stores uploaded receipt images and signs download links.
type receiptStore interface {
	Put(ctx context.Context, name string, payload []byte) (string, error)
	SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

type paymentHandler struct {
	svc      paymentService
	receipts receiptStore
	logger   *slog.Logger
}

func newPaymentHandler(svc paymentService, receipts receiptStore, logger *slog.Logger) *paymentHandler {
	return &paymentHandler{svc: svc, receipts: receipts, logger: logger}
}

func (h *paymentHandler) register(r chi.Router) {
	r.Post("/payment-groups", h.handleSubmitGroup)
	r.Get("/payment-groups/{groupID}", h.handleGetGroup)
	r.Post("/payment-groups/{groupID}/approve", h.handleApproveGroup)
	r.Post("/payment-groups/{groupID}/reject", h.handleRejectGroup)
	r.Post("/payments/manual", h.handleManualEntry)

	r.Get("/households/{householdID}/payments", h.handleListPayments)
	r.Get("/households/{householdID}/balance", h.handleBalance)

	r.Post("/receipts", h.handleUploadReceipt)
	r.Get("/receipts/url", h.handleReceiptURL)
}

type submitGroupRequest struct {
	HouseholdID string `json:"household_id"`
	// Periods in "YYYY-MM" form, one payment per period.
	Periods              []string `json:"periods"`
	AmountPerPeriodCents int64    `json:"amount_per_period_cents"`
	ReceiptRef           string   `json:"receipt_ref"`
}

func (h *paymentHandler) handleSubmitGroup(w http.ResponseWriter, r *http.Request) {
	var body submitGroupRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	householdID, err := id.ParseHouseholdID(body.HouseholdID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}

	group, err := h.svc.SubmitGroup(r.Context(), paymentservice.SubmitGroupRequest{
		HouseholdID:     householdID,
		Periods:         body.Periods,
		AmountPerPeriod: id.Cents(body.AmountPerPeriodCents),
		ReceiptRef:      body.ReceiptRef,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, group)
}

func (h *paymentHandler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParsePaymentGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid payment group id"))
		return
	}
	group, err := h.svc.GetGroup(r.Context(), groupID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, group)
}

func (h *paymentHandler) handleApproveGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParsePaymentGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid payment group id"))
		return
	}
	if err := h.svc.ApproveGroup(r.Context(), groupID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *paymentHandler) handleRejectGroup(w http.ResponseWriter, r *http.Request) {
	groupID, err := id.ParsePaymentGroupID(chi.URLParam(r, "groupID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid payment group id"))
		return
	}
	var body rejectRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := h.svc.RejectGroup(r.Context(), groupID, body.Reason); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type manualEntryRequest struct {
	HouseholdID string `json:"household_id"`
	Period      string `json:"period"`
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

func (h *paymentHandler) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	var body manualEntryRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	householdID, err := id.ParseHouseholdID(body.HouseholdID)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}

	group, err := h.svc.AddManualEntry(r.Context(), paymentservice.ManualEntryRequest{
		HouseholdID: householdID,
		Period:      body.Period,
		Amount:      id.Cents(body.AmountCents),
		Method:      body.Method,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, group)
}

func (h *paymentHandler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "householdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}
	payments, err := h.svc.ListHouseholdPayments(r.Context(), householdID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, payments)
}

func (h *paymentHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "householdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid household id"))
		return
	}

	year := requestcontext.Now(r.Context()).Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "year must be a number"))
			return
		}
	}

	statement, err := h.svc.Balance(r.Context(), householdID, year)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statement)
}

func (h *paymentHandler) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "receipt"
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBytes+1))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload"))
		return
	}
	if len(payload) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "empty upload"))
		return
	}
	if len(payload) > maxReceiptBytes {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "receipt exceeds size limit"))
		return
	}

	ref, err := h.receipts.Put(r.Context(), name, payload)
	if err != nil {
		writeServiceError(w, r, h.logger, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store receipt"))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

func (h *paymentHandler) handleReceiptURL(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("ref")
	if ref == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "ref is required"))
		return
	}
	url, err := h.receipts.SignedURL(r.Context(), ref, receiptURLTTL)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "unknown receipt"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}
