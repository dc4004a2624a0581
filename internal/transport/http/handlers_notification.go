package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collecta/internal/notification/badge"
	"collecta/internal/notification/models"
	notifservice "collecta/internal/notification/service"
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/platform/httputil"
)

type notificationService interface {
	List(ctx context.Context, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID) error
	MarkAllRead(ctx context.Context) (int, error)
	PendingCounts(ctx context.Context) (models.PendingCounts, error)
	Refresh(ctx context.Context, limit int) (*notifservice.RefreshResult, error)
}

type badgeClearer interface {
	ClearForView(ctx context.Context, view badge.View) (*notifservice.RefreshResult, error)
}

type notificationHandler struct {
	svc    notificationService
	badges badgeClearer
	logger *slog.Logger
}

func newNotificationHandler(svc notificationService, badges badgeClearer, logger *slog.Logger) *notificationHandler {
	return &notificationHandler{svc: svc, badges: badges, logger: logger}
}

func (h *notificationHandler) register(r chi.Router) {
	r.Get("/notifications", h.handleList)
	r.Get("/notifications/counts", h.handleCounts)
	r.Get("/notifications/refresh", h.handleRefresh)
	r.Post("/notifications/read-all", h.handleMarkAllRead)
	r.Post("/notifications/{notificationID}/read", h.handleMarkRead)

	// Opening a view clears the badges that view owns.
	r.Post("/views/{view}/open", h.handleOpenView)
}

func (h *notificationHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	notes, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notes)
}

func (h *notificationHandler) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.PendingCounts(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

func (h *notificationHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.svc.Refresh(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *notificationHandler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.svc.MarkAllRead(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (h *notificationHandler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid notification id"))
		return
	}
	if err := h.svc.MarkRead(r.Context(), notificationID); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *notificationHandler) handleOpenView(w http.ResponseWriter, r *http.Request) {
	result, err := h.badges.ClearForView(r.Context(), badge.View(chi.URLParam(r, "view")))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative number")
	}
	return limit, nil
}
