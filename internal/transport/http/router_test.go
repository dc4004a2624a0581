package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crstore "collecta/internal/changerequest/store"
	"collecta/internal/notification/badge"
	notifstore "collecta/internal/notification/store"
	paystore "collecta/internal/payment/store"
	"collecta/internal/platform/token"
	"collecta/internal/receipts"
	"collecta/internal/registration/models"
	regstore "collecta/internal/registration/store"
	id "collecta/pkg/domain"

	crservice "collecta/internal/changerequest/service"
	notifservice "collecta/internal/notification/service"
	payservice "collecta/internal/payment/service"
	regservice "collecta/internal/registration/service"

	"collecta/pkg/testutil"
)

var testTime = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type apiFixture struct {
	router        http.Handler
	tokens        *token.Manager
	contributorID id.AccountID
	adminID       id.AccountID
	unit          *models.Unit
}

// newAPIFixture wires the full stack over memory stores: one active unit in
// springfield, its admin and one contributor account.
func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	regStore := regstore.NewMemory()

	admin, err := models.NewAccount(id.NewAccountID(), "Unit Admin", "ua@example.com", id.RoleUnitAdmin, "springfield", testTime)
	require.NoError(t, err)
	require.NoError(t, regStore.CreateAccount(ctx, admin, &models.AdminProfile{
		AccountID: admin.ID, City: "springfield", Status: models.StatusPending, UpdatedAt: testTime,
	}))
	require.NoError(t, regStore.ActivateAccount(ctx, admin.ID, id.RoleUnitAdmin, testTime))

	contributor, err := models.NewAccount(id.NewAccountID(), "Jordan Lee", "jordan@example.com", id.RoleContributor, "", testTime)
	require.NoError(t, err)
	require.NoError(t, regStore.CreateAccount(ctx, contributor, nil))
	require.NoError(t, regStore.ActivateAccount(ctx, contributor.ID, id.RoleContributor, testTime))

	unit, err := models.NewUnit(id.NewUnitID(), "North Unit", "springfield", admin.ID, 12000, testTime)
	require.NoError(t, err)
	require.NoError(t, regStore.CreateUnit(ctx, unit))
	require.NoError(t, regStore.ActivateUnit(ctx, unit.ID, testTime))

	notifSvc := notifservice.New(notifstore.NewMemory(), notifservice.WithLogger(logger))
	regSvc := regservice.New(regStore, regservice.WithNotifier(notifSvc), regservice.WithLogger(logger))
	paySvc := payservice.New(paystore.NewMemory(), regStore, payservice.WithNotifier(notifSvc), payservice.WithLogger(logger))
	crSvc := crservice.New(crstore.NewMemory(), regStore, regStore, crservice.WithNotifier(notifSvc), crservice.WithLogger(logger))

	tokens := token.NewManager("router-test-key")
	router := NewRouter(Services{
		Registration:   regSvc,
		Payments:       paySvc,
		ChangeRequests: crSvc,
		Notifications:  notifSvc,
		Badges:         badge.NewClearer(notifSvc),
		Receipts:       receipts.NewMemory(),
	}, tokens, regStore, logger)

	return &apiFixture{
		router:        router,
		tokens:        tokens,
		contributorID: contributor.ID,
		adminID:       admin.ID,
		unit:          unit,
	}
}

func (f *apiFixture) do(t *testing.T, accountID id.AccountID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewJSONRequest(t, method, path, body)
	signed, err := f.tokens.Issue(accountID, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	return testutil.DoRequest(f.router, req)
}

func TestHealthzIsOpen(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHouseholdLifecycleOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, f.contributorID, http.MethodPost, "/api/v1/households", map[string]any{
		"unit_id":   f.unit.ID.String(),
		"head_name": "Jordan Lee",
		"contact":   "jordan@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var household models.Household
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &household))
	assert.Equal(t, models.StatusPending, household.Status)

	// The unit admin sees the approval request in their feed.
	w = f.do(t, f.adminID, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var feed []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	assert.Len(t, feed, 1)

	w = f.do(t, f.adminID, http.MethodPost, fmt.Sprintf("/api/v1/households/%s/approve", household.ID), nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, f.adminID, http.MethodGet, fmt.Sprintf("/api/v1/households/%s", household.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &household))
	assert.Equal(t, models.StatusActive, household.Status)
}

func TestSubmitPaymentGroupValidatesHouseholdID(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, f.contributorID, http.MethodPost, "/api/v1/payment-groups", map[string]any{
		"household_id": "not-a-uuid",
		"periods":      []string{"2026-03"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	testutil.AssertErrorCode(t, w, "validation_error")
}

func TestRejectionEndpointsDemandReason(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, f.contributorID, http.MethodPost, "/api/v1/households", map[string]any{
		"unit_id":   f.unit.ID.String(),
		"head_name": "Jordan Lee",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var household models.Household
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &household))

	w = f.do(t, f.adminID, http.MethodPost, fmt.Sprintf("/api/v1/households/%s/reject", household.ID), map[string]any{
		"reason": "",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiptUploadRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/receipts?name=march.png", bytes.NewReader([]byte("receipt-bytes")))
	signed, err := f.tokens.Issue(f.contributorID, time.Now())
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	require.NotEmpty(t, uploaded["ref"])

	w = f.do(t, f.contributorID, http.MethodGet, "/api/v1/receipts/url?ref="+uploaded["ref"], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var link map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Contains(t, link["url"], uploaded["ref"])
}

func TestOpenViewRejectsUnknownView(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, f.adminID, http.MethodPost, "/api/v1/views/bogus/open", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
