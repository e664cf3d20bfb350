/*
handlers_test.go - Tests for API handlers

Tests for:
- Profile and person lifecycle through the router
- Report endpoints after edits
- Stateless calculate endpoint (JSON and YAML)
- Status codes for validation and not-found errors
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payout-engine/metrics"
	"github.com/warp/payout-engine/roster"
	"github.com/warp/payout-engine/roster/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestRouter(t *testing.T) (*chi.Mux, *Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := roster.NewService(store.NewMemory(), logger)
	h := NewHandler(svc, metrics.New(), logger)
	return NewRouter(h, []string{"http://localhost:5173"}), h
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestPersonLifecycle_ReportReflectsEdits(t *testing.T) {
	router, _ := newTestRouter(t)

	// GIVEN: an agency and a worker paying 25% of wage to it
	rec := do(t, router, http.MethodPost, "/api/profiles", ProfileRequest{Name: "Agency"})
	require.Equal(t, http.StatusCreated, rec.Code)
	agency := decode[ProfileDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/profiles", ProfileRequest{
		Name:           "Worker",
		BaseWorkerRate: 20,
		Deductions: []DeductionRequest{
			{ID: "fee", Basis: "uurloon", Kind: "percentage", Value: 25, BeneficiaryProfileID: agency.ID},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	worker := decode[ProfileDTO](t, rec)
	assert.Equal(t, "wage", worker.Deductions[0].Basis)

	rec = do(t, router, http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: worker.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	person := decode[PersonDTO](t, rec)
	assert.Equal(t, 20.0, person.WorkerRate)

	rec = do(t, router, http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: agency.ID})
	require.Equal(t, http.StatusCreated, rec.Code)

	// WHEN: the worker logs 09:00-17:00 at 40/h with the fee active
	base := "/api/persons/" + person.ID
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, base+"/time-entry", TimeEntryRequest{Field: "start", Value: "09:00"}).Code)
	rec = do(t, router, http.MethodPut, base+"/time-entry", TimeEntryRequest{Field: "stop", Value: "17:00"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8.0, decode[PersonDTO](t, rec).Hours)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPut, base+"/client-rate", ClientRateRequest{ClientRate: 40}).Code)
	rec = do(t, router, http.MethodPut, base+"/deductions/fee", DeductionToggleRequest{Active: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"fee"}, decode[PersonDTO](t, rec).ActiveDeductions)

	// THEN: summary, payouts and totals agree
	rec = do(t, router, http.MethodGet, base+"/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[FinancialSummaryDTO](t, rec)
	assert.Equal(t, 160.0, summary.Cost)
	assert.Equal(t, 320.0, summary.Revenue)
	assert.Equal(t, 40.0, summary.WageDeductionsTotal)
	assert.Equal(t, 120.0, summary.NetMargin)

	rec = do(t, router, http.MethodGet, "/api/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[ReportDTO](t, rec)
	require.Len(t, report.Summaries, 2)
	require.Len(t, report.Payouts, 2)
	assert.Equal(t, agency.ID, report.Payouts[1].ProfileID)
	assert.Equal(t, 40.0, report.Payouts[1].ReceivedWageDeductions)
	assert.Equal(t, 320.0, report.Totals.ClientInvoiceTotal)

	rec = do(t, router, http.MethodGet, "/api/report/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40.0, decode[TotalsDTO](t, rec).TotalDeductions)

	rec = do(t, router, http.MethodGet, "/api/report/payouts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PayoutEntryDTO](t, rec), 2)

	rec = do(t, router, http.MethodGet, "/api/report/summaries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, person.ID, decode[[]PersonSummaryDTO](t, rec)[0].PersonID)
}

func TestUpdateProfile_PropagatesName(t *testing.T) {
	router, _ := newTestRouter(t)
	p := decode[ProfileDTO](t, do(t, router, http.MethodPost, "/api/profiles", ProfileRequest{Name: "Junior", BaseWorkerRate: 15}))
	person := decode[PersonDTO](t, do(t, router, http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: p.ID}))

	rec := do(t, router, http.MethodPut, "/api/profiles/"+p.ID, ProfileRequest{Name: "Medior", BaseWorkerRate: 22})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/persons/"+person.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PersonDTO](t, rec)
	assert.Equal(t, "Medior", got.Name)
	assert.Equal(t, 22.0, got.WorkerRate)
}

func TestDeleteProfile_RemovesPersons(t *testing.T) {
	router, _ := newTestRouter(t)
	p := decode[ProfileDTO](t, do(t, router, http.MethodPost, "/api/profiles", ProfileRequest{Name: "Temp"}))
	do(t, router, http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: p.ID})

	rec := do(t, router, http.MethodDelete, "/api/profiles/"+p.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/persons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]PersonDTO](t, rec))
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorStatusCodes(t *testing.T) {
	router, _ := newTestRouter(t)
	p := decode[ProfileDTO](t, do(t, router, http.MethodPost, "/api/profiles", ProfileRequest{Name: "Worker"}))
	person := decode[PersonDTO](t, do(t, router, http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: p.ID}))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty profile name", http.MethodPost, "/api/profiles", ProfileRequest{Name: " "}, http.StatusBadRequest},
		{"unknown basis", http.MethodPost, "/api/profiles", ProfileRequest{Name: "x", Deductions: []DeductionRequest{{Basis: "bonus", Kind: "percentage"}}}, http.StatusBadRequest},
		{"profile not found", http.MethodGet, "/api/profiles/nope", nil, http.StatusNotFound},
		{"update missing profile", http.MethodPut, "/api/profiles/nope", ProfileRequest{Name: "x"}, http.StatusNotFound},
		{"person not found", http.MethodGet, "/api/persons/nope", nil, http.StatusNotFound},
		{"add person without profile", http.MethodPost, "/api/persons", AddPersonRequest{}, http.StatusBadRequest},
		{"add person unknown profile", http.MethodPost, "/api/persons", AddPersonRequest{ProfileID: "nope"}, http.StatusNotFound},
		{"bad clock", http.MethodPut, "/api/persons/" + person.ID + "/time-entry", TimeEntryRequest{Field: "start", Value: "9am"}, http.StatusBadRequest},
		{"unknown deduction", http.MethodPut, "/api/persons/" + person.ID + "/deductions/nope", DeductionToggleRequest{Active: true}, http.StatusNotFound},
		{"summary of missing person", http.MethodGet, "/api/persons/nope/summary", nil, http.StatusNotFound},
		{"remove missing person", http.MethodDelete, "/api/persons/nope", nil, http.StatusNotFound},
		{"unknown scenario", http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestInvalidJSONBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rec).Error)
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_JSON(t *testing.T) {
	router, h := newTestRouter(t)
	doc := `{
		"profiles": [
			{"id": "r", "name": "Recruiter"},
			{"id": "c", "name": "Coordinator"},
			{"id": "w", "name": "Worker", "base_worker_rate": 10, "deductions": [
				{"id": "a", "basis": "margin", "kind": "fixed_amount", "value": 100, "beneficiary_profile_id": "r"},
				{"id": "b", "basis": "margin", "kind": "fixed_amount", "value": 50, "beneficiary_profile_id": "c"}
			]}
		],
		"persons": [
			{"id": "p", "profile_id": "w", "client_rate": 19, "time_entry": {"total_hours": 10}, "active_deductions": ["a", "b"]},
			{"id": "pr", "profile_id": "r"},
			{"id": "pc", "profile_id": "c"}
		]
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[ReportDTO](t, rec)
	require.Len(t, report.Payouts, 3)
	assert.InDelta(t, 60.0, report.Payouts[1].ReceivedMarginDeductions, 1e-9)
	assert.InDelta(t, 30.0, report.Payouts[2].ReceivedMarginDeductions, 1e-9)

	// stateless: nothing was stored
	profiles, persons, err := h.Roster.Snapshot(req.Context())
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.Empty(t, persons)
}

func TestCalculate_YAMLAndInvalid(t *testing.T) {
	router, _ := newTestRouter(t)

	doc := "profiles:\n  - id: a\n    name: A\npersons:\n  - id: p\n    profile_id: a\n    worker_rate: 10\n    client_rate: 15\n    time_entry: {start: \"08:00\", stop: \"10:00\"}\n"
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(doc))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 30.0, decode[ReportDTO](t, rec).Totals.ClientInvoiceTotal)

	req = httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(`{"profiles": [{"name": "no id"}]}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OPERATIONAL ENDPOINTS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	do(t, router, http.MethodGet, "/api/report", nil)

	rec = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `payout_computations_total{kind="report"} 1`)
	assert.Contains(t, body, `route="/api/report`)
}
