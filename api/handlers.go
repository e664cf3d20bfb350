/*
handlers.go - HTTP API handlers for the payout engine

PURPOSE:
  Exposes profile and person management and the payout engine via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the roster service and the payout package.

ENDPOINTS:
  Profiles:
    GET    /api/profiles                       List profiles
    POST   /api/profiles                       Create profile
    GET    /api/profiles/{id}                  Get profile
    PUT    /api/profiles/{id}                  Update profile (propagates to persons)
    DELETE /api/profiles/{id}                  Delete profile and its persons

  Persons:
    GET    /api/persons                        List persons
    POST   /api/persons                        Add person from profile
    GET    /api/persons/{id}                   Get person
    DELETE /api/persons/{id}                   Remove person
    PUT    /api/persons/{id}/time-entry        Set one time entry field
    PUT    /api/persons/{id}/client-rate       Set client rate
    PUT    /api/persons/{id}/deductions/{did}  Toggle a deduction
    GET    /api/persons/{id}/summary           Financial summary

  Reports:
    GET    /api/report                         Summaries, payouts and totals
    GET    /api/report/summaries
    GET    /api/report/payouts
    GET    /api/report/totals
    POST   /api/calculate                      Report for a posted workspace (stateless)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Profile, person or deduction not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/metrics"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
)

// maxDocumentBytes bounds the body of the calculate endpoint.
const maxDocumentBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Roster  *roster.Service
	Factory *factory.WorkspaceFactory
	Metrics *metrics.Metrics

	logger *slog.Logger

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler over the given roster service.
func NewHandler(svc *roster.Service, m *metrics.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Handler{
		Roster:  svc,
		Factory: factory.NewWorkspaceFactory(),
		Metrics: m,
		logger:  logger.With("component", "api"),
	}
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns all profiles in insertion order.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Roster.ListProfiles(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list profiles", err)
		return
	}

	dtos := make([]ProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProfile returns a single profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Roster.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// CreateProfile creates a profile.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := toProfileInput(req)
	if err != nil {
		h.writeServiceError(w, r, "Invalid profile", err)
		return
	}

	p, err := h.Roster.CreateProfile(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProfileDTO(p))
}

// UpdateProfile replaces a profile. Persons bound to it pick up the new
// name and worker rate.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := toProfileInput(req)
	if err != nil {
		h.writeServiceError(w, r, "Invalid profile", err)
		return
	}

	p, err := h.Roster.UpdateProfile(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update profile", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// DeleteProfile removes a profile and every person bound to it.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := h.Roster.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, "Failed to delete profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PERSON HANDLERS
// =============================================================================

// ListPersons returns all persons in insertion order.
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	persons, err := h.Roster.ListPersons(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to list persons", err)
		return
	}

	dtos := make([]PersonDTO, len(persons))
	for i, p := range persons {
		dtos[i] = toPersonDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPerson returns a single person.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.Roster.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to get person", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// AddPerson creates a person from a profile.
func (h *Handler) AddPerson(w http.ResponseWriter, r *http.Request) {
	var req AddPersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profile_id is required", nil)
		return
	}

	p, err := h.Roster.AddPerson(r.Context(), req.ProfileID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to add person", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(p))
}

// RemovePerson deletes a person.
func (h *Handler) RemovePerson(w http.ResponseWriter, r *http.Request) {
	if err := h.Roster.RemovePerson(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, "Failed to remove person", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateTimeEntry sets one field of a person's time entry.
func (h *Handler) UpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var req TimeEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Roster.UpdateTimeEntry(r.Context(), chi.URLParam(r, "id"), roster.TimeField(req.Field), req.Value)
	if err != nil {
		h.writeServiceError(w, r, "Failed to update time entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// SetClientRate sets a person's client rate.
func (h *Handler) SetClientRate(w http.ResponseWriter, r *http.Request) {
	var req ClientRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Roster.SetClientRate(r.Context(), chi.URLParam(r, "id"), req.ClientRate)
	if err != nil {
		h.writeServiceError(w, r, "Failed to set client rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// SetDeductionActive toggles one deduction of the person's profile.
func (h *Handler) SetDeductionActive(w http.ResponseWriter, r *http.Request) {
	var req DeductionToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Roster.SetDeductionActive(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "deductionID"), req.Active)
	if err != nil {
		h.writeServiceError(w, r, "Failed to toggle deduction", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// GetSummary returns the financial summary of one person.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Roster.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute summary", err)
		return
	}
	h.Metrics.ObserveComputation(metrics.KindSummary)
	writeJSON(w, http.StatusOK, toSummaryDTO(s))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport recomputes summaries, payouts and totals.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r, metrics.KindReport)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// GetSummaries returns the per-person summaries only.
func (h *Handler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r, metrics.KindSummary)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTOs(report.Summaries))
}

// GetPayouts returns the payout distribution only.
func (h *Handler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r, metrics.KindDistribution)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTOs(report.Payouts))
}

// GetTotals returns the workspace totals only.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	report, ok := h.report(w, r, metrics.KindTotals)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(report.Totals))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request, kind string) (payout.Report, bool) {
	report, err := h.Roster.Report(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "Failed to compute report", err)
		return payout.Report{}, false
	}
	h.Metrics.ObserveReport(kind, report)
	return report, true
}

// Calculate computes a report for the workspace in the request body without
// touching stored data. YAML is accepted when the content type says so.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Workspace too large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	format := factory.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = factory.FormatYAML
	}

	ws, err := h.Factory.Parse(body, format)
	if err != nil {
		h.writeServiceError(w, r, "Invalid workspace", err)
		return
	}

	report := payout.BuildReport(ws.Persons, ws.Profiles)
	h.Metrics.ObserveReport(metrics.KindCalculate, report)
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// Health reports that the server is up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError picks the status code from the error chain.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, roster.ErrProfileNotFound),
		errors.Is(err, roster.ErrPersonNotFound),
		errors.Is(err, roster.ErrDeductionNotFound):
		return http.StatusNotFound
	case errors.Is(err, roster.ErrInvalidProfile),
		errors.Is(err, roster.ErrInvalidPerson),
		errors.Is(err, factory.ErrInvalidDocument):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
