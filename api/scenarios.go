/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built workspaces that replace the current profiles and
	persons with realistic data. Each scenario demonstrates one behavior
	of the payout engine.

AVAILABLE SCENARIOS:

	single-worker:    One wage-tier percentage fee to an agency
	rationed-margin:  Fixed margin claims larger than the margin, rationed
	agency-team:      Several persons sharing one remainder, both tiers
	overdrawn:        Wage fees that exhaust the pool

HOW SCENARIOS WORK:
 1. Read the embedded YAML workspace
 2. Convert it via the workspace factory
 3. Replace the whole workspace through the roster service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "agency-team"}

ADDING NEW SCENARIOS:
 1. Add a workspace document under scenarios/
 2. Add it to the 'scenarios' slice with ID, name, description and file

NOTE:

	Loading a scenario discards the current workspace.

SEE ALSO:
  - handlers.go: Report endpoints to inspect a loaded scenario
  - factory/workspace.go: Document format
*/
package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/payout-engine/factory"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	file string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "single-worker",
			Name:        "Single Worker",
			Description: "One worker paying a 25% wage fee to the agency",
		},
		file: "single-worker.yaml",
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "rationed-margin",
			Name:        "Rationed Margin",
			Description: "Margin claims of 100 and 50 against 90 of margin, paid 60 and 30",
		},
		file: "rationed-margin.yaml",
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "agency-team",
			Name:        "Agency Team",
			Description: "Three persons, wage fees to the owner, margin shares to lead and owner",
		},
		file: "agency-team.yaml",
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "overdrawn",
			Name:        "Overdrawn Pool",
			Description: "Wage fees larger than the margin; the margin tier pays nothing",
		},
		file: "overdrawn.yaml",
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// scenarioWorkspace parses the embedded document of a scenario.
func (h *Handler) scenarioWorkspace(s scenario) (factory.Workspace, error) {
	data, err := scenarioFS.ReadFile("scenarios/" + s.file)
	if err != nil {
		return factory.Workspace{}, fmt.Errorf("read scenario %s: %w", s.ID, err)
	}
	return h.Factory.Parse(data, factory.FormatYAML)
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	s, ok := findScenario(current)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario replaces the workspace with a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ws, err := h.scenarioWorkspace(s)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}

	ctx := r.Context()
	if err := h.Roster.Load(ctx, ws.Profiles, ws.Persons); err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = s.ID
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "scenario loaded", "scenario", s.ID, "profiles", len(ws.Profiles), "persons", len(ws.Persons))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID})
}

// ResetWorkspace clears every profile and person.
func (h *Handler) ResetWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := h.Roster.Reset(r.Context()); err != nil {
		h.writeServiceError(w, r, "Failed to reset workspace", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
