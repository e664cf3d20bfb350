/*
Package factory provides workspace document to Go conversion.

PURPOSE:
  Converts JSON or YAML workspace documents into payout.Profile and
  payout.Person records, and back. A workspace can be defined in a file
  and loaded by the CLI, posted to the calculate endpoint, or embedded as
  a demo scenario, without code changes.

DOCUMENT SCHEMA (YAML shown, JSON uses the same keys):
  profiles:
    - id: agency
      name: Agency
      base_worker_rate: 0
    - id: worker
      name: Worker
      base_worker_rate: 20
      deductions:
        - id: fee
          basis: wage            # wage | margin  (uurloon | marge)
          kind: percentage       # percentage | fixed_amount  (vastbedrag)
          value: 25
          beneficiary_profile_id: agency
  persons:
    - id: p1
      profile_id: worker
      client_rate: 40
      time_entry: {start: "09:00", stop: "17:00"}
      active_deductions: [fee]

DEFAULTS:
  - A person without a name takes the profile's name
  - A person without worker_rate takes the profile's base_worker_rate

COERCION:
  Negative numbers become 0. Every other problem (missing or duplicate
  ids, unknown basis or kind, percentages over 100, a profile that is its
  own beneficiary) is reported as ErrInvalidDocument.

USAGE:
  f := factory.NewWorkspaceFactory()
  ws, err := f.ParseFile("workspace.yaml")
  report := payout.BuildReport(ws.Persons, ws.Profiles)

SEE ALSO:
  - payout/types.go: Domain records
  - api/scenarios.go: Embedded demo workspaces
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/payout-engine/payout"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDocument is returned for documents that cannot be converted.
var ErrInvalidDocument = errors.New("invalid workspace document")

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// WorkspaceJSON is the document representation of a workspace.
type WorkspaceJSON struct {
	Profiles []ProfileJSON `json:"profiles" yaml:"profiles"`
	Persons  []PersonJSON  `json:"persons" yaml:"persons"`
}

// ProfileJSON represents a profile.
type ProfileJSON struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	BaseWorkerRate float64         `json:"base_worker_rate" yaml:"base_worker_rate"`
	Deductions     []DeductionJSON `json:"deductions,omitempty" yaml:"deductions,omitempty"`
}

// DeductionJSON represents one deduction rule of a profile.
type DeductionJSON struct {
	ID                   string  `json:"id" yaml:"id"`
	Basis                string  `json:"basis" yaml:"basis"`
	Kind                 string  `json:"kind" yaml:"kind"`
	Value                float64 `json:"value" yaml:"value"`
	BeneficiaryProfileID string  `json:"beneficiary_profile_id,omitempty" yaml:"beneficiary_profile_id,omitempty"`
}

// PersonJSON represents a person.
type PersonJSON struct {
	ID               string        `json:"id" yaml:"id"`
	ProfileID        string        `json:"profile_id" yaml:"profile_id"`
	Name             string        `json:"name,omitempty" yaml:"name,omitempty"`
	WorkerRate       *float64      `json:"worker_rate,omitempty" yaml:"worker_rate,omitempty"` // Defaults to the profile's base rate
	ClientRate       float64       `json:"client_rate" yaml:"client_rate"`
	TimeEntry        TimeEntryJSON `json:"time_entry" yaml:"time_entry"`
	ActiveDeductions []string      `json:"active_deductions,omitempty" yaml:"active_deductions,omitempty"`
}

// TimeEntryJSON represents a time entry. Clock values are "HH:MM" or "HH:MM:SS".
type TimeEntryJSON struct {
	Start      string  `json:"start,omitempty" yaml:"start,omitempty"`
	Pause      string  `json:"pause,omitempty" yaml:"pause,omitempty"`
	Resume     string  `json:"resume,omitempty" yaml:"resume,omitempty"`
	Stop       string  `json:"stop,omitempty" yaml:"stop,omitempty"`
	TotalHours float64 `json:"total_hours,omitempty" yaml:"total_hours,omitempty"`
}

// Workspace holds converted domain records in document order.
type Workspace struct {
	Profiles []payout.Profile
	Persons  []payout.Person
}

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format by file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// =============================================================================
// WORKSPACE FACTORY
// =============================================================================

// WorkspaceFactory converts workspace documents to domain records.
type WorkspaceFactory struct{}

// NewWorkspaceFactory creates a new workspace factory.
func NewWorkspaceFactory() *WorkspaceFactory {
	return &WorkspaceFactory{}
}

// ParseFile reads and parses a workspace file.
func (f *WorkspaceFactory) ParseFile(path string) (Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Workspace{}, fmt.Errorf("read workspace: %w", err)
	}
	return f.Parse(data, FormatFromPath(path))
}

// Parse decodes a document in the given format and converts it.
func (f *WorkspaceFactory) Parse(data []byte, format Format) (Workspace, error) {
	wj, err := f.Decode(data, format)
	if err != nil {
		return Workspace{}, err
	}
	return f.FromJSON(wj)
}

// Decode decodes a document without converting it. Unknown fields are
// rejected so typos in keys do not silently become zeros.
func (f *WorkspaceFactory) Decode(data []byte, format Format) (WorkspaceJSON, error) {
	var wj WorkspaceJSON
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&wj); err != nil {
			return WorkspaceJSON{}, fmt.Errorf("%w: parse yaml: %v", ErrInvalidDocument, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&wj); err != nil {
			return WorkspaceJSON{}, fmt.Errorf("%w: parse json: %v", ErrInvalidDocument, err)
		}
	default:
		return WorkspaceJSON{}, fmt.Errorf("%w: unknown format %q", ErrInvalidDocument, format)
	}
	return wj, nil
}

// FromJSON validates a decoded document and converts it to domain records.
func (f *WorkspaceFactory) FromJSON(wj WorkspaceJSON) (Workspace, error) {
	ws := Workspace{
		Profiles: make([]payout.Profile, 0, len(wj.Profiles)),
		Persons:  make([]payout.Person, 0, len(wj.Persons)),
	}

	byID := make(map[string]payout.Profile, len(wj.Profiles))
	for i, pj := range wj.Profiles {
		p, err := f.ProfileFromJSON(pj)
		if err != nil {
			return Workspace{}, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if _, dup := byID[p.ID]; dup {
			return Workspace{}, fmt.Errorf("%w: duplicate profile id %q", ErrInvalidDocument, p.ID)
		}
		byID[p.ID] = p
		ws.Profiles = append(ws.Profiles, p)
	}

	seen := make(map[string]bool, len(wj.Persons))
	for i, pj := range wj.Persons {
		if strings.TrimSpace(pj.ID) == "" {
			return Workspace{}, fmt.Errorf("%w: persons[%d]: id is required", ErrInvalidDocument, i)
		}
		if seen[pj.ID] {
			return Workspace{}, fmt.Errorf("%w: duplicate person id %q", ErrInvalidDocument, pj.ID)
		}
		seen[pj.ID] = true

		profile, ok := byID[pj.ProfileID]
		ws.Persons = append(ws.Persons, personFromJSON(pj, profile, ok))
	}

	return ws, nil
}

// ProfileFromJSON converts and validates a single profile.
func (f *WorkspaceFactory) ProfileFromJSON(pj ProfileJSON) (payout.Profile, error) {
	if strings.TrimSpace(pj.ID) == "" {
		return payout.Profile{}, fmt.Errorf("%w: profile id is required", ErrInvalidDocument)
	}

	p := payout.Profile{
		ID:             pj.ID,
		Name:           strings.TrimSpace(pj.Name),
		BaseWorkerRate: payout.NonNegative(pj.BaseWorkerRate),
		Deductions:     make([]payout.Deduction, 0, len(pj.Deductions)),
	}

	seen := make(map[string]bool, len(pj.Deductions))
	for i, dj := range pj.Deductions {
		d, err := deductionFromJSON(dj)
		if err != nil {
			return payout.Profile{}, fmt.Errorf("profile %q deductions[%d]: %w", pj.ID, i, err)
		}
		if seen[d.ID] {
			return payout.Profile{}, fmt.Errorf("%w: profile %q: duplicate deduction id %q", ErrInvalidDocument, pj.ID, d.ID)
		}
		if d.BeneficiaryProfileID == p.ID {
			return payout.Profile{}, fmt.Errorf("%w: profile %q is its own beneficiary", ErrInvalidDocument, pj.ID)
		}
		seen[d.ID] = true
		p.Deductions = append(p.Deductions, d)
	}
	return p, nil
}

func deductionFromJSON(dj DeductionJSON) (payout.Deduction, error) {
	if strings.TrimSpace(dj.ID) == "" {
		return payout.Deduction{}, fmt.Errorf("%w: deduction id is required", ErrInvalidDocument)
	}
	basis, err := ParseBasis(dj.Basis)
	if err != nil {
		return payout.Deduction{}, err
	}
	kind, err := ParseKind(dj.Kind)
	if err != nil {
		return payout.Deduction{}, err
	}

	value := payout.NonNegative(dj.Value)
	if kind == payout.KindPercentage && value.GreaterThan(payout.FromFloat(100)) {
		return payout.Deduction{}, fmt.Errorf("%w: percentage %s exceeds 100", ErrInvalidDocument, value)
	}

	return payout.Deduction{
		ID:                   dj.ID,
		Basis:                basis,
		Kind:                 kind,
		Value:                value,
		BeneficiaryProfileID: dj.BeneficiaryProfileID,
	}, nil
}

// personFromJSON fills name and worker rate from the profile when the
// document leaves them out. A person whose profile is unknown is kept as
// is; the engine treats it as having no deductions.
func personFromJSON(pj PersonJSON, profile payout.Profile, known bool) payout.Person {
	p := payout.Person{
		ID:         pj.ID,
		ProfileID:  pj.ProfileID,
		Name:       strings.TrimSpace(pj.Name),
		WorkerRate: payout.FromFloat(0),
		ClientRate: payout.NonNegative(pj.ClientRate),
		TimeEntry: payout.TimeEntry{
			Start:            pj.TimeEntry.Start,
			Pause:            pj.TimeEntry.Pause,
			Resume:           pj.TimeEntry.Resume,
			Stop:             pj.TimeEntry.Stop,
			ManualTotalHours: payout.NonNegative(pj.TimeEntry.TotalHours),
		},
		ActiveDeductionIDs: dedupe(pj.ActiveDeductions),
	}

	if p.Name == "" && known {
		p.Name = profile.Name
	}
	switch {
	case pj.WorkerRate != nil:
		p.WorkerRate = payout.NonNegative(*pj.WorkerRate)
	case known:
		p.WorkerRate = profile.BaseWorkerRate
	}
	return p
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ToJSON converts domain records back to a document.
func (f *WorkspaceFactory) ToJSON(profiles []payout.Profile, persons []payout.Person) WorkspaceJSON {
	wj := WorkspaceJSON{
		Profiles: make([]ProfileJSON, 0, len(profiles)),
		Persons:  make([]PersonJSON, 0, len(persons)),
	}

	for _, p := range profiles {
		pj := ProfileJSON{
			ID:             p.ID,
			Name:           p.Name,
			BaseWorkerRate: p.BaseWorkerRate.InexactFloat64(),
		}
		for _, d := range p.Deductions {
			pj.Deductions = append(pj.Deductions, DeductionJSON{
				ID:                   d.ID,
				Basis:                string(d.Basis),
				Kind:                 string(d.Kind),
				Value:                d.Value.InexactFloat64(),
				BeneficiaryProfileID: d.BeneficiaryProfileID,
			})
		}
		wj.Profiles = append(wj.Profiles, pj)
	}

	for _, p := range persons {
		rate := p.WorkerRate.InexactFloat64()
		wj.Persons = append(wj.Persons, PersonJSON{
			ID:         p.ID,
			ProfileID:  p.ProfileID,
			Name:       p.Name,
			WorkerRate: &rate,
			ClientRate: p.ClientRate.InexactFloat64(),
			TimeEntry: TimeEntryJSON{
				Start:      p.TimeEntry.Start,
				Pause:      p.TimeEntry.Pause,
				Resume:     p.TimeEntry.Resume,
				Stop:       p.TimeEntry.Stop,
				TotalHours: p.TimeEntry.ManualTotalHours.InexactFloat64(),
			},
			ActiveDeductions: append([]string(nil), p.ActiveDeductionIDs...),
		})
	}

	return wj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

// ParseBasis accepts the canonical basis names and their Dutch aliases.
func ParseBasis(s string) (payout.Basis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wage", "uurloon":
		return payout.BasisWage, nil
	case "margin", "marge":
		return payout.BasisMargin, nil
	default:
		return "", fmt.Errorf("%w: unknown basis %q", ErrInvalidDocument, s)
	}
}

// ParseKind accepts the canonical kind names and their Dutch aliases.
func ParseKind(s string) (payout.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage":
		return payout.KindPercentage, nil
	case "fixed_amount", "fixed", "vastbedrag":
		return payout.KindFixedAmount, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidDocument, s)
	}
}
