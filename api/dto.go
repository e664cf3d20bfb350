/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain amounts are
  decimals; on the wire they are plain JSON numbers.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Profiles:  ProfileDTO, DeductionDTO, ProfileRequest, DeductionRequest
  Persons:   PersonDTO, TimeEntryDTO, AddPersonRequest, TimeEntryRequest,
             ClientRateRequest, DeductionToggleRequest
  Reports:   FinancialSummaryDTO, PersonSummaryDTO, PayoutEntryDTO,
             TotalsDTO, ReportDTO
  Scenarios: ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the roster service and the factory, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/workspace.go: Workspace document types (calculate endpoint)
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/factory"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
)

// =============================================================================
// PROFILES
// =============================================================================

// ProfileDTO represents a profile in API responses.
type ProfileDTO struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	BaseWorkerRate float64        `json:"base_worker_rate"`
	Deductions     []DeductionDTO `json:"deductions"`
}

// DeductionDTO represents one deduction rule.
type DeductionDTO struct {
	ID                   string  `json:"id"`
	Basis                string  `json:"basis"`
	Kind                 string  `json:"kind"`
	Value                float64 `json:"value"`
	BeneficiaryProfileID string  `json:"beneficiary_profile_id,omitempty"`
}

// ProfileRequest is the body of profile create and update.
type ProfileRequest struct {
	Name           string             `json:"name"`
	BaseWorkerRate float64            `json:"base_worker_rate"`
	Deductions     []DeductionRequest `json:"deductions"`
}

// DeductionRequest is one deduction row. Basis and kind accept the same
// aliases as workspace documents.
type DeductionRequest struct {
	ID                   string  `json:"id,omitempty"`
	Basis                string  `json:"basis"`
	Kind                 string  `json:"kind"`
	Value                float64 `json:"value"`
	BeneficiaryProfileID string  `json:"beneficiary_profile_id,omitempty"`
}

// =============================================================================
// PERSONS
// =============================================================================

// PersonDTO represents a person in API responses.
type PersonDTO struct {
	ID               string       `json:"id"`
	ProfileID        string       `json:"profile_id"`
	Name             string       `json:"name"`
	WorkerRate       float64      `json:"worker_rate"`
	ClientRate       float64      `json:"client_rate"`
	TimeEntry        TimeEntryDTO `json:"time_entry"`
	Hours            float64      `json:"hours"` // Resolved
	ActiveDeductions []string     `json:"active_deductions"`
}

// TimeEntryDTO represents a person's time entry.
type TimeEntryDTO struct {
	Start      string  `json:"start"`
	Pause      string  `json:"pause"`
	Resume     string  `json:"resume"`
	Stop       string  `json:"stop"`
	TotalHours float64 `json:"total_hours"`
}

// AddPersonRequest creates a person from a profile.
type AddPersonRequest struct {
	ProfileID string `json:"profile_id"`
}

// TimeEntryRequest sets one time entry field.
type TimeEntryRequest struct {
	Field string `json:"field"` // start, pause, resume, stop, total_hours
	Value string `json:"value"`
}

// ClientRateRequest sets the client rate.
type ClientRateRequest struct {
	ClientRate float64 `json:"client_rate"`
}

// DeductionToggleRequest activates or deactivates a deduction for a person.
type DeductionToggleRequest struct {
	Active bool `json:"active"`
}

// =============================================================================
// REPORTS
// =============================================================================

// FinancialSummaryDTO is the per-person financial summary.
type FinancialSummaryDTO struct {
	Hours                 float64 `json:"hours"`
	Cost                  float64 `json:"cost"`
	Revenue               float64 `json:"revenue"`
	GrossMargin           float64 `json:"gross_margin"`
	WageDeductionsTotal   float64 `json:"wage_deductions_total"`
	MarginDeductionsTotal float64 `json:"margin_deductions_total"`
	TotalDeductions       float64 `json:"total_deductions"`
	NetMargin             float64 `json:"net_margin"`
}

// PersonSummaryDTO is a summary labelled with its person.
type PersonSummaryDTO struct {
	PersonID  string              `json:"person_id"`
	ProfileID string              `json:"profile_id"`
	Name      string              `json:"name"`
	Summary   FinancialSummaryDTO `json:"summary"`
}

// PayoutEntryDTO is what one profile receives.
type PayoutEntryDTO struct {
	ProfileID                string  `json:"profile_id"`
	Name                     string  `json:"name"`
	OwnWage                  float64 `json:"own_wage"`
	ReceivedWageDeductions   float64 `json:"received_wage_deductions"`
	ReceivedMarginDeductions float64 `json:"received_margin_deductions"`
	Total                    float64 `json:"total"`
}

// TotalsDTO holds the workspace totals.
type TotalsDTO struct {
	ClientInvoiceTotal float64 `json:"client_invoice_total"`
	TotalDeductions    float64 `json:"total_deductions"`
}

// ReportDTO bundles summaries, payouts and totals of one computation.
type ReportDTO struct {
	Summaries []PersonSummaryDTO `json:"summaries"`
	Payouts   []PayoutEntryDTO   `json:"payouts"`
	Totals    TotalsDTO          `json:"totals"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toProfileDTO(p payout.Profile) ProfileDTO {
	dto := ProfileDTO{
		ID:             p.ID,
		Name:           p.Name,
		BaseWorkerRate: num(p.BaseWorkerRate),
		Deductions:     make([]DeductionDTO, len(p.Deductions)),
	}
	for i, d := range p.Deductions {
		dto.Deductions[i] = DeductionDTO{
			ID:                   d.ID,
			Basis:                string(d.Basis),
			Kind:                 string(d.Kind),
			Value:                num(d.Value),
			BeneficiaryProfileID: d.BeneficiaryProfileID,
		}
	}
	return dto
}

func toPersonDTO(p payout.Person) PersonDTO {
	active := p.ActiveDeductionIDs
	if active == nil {
		active = []string{}
	}
	return PersonDTO{
		ID:         p.ID,
		ProfileID:  p.ProfileID,
		Name:       p.Name,
		WorkerRate: num(p.WorkerRate),
		ClientRate: num(p.ClientRate),
		TimeEntry: TimeEntryDTO{
			Start:      p.TimeEntry.Start,
			Pause:      p.TimeEntry.Pause,
			Resume:     p.TimeEntry.Resume,
			Stop:       p.TimeEntry.Stop,
			TotalHours: num(p.TimeEntry.ManualTotalHours),
		},
		Hours:            num(payout.ResolveHours(p.TimeEntry)),
		ActiveDeductions: active,
	}
}

func toSummaryDTO(s payout.FinancialSummary) FinancialSummaryDTO {
	return FinancialSummaryDTO{
		Hours:                 num(s.Hours),
		Cost:                  num(s.Cost),
		Revenue:               num(s.Revenue),
		GrossMargin:           num(s.GrossMargin),
		WageDeductionsTotal:   num(s.WageDeductionsTotal),
		MarginDeductionsTotal: num(s.MarginDeductionsTotal),
		TotalDeductions:       num(s.TotalDeductions),
		NetMargin:             num(s.NetMargin),
	}
}

func toSummaryDTOs(summaries []payout.PersonSummary) []PersonSummaryDTO {
	dtos := make([]PersonSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = PersonSummaryDTO{
			PersonID:  s.PersonID,
			ProfileID: s.ProfileID,
			Name:      s.Name,
			Summary:   toSummaryDTO(s.Summary),
		}
	}
	return dtos
}

func toPayoutDTOs(entries []payout.PayoutEntry) []PayoutEntryDTO {
	dtos := make([]PayoutEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = PayoutEntryDTO{
			ProfileID:                e.ProfileID,
			Name:                     e.Name,
			OwnWage:                  num(e.OwnWage),
			ReceivedWageDeductions:   num(e.ReceivedWageDeductions),
			ReceivedMarginDeductions: num(e.ReceivedMarginDeductions),
			Total:                    num(e.Total),
		}
	}
	return dtos
}

func toTotalsDTO(t payout.Totals) TotalsDTO {
	return TotalsDTO{
		ClientInvoiceTotal: num(t.ClientInvoiceTotal),
		TotalDeductions:    num(t.TotalDeductions),
	}
}

func toReportDTO(r payout.Report) ReportDTO {
	return ReportDTO{
		Summaries: toSummaryDTOs(r.Summaries),
		Payouts:   toPayoutDTOs(r.Payouts),
		Totals:    toTotalsDTO(r.Totals),
	}
}

// toProfileInput parses basis and kind with the factory's aliases.
func toProfileInput(req ProfileRequest) (roster.ProfileInput, error) {
	in := roster.ProfileInput{
		Name:           req.Name,
		BaseWorkerRate: req.BaseWorkerRate,
		Deductions:     make([]roster.DeductionInput, len(req.Deductions)),
	}
	for i, d := range req.Deductions {
		basis, err := factory.ParseBasis(d.Basis)
		if err != nil {
			return roster.ProfileInput{}, err
		}
		kind, err := factory.ParseKind(d.Kind)
		if err != nil {
			return roster.ProfileInput{}, err
		}
		in.Deductions[i] = roster.DeductionInput{
			ID:                   d.ID,
			Basis:                basis,
			Kind:                 kind,
			Value:                d.Value,
			BeneficiaryProfileID: d.BeneficiaryProfileID,
		}
	}
	return in, nil
}
