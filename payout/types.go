/*
Package payout provides the margin calculation and payout distribution engine.

PURPOSE:
  People work hours under a rate template (a Profile). For each person the
  engine computes what the client is billed, what the worker is paid and
  the margin in between. Profiles carry deduction rules that route part of
  that wage or margin to another profile. The engine settles those rules
  per person and, across all persons, distributes the shared margin pool to
  the beneficiary profiles.

KEY CONCEPTS IN THIS FILE (types.go):
  - Profile: reusable rate template with an ordered list of deductions
  - Deduction: routes a percentage or fixed amount to a beneficiary profile
  - Person: one instance of work bound to a profile
  - TimeEntry: clock times plus a manual hours override
  - FinancialSummary, PayoutEntry, Totals: derived results, never stored

TWO TIERS:
  Wage tier:   computed against the person's own cost, settled first
  Margin tier: computed against what is left of the margin afterwards,
               rationed proportionally when the pool runs short

DESIGN PRINCIPLES:
  1. Pure: every operation recomputes from the snapshot it is given
  2. Precision: money and hours use decimal.Decimal
  3. Order matters: persons and deductions are processed in stored order
  4. Total: no operation returns an error; edge cases degrade to zero

SEE ALSO:
  - time.go: Duration resolution
  - summary.go: Per-person financial summary
  - distribution.go: Margin pool distribution
  - totals.go: Aggregate totals and reports
*/
package payout

import (
	"math"

	"github.com/shopspring/decimal"
)

// =============================================================================
// NUMERIC BOUNDARY
// =============================================================================

var hundred = decimal.NewFromInt(100)

// FromFloat converts an external float into a decimal. Values that are not
// finite numbers become zero.
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// NonNegative is FromFloat that also maps negative values to zero.
// Collaborators use it to sanitize rates and deduction values.
func NonNegative(f float64) decimal.Decimal {
	d := FromFloat(f)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// DEDUCTION DEFINITIONS
// =============================================================================

// Basis selects the tier a deduction is settled in.
type Basis string

const (
	BasisWage   Basis = "wage"   // percentage of the person's cost, settled first
	BasisMargin Basis = "margin" // percentage of the remaining margin, settled second
)

// Kind selects how a deduction value is interpreted.
type Kind string

const (
	KindPercentage  Kind = "percentage"   // Value is in [0,100]
	KindFixedAmount Kind = "fixed_amount" // Value is a currency amount
)

// Deduction is a rule attached to a profile describing money owed to
// another profile. An empty or unknown beneficiary means the deduction
// still lowers the person's net margin but is not paid out to anyone.
type Deduction struct {
	ID                   string
	Basis                Basis
	Kind                 Kind
	Value                decimal.Decimal
	BeneficiaryProfileID string
}

// amountOf applies the deduction to a base: a percentage of base, or the
// fixed value as-is.
func (d Deduction) amountOf(base decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case KindPercentage:
		return base.Mul(d.Value).Div(hundred)
	case KindFixedAmount:
		return d.Value
	default:
		return decimal.Zero
	}
}

// =============================================================================
// PROFILES AND PERSONS
// =============================================================================

// Profile is a reusable rate template.
type Profile struct {
	ID             string
	Name           string
	BaseWorkerRate decimal.Decimal
	Deductions     []Deduction // order is significant
}

// FindDeduction returns the deduction with the given id.
func (p Profile) FindDeduction(id string) (Deduction, bool) {
	for _, d := range p.Deductions {
		if d.ID == id {
			return d, true
		}
	}
	return Deduction{}, false
}

// TimeEntry holds the clock times of one engagement. Clock values are
// "HH:MM" or "HH:MM:SS"; empty means not set.
type TimeEntry struct {
	Start            string
	Pause            string
	Resume           string
	Stop             string
	ManualTotalHours decimal.Decimal
}

// Person is one instance of work bound to exactly one profile.
type Person struct {
	ID                 string
	ProfileID          string
	Name               string
	WorkerRate         decimal.Decimal
	ClientRate         decimal.Decimal
	TimeEntry          TimeEntry
	ActiveDeductionIDs []string
}

// IsActive reports whether the deduction applies to this person.
func (p Person) IsActive(deductionID string) bool {
	for _, id := range p.ActiveDeductionIDs {
		if id == deductionID {
			return true
		}
	}
	return false
}

// =============================================================================
// DERIVED RESULTS
// =============================================================================

// FinancialSummary is the per-person calculation result.
type FinancialSummary struct {
	Hours                 decimal.Decimal
	Cost                  decimal.Decimal // hours * worker rate
	Revenue               decimal.Decimal // hours * client rate
	GrossMargin           decimal.Decimal // revenue - cost, may be negative
	WageDeductionsTotal   decimal.Decimal
	MarginDeductionsTotal decimal.Decimal
	TotalDeductions       decimal.Decimal
	NetMargin             decimal.Decimal
}

// PayoutEntry is what one profile receives once all persons are settled.
type PayoutEntry struct {
	ProfileID                string
	Name                     string
	OwnWage                  decimal.Decimal
	ReceivedWageDeductions   decimal.Decimal
	ReceivedMarginDeductions decimal.Decimal
	Total                    decimal.Decimal
}

// Totals aggregates every person's summary.
type Totals struct {
	ClientInvoiceTotal decimal.Decimal
	TotalDeductions    decimal.Decimal
}

// PersonSummary pairs a summary with the person it was computed for.
type PersonSummary struct {
	PersonID  string
	ProfileID string
	Name      string
	Summary   FinancialSummary
}

// Report bundles all three derived outputs for one snapshot.
type Report struct {
	Summaries []PersonSummary
	Payouts   []PayoutEntry
	Totals    Totals
}

// profileIndex resolves profile ids. The first profile wins when ids repeat.
type profileIndex map[string]*Profile

func indexProfiles(profiles []Profile) profileIndex {
	idx := make(profileIndex, len(profiles))
	for i := range profiles {
		if _, exists := idx[profiles[i].ID]; !exists {
			idx[profiles[i].ID] = &profiles[i]
		}
	}
	return idx
}
