/*
summary.go - Per-person financial summary

PURPOSE:
  Computes cost, revenue and margin for one person and settles the
  deductions that are active for that person on their bound profile.

ALGORITHM:
  hours   = ResolveHours(timeEntry)
  cost    = hours * workerRate
  revenue = hours * clientRate
  gross   = revenue - cost                    (may be negative)

  Tier 1 (wage), in stored order:
    percentage -> cost * value / 100
    fixed      -> value, uncapped

  remaining = max(0, gross - wageTotal)

  Tier 2 (margin), in stored order:
    percentage -> remaining * value / 100
    fixed      -> min(value, remaining - marginTotalSoFar)

  net = gross - wageTotal - marginTotal

EXAMPLE:
  8h at 20/h worker, 40/h client, 25% wage deduction:
    cost 160, revenue 320, gross 160, wage 40, remaining 120, net 120

SEE ALSO:
  - distribution.go: Cross-person settlement of the same deductions
*/
package payout

import "github.com/shopspring/decimal"

// ComputeFinancialSummary returns the financial summary of one person.
// A person whose profile cannot be found gets cost, revenue and margin
// only; all deduction fields stay zero.
func ComputeFinancialSummary(person Person, profiles []Profile) FinancialSummary {
	return summarize(person, indexProfiles(profiles))
}

func summarize(person Person, profiles profileIndex) FinancialSummary {
	hours := ResolveHours(person.TimeEntry)
	cost := hours.Mul(person.WorkerRate)
	revenue := hours.Mul(person.ClientRate)
	gross := revenue.Sub(cost)

	s := FinancialSummary{
		Hours:                 hours,
		Cost:                  cost,
		Revenue:               revenue,
		GrossMargin:           gross,
		WageDeductionsTotal:   decimal.Zero,
		MarginDeductionsTotal: decimal.Zero,
	}

	if profile, ok := profiles[person.ProfileID]; ok {
		s.WageDeductionsTotal = wageDeductions(person, profile, cost)
		remaining := decimal.Max(decimal.Zero, gross.Sub(s.WageDeductionsTotal))
		s.MarginDeductionsTotal = marginDeductions(person, profile, remaining)
	}

	s.TotalDeductions = s.WageDeductionsTotal.Add(s.MarginDeductionsTotal)
	s.NetMargin = gross.Sub(s.TotalDeductions)
	return s
}

func wageDeductions(person Person, profile *Profile, cost decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range profile.Deductions {
		if d.Basis != BasisWage || !person.IsActive(d.ID) {
			continue
		}
		total = total.Add(d.amountOf(cost))
	}
	return total
}

// marginDeductions caps each fixed amount by what the earlier margin
// deductions of this same person left over. Percentages summing past 100
// leave a negative cap, which the fixed amount then takes.
func marginDeductions(person Person, profile *Profile, remaining decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range profile.Deductions {
		if d.Basis != BasisMargin || !person.IsActive(d.ID) {
			continue
		}
		switch d.Kind {
		case KindPercentage:
			total = total.Add(d.amountOf(remaining))
		case KindFixedAmount:
			total = total.Add(decimal.Min(d.Value, remaining.Sub(total)))
		}
	}
	return total
}
