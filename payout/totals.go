package payout

import "github.com/shopspring/decimal"

// ComputeTotals sums revenue and total deductions over every person. Persons
// sharing a profile each contribute.
func ComputeTotals(persons []Person, profiles []Profile) Totals {
	idx := indexProfiles(profiles)
	summaries := make([]FinancialSummary, len(persons))
	for i, p := range persons {
		summaries[i] = summarize(p, idx)
	}
	return totals(summaries)
}

func totals(summaries []FinancialSummary) Totals {
	t := Totals{ClientInvoiceTotal: decimal.Zero, TotalDeductions: decimal.Zero}
	for _, s := range summaries {
		t.ClientInvoiceTotal = t.ClientInvoiceTotal.Add(s.Revenue)
		t.TotalDeductions = t.TotalDeductions.Add(s.TotalDeductions)
	}
	return t
}

// BuildReport runs every computation over one snapshot of profiles and
// persons. Summaries follow person order.
func BuildReport(persons []Person, profiles []Profile) Report {
	idx := indexProfiles(profiles)

	summaries := make([]FinancialSummary, len(persons))
	rows := make([]PersonSummary, len(persons))
	for i, p := range persons {
		s := summarize(p, idx)
		summaries[i] = s
		rows[i] = PersonSummary{PersonID: p.ID, ProfileID: p.ProfileID, Name: p.Name, Summary: s}
	}

	return Report{
		Summaries: rows,
		Payouts:   distribute(persons, summaries, idx),
		Totals:    totals(summaries),
	}
}
