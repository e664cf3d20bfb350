package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/payout"
)

// amountPlaces is the display precision of the table output only. JSON
// output carries the exact decimal strings.
const amountPlaces = 2

func amount(d decimal.Decimal) string {
	return d.StringFixed(amountPlaces)
}

func renderTable(w io.Writer, r payout.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(tw, "PERSON\tPROFILE\tHOURS\tCOST\tREVENUE\tGROSS\tWAGE DED.\tMARGIN DED.\tNET\t")
	for _, s := range r.Summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Name, s.ProfileID,
			amount(s.Summary.Hours),
			amount(s.Summary.Cost),
			amount(s.Summary.Revenue),
			amount(s.Summary.GrossMargin),
			amount(s.Summary.WageDeductionsTotal),
			amount(s.Summary.MarginDeductionsTotal),
			amount(s.Summary.NetMargin),
		)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t\t\t\t\t")

	fmt.Fprintln(tw, "PAYOUT\tPROFILE\tOWN WAGE\tWAGE RECV.\tMARGIN RECV.\tTOTAL\t")
	for _, p := range r.Payouts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Name, p.ProfileID,
			amount(p.OwnWage),
			amount(p.ReceivedWageDeductions),
			amount(p.ReceivedMarginDeductions),
			amount(p.Total),
		)
	}
	fmt.Fprintln(tw, "\t\t\t\t\t\t")

	fmt.Fprintf(tw, "CLIENT INVOICE TOTAL\t%s\t\n", amount(r.Totals.ClientInvoiceTotal))
	fmt.Fprintf(tw, "TOTAL DEDUCTIONS\t%s\t\n", amount(r.Totals.TotalDeductions))

	return tw.Flush()
}

type jsonSummary struct {
	PersonID              string          `json:"person_id"`
	ProfileID             string          `json:"profile_id"`
	Name                  string          `json:"name"`
	Hours                 decimal.Decimal `json:"hours"`
	Cost                  decimal.Decimal `json:"cost"`
	Revenue               decimal.Decimal `json:"revenue"`
	GrossMargin           decimal.Decimal `json:"gross_margin"`
	WageDeductionsTotal   decimal.Decimal `json:"wage_deductions_total"`
	MarginDeductionsTotal decimal.Decimal `json:"margin_deductions_total"`
	TotalDeductions       decimal.Decimal `json:"total_deductions"`
	NetMargin             decimal.Decimal `json:"net_margin"`
}

type jsonPayout struct {
	ProfileID                string          `json:"profile_id"`
	Name                     string          `json:"name"`
	OwnWage                  decimal.Decimal `json:"own_wage"`
	ReceivedWageDeductions   decimal.Decimal `json:"received_wage_deductions"`
	ReceivedMarginDeductions decimal.Decimal `json:"received_margin_deductions"`
	Total                    decimal.Decimal `json:"total"`
}

type jsonReport struct {
	Summaries []jsonSummary `json:"summaries"`
	Payouts   []jsonPayout  `json:"payouts"`
	Totals    struct {
		ClientInvoiceTotal decimal.Decimal `json:"client_invoice_total"`
		TotalDeductions    decimal.Decimal `json:"total_deductions"`
	} `json:"totals"`
}

func renderJSON(w io.Writer, r payout.Report) error {
	out := jsonReport{
		Summaries: make([]jsonSummary, len(r.Summaries)),
		Payouts:   make([]jsonPayout, len(r.Payouts)),
	}
	for i, s := range r.Summaries {
		out.Summaries[i] = jsonSummary{
			PersonID:              s.PersonID,
			ProfileID:             s.ProfileID,
			Name:                  s.Name,
			Hours:                 s.Summary.Hours,
			Cost:                  s.Summary.Cost,
			Revenue:               s.Summary.Revenue,
			GrossMargin:           s.Summary.GrossMargin,
			WageDeductionsTotal:   s.Summary.WageDeductionsTotal,
			MarginDeductionsTotal: s.Summary.MarginDeductionsTotal,
			TotalDeductions:       s.Summary.TotalDeductions,
			NetMargin:             s.Summary.NetMargin,
		}
	}
	for i, p := range r.Payouts {
		out.Payouts[i] = jsonPayout{
			ProfileID:                p.ProfileID,
			Name:                     p.Name,
			OwnWage:                  p.OwnWage,
			ReceivedWageDeductions:   p.ReceivedWageDeductions,
			ReceivedMarginDeductions: p.ReceivedMarginDeductions,
			Total:                    p.Total,
		}
	}
	out.Totals.ClientInvoiceTotal = r.Totals.ClientInvoiceTotal
	out.Totals.TotalDeductions = r.Totals.TotalDeductions

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
