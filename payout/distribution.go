/*
distribution.go - Margin pool distribution across all persons

PURPOSE:
  Pays the beneficiaries of active deductions out of the margin generated
  by ALL persons together. Wage-tier deductions are settled first, in
  person order and then deduction order, against one shared remainder.
  Margin-tier deductions then claim what is left; when the claims exceed
  it, every claim is scaled down by the same factor.

ALGORITHM:
  1. Seed one entry per profile id seen among persons (first-seen order).
     ownWage = total = that person's cost. Persons sharing a profile
     overwrite the seed, so the last one wins.
  2. pool = sum of grossMargin over all persons.
  3. Wage tier: amount = cost * pct / 100 or the fixed value, clamped to
     [0, remainder]; credited to the beneficiary; remainder -= amount.
  4. Margin tier: desired = remainder * pct / 100 or the fixed value.
  5. If sum(desired) <= remainder every claim is paid in full, otherwise
     each claim gets remainder * desired / sum(desired).
     A remainder <= 0 pays nothing.

EXAMPLE:
  remainder 90, claims 100 and 50 -> paid 60 and 30.

ORDERING:
  The (person, deduction) pairs are materialized once, in stored order,
  and the remainder is threaded through them explicitly. Reordering
  persons or deductions can change the wage-tier result.

SEE ALSO:
  - summary.go: Per-person view of the same deductions
*/
package payout

import "github.com/shopspring/decimal"

// =============================================================================
// SETTLEMENT PLAN
// =============================================================================

// settlement is one active deduction of one person, in processing order.
type settlement struct {
	cost      decimal.Decimal // cost of the person owing the deduction
	deduction Deduction
}

// claim is a margin-tier settlement with its desired amount.
type claim struct {
	beneficiary string
	desired     decimal.Decimal
}

// ledger keeps payout entries keyed by profile id in insertion order.
type ledger struct {
	order   []string
	entries map[string]*PayoutEntry
}

func newLedger() *ledger {
	return &ledger{entries: make(map[string]*PayoutEntry)}
}

func (l *ledger) seed(person Person, cost decimal.Decimal) {
	e, ok := l.entries[person.ProfileID]
	if !ok {
		e = &PayoutEntry{
			ProfileID:                person.ProfileID,
			ReceivedWageDeductions:   decimal.Zero,
			ReceivedMarginDeductions: decimal.Zero,
		}
		l.entries[person.ProfileID] = e
		l.order = append(l.order, person.ProfileID)
	}
	e.Name = person.Name
	e.OwnWage = cost
	e.Total = cost
}

func (l *ledger) has(profileID string) bool {
	if profileID == "" {
		return false
	}
	_, ok := l.entries[profileID]
	return ok
}

func (l *ledger) creditWage(profileID string, amount decimal.Decimal) {
	e := l.entries[profileID]
	e.ReceivedWageDeductions = e.ReceivedWageDeductions.Add(amount)
	e.Total = e.Total.Add(amount)
}

func (l *ledger) creditMargin(profileID string, amount decimal.Decimal) {
	e := l.entries[profileID]
	e.ReceivedMarginDeductions = e.ReceivedMarginDeductions.Add(amount)
	e.Total = e.Total.Add(amount)
}

func (l *ledger) result() []PayoutEntry {
	out := make([]PayoutEntry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.entries[id])
	}
	return out
}

// =============================================================================
// DISTRIBUTION
// =============================================================================

// ComputePayoutDistribution allocates the aggregate margin of all persons
// to deduction beneficiaries. It returns one entry per distinct profile id
// among persons, in first-seen order.
func ComputePayoutDistribution(persons []Person, profiles []Profile) []PayoutEntry {
	idx := indexProfiles(profiles)
	summaries := make([]FinancialSummary, len(persons))
	for i, p := range persons {
		summaries[i] = summarize(p, idx)
	}
	return distribute(persons, summaries, idx)
}

func distribute(persons []Person, summaries []FinancialSummary, idx profileIndex) []PayoutEntry {
	l := newLedger()
	pool := decimal.Zero
	for i, p := range persons {
		l.seed(p, summaries[i].Cost)
		pool = pool.Add(summaries[i].GrossMargin)
	}

	wage, margin := plan(persons, summaries, idx, l)

	remainder := settleWageTier(l, wage, pool)
	settleMarginTier(l, margin, remainder)

	return l.result()
}

// plan materializes the active, payable deductions per tier, in person
// order and then deduction order.
func plan(persons []Person, summaries []FinancialSummary, idx profileIndex, l *ledger) (wage, margin []settlement) {
	for i, p := range persons {
		profile, ok := idx[p.ProfileID]
		if !ok {
			continue
		}
		for _, d := range profile.Deductions {
			if !p.IsActive(d.ID) || !l.has(d.BeneficiaryProfileID) {
				continue
			}
			s := settlement{cost: summaries[i].Cost, deduction: d}
			switch d.Basis {
			case BasisWage:
				wage = append(wage, s)
			case BasisMargin:
				margin = append(margin, s)
			}
		}
	}
	return wage, margin
}

// settleWageTier pays wage-tier deductions out of the shared remainder and
// returns what is left. Amounts are capped by the remainder but not floored,
// so a negative pool is passed on to the first beneficiary and the
// remainder settles at zero.
func settleWageTier(l *ledger, wage []settlement, remainder decimal.Decimal) decimal.Decimal {
	for _, s := range wage {
		amount := decimal.Min(s.deduction.amountOf(s.cost), remainder)

		l.creditWage(s.deduction.BeneficiaryProfileID, amount)
		remainder = remainder.Sub(amount)
	}
	return remainder
}

func settleMarginTier(l *ledger, margin []settlement, remainder decimal.Decimal) {
	claims := make([]claim, len(margin))
	for i, s := range margin {
		claims[i] = claim{
			beneficiary: s.deduction.BeneficiaryProfileID,
			desired:     s.deduction.amountOf(remainder),
		}
	}

	for i, paid := range Ration(claimAmounts(claims), remainder) {
		l.creditMargin(claims[i].beneficiary, paid)
	}
}

func claimAmounts(claims []claim) []decimal.Decimal {
	out := make([]decimal.Decimal, len(claims))
	for i, c := range claims {
		out[i] = c.desired
	}
	return out
}

// Ration pays desired amounts out of an available amount. When the sum of
// desired amounts fits, each is paid in full; otherwise each is paid
// available * desired / sum(desired). Nothing is paid when available is
// zero or negative.
func Ration(desired []decimal.Decimal, available decimal.Decimal) []decimal.Decimal {
	paid := make([]decimal.Decimal, len(desired))
	if !available.IsPositive() {
		for i := range paid {
			paid[i] = decimal.Zero
		}
		return paid
	}

	total := decimal.Sum(decimal.Zero, desired...)
	if total.LessThanOrEqual(available) {
		copy(paid, desired)
		return paid
	}

	// Quotients are truncated so the payouts never sum past available.
	for i, d := range desired {
		paid[i], _ = available.Mul(d).QuoRem(total, rationPrecision)
	}
	return paid
}

const rationPrecision = 16
