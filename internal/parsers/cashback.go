package parsers

import (
	"fmt"

	"statement-ledger/internal/models"
)

// SplitCashback splits a purchase that includes cash back into a purchase
// portion and a cash portion. The two parts always sum to the original gross.
// Candidates without a usable cash-back amount are returned unchanged, as are
// candidates already produced by a split, so applying it twice is harmless.
func SplitCashback(c models.Candidate) []models.Candidate {
	if c.Kind == models.KindCashBack || c.Cashback == nil || !c.Amount.IsNegative() || !c.Cashback.IsPositive() {
		return []models.Candidate{c}
	}

	gross := c.Amount.Abs()
	cashback := *c.Cashback
	if cashback.GreaterThan(gross) {
		c.Cashback = nil
		c.Notes = appendNote(c.Notes, fmt.Sprintf("cash back %s exceeds gross %s, not split", cashback.StringFixed(2), gross.StringFixed(2)))
		return []models.Candidate{c}
	}

	var out []models.Candidate
	if remainder := gross.Sub(cashback); remainder.IsPositive() {
		purchase := c
		purchase.Amount = remainder.Neg()
		purchase.Cashback = nil
		purchase.Balance = nil
		purchase.Notes = appendNote(c.Notes, fmt.Sprintf("gross %s includes cash back %s", gross.StringFixed(2), cashback.StringFixed(2)))
		out = append(out, purchase)
	}

	cash := c
	cash.Kind = models.KindCashBack
	cash.Amount = cashback.Neg()
	cash.Descriptor = fmt.Sprintf("%s (cash back $%s)", c.Descriptor, cashback.StringFixed(2))
	cash.Notes = appendNote(c.Notes, "cash portion of a cash back purchase")
	return append(out, cash)
}

func appendNote(notes []string, note string) []string {
	out := make([]string, 0, len(notes)+1)
	out = append(out, notes...)
	return append(out, note)
}
