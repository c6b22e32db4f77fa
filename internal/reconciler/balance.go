package reconciler

import (
	"sort"
	"time"

	"statement-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// balanceToleranceCents is the largest difference not reported as a mismatch
const balanceToleranceCents = 1

// BalanceCheck is the computed end-of-day balance series and the first day it
// disagrees with the statement's daily balance table.
type BalanceCheck struct {
	Opening       decimal.Decimal         `json:"-"`
	Series        []models.DailyBalance   `json:"series"`
	Checked       int                     `json:"checked"`
	FirstMismatch *models.BalanceMismatch `json:"firstMismatch,omitempty"`
}

// Passed reports whether every declared balance matched
func (b *BalanceCheck) Passed() bool {
	return b.FirstMismatch == nil
}

// VerifyDailyBalances rolls the opening balance forward through the rows day
// by day and compares the result with the declared balance of every day that
// has rows. Declared days without activity are not checked. Every dated row
// counts, including rows excluded from totals; rows with unknown
// dates are skipped.
func VerifyDailyBalances(rows []models.Transaction, opening decimal.Decimal, declared []models.DailyBalance) *BalanceCheck {
	byDay := make(map[time.Time][]models.Transaction)
	var days []time.Time
	for _, row := range rows {
		if row.Date.IsZero() {
			continue
		}
		d := row.Date
		if _, seen := byDay[d]; !seen {
			days = append(days, d)
		}
		byDay[d] = append(byDay[d], row)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	check := &BalanceCheck{Opening: opening}
	closing := make(map[time.Time]decimal.Decimal, len(days))
	running := opening
	for _, d := range days {
		for _, row := range byDay[d] {
			running = running.Add(row.Amount)
		}
		check.Series = append(check.Series, models.DailyBalance{Date: d, Balance: running})
		closing[d] = running
	}

	sorted := make([]models.DailyBalance, len(declared))
	copy(sorted, declared)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, want := range sorted {
		// only days with activity on both sides are compared
		computed, ok := closing[want.Date]
		if !ok {
			continue
		}
		check.Checked++
		diff := computed.Sub(want.Balance)
		if abs(models.ToCents(diff)) > balanceToleranceCents {
			check.FirstMismatch = &models.BalanceMismatch{
				Date:         want.Date,
				Computed:     computed,
				Declared:     want.Balance,
				Difference:   diff,
				Transactions: byDay[want.Date],
			}
			break
		}
	}
	return check
}
