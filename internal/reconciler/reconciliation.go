package reconciler

import (
	"fmt"
	"sort"

	"statement-ledger/internal/canon"
	"statement-ledger/internal/models"
	"statement-ledger/pkg/logger"

	"github.com/shopspring/decimal"
)

// ReconcileConfig holds the reconciliation tolerances and search bounds
type ReconcileConfig struct {
	// EpsilonCents is the largest gap treated as reconciled
	EpsilonCents int64 `json:"epsilon_cents" mapstructure:"epsilon_cents"`
	// MaxCandidates caps how many of the smallest rows the subset search considers
	MaxCandidates int `json:"max_candidates" mapstructure:"max_candidates"`
	// IncomeComboSearch lets the income side search pairs and triples too
	IncomeComboSearch bool `json:"income_combo_search" mapstructure:"income_combo_search"`
}

// DefaultReconcileConfig returns the default reconciliation settings
func DefaultReconcileConfig() *ReconcileConfig {
	return &ReconcileConfig{
		EpsilonCents:      1,
		MaxCandidates:     120,
		IncomeComboSearch: false,
	}
}

// Validate checks if the reconciliation configuration is valid
func (c *ReconcileConfig) Validate() error {
	if c.EpsilonCents < 0 {
		return fmt.Errorf("epsilon must not be negative, got %d", c.EpsilonCents)
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive, got %d", c.MaxCandidates)
	}
	return nil
}

// side selects income (credits) or expense (debits)
type side int

const (
	incomeSide side = iota
	expenseSide
)

func (s side) String() string {
	if s == incomeSide {
		return "income"
	}
	return "expense"
}

func (s side) member(row *models.Transaction) bool {
	if s == incomeSide {
		return row.Amount.IsPositive()
	}
	return row.Amount.IsNegative()
}

// Totals returns the income and expense of the rows not excluded from
// totals, in cents. Expense is returned as a positive number.
func Totals(rows []models.Transaction) (income, expense int64) {
	for i := range rows {
		if rows[i].ExcludedFromTotals {
			continue
		}
		cents := models.ToCents(rows[i].Amount)
		if cents > 0 {
			income += cents
		} else {
			expense -= cents
		}
	}
	return income, expense
}

// Reconcile compares computed totals with the statement's declared totals and
// tries to explain an overstatement by excluding rows. It returns updated
// copies of the rows; the input is not modified. Gaps that cannot be
// explained are reported as deltas, never as errors.
func Reconcile(rows []models.Transaction, expectedIncome, expectedExpense *decimal.Decimal, config *ReconcileConfig) ([]models.Transaction, *models.ReconciliationResult) {
	if config == nil {
		config = DefaultReconcileConfig()
	}
	log := logger.WithComponent("reconciler")

	out := make([]models.Transaction, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].ExcludedFromTotals = false
	}

	result := &models.ReconciliationResult{ExcludedRows: []string{}}
	income, expense := Totals(out)

	if expectedExpense != nil {
		delta := expense - models.ToCents(*expectedExpense)
		before := delta
		result.ExpenseDeltaBeforeCents = &before
		if delta > config.EpsilonCents {
			delta = explain(out, expenseSide, delta, config, result)
		}
		result.ExpenseDeltaCents = &delta
	}

	if expectedIncome != nil {
		delta := income - models.ToCents(*expectedIncome)
		before := delta
		result.IncomeDeltaBeforeCents = &before
		if delta > config.EpsilonCents {
			delta = explain(out, incomeSide, delta, config, result)
		}
		result.IncomeDeltaCents = &delta
	}

	result.ComputedIncomeCents, result.ComputedExpenseCents = Totals(out)

	log.WithFields(logger.Fields{
		"income_cents":  result.ComputedIncomeCents,
		"expense_cents": result.ComputedExpenseCents,
		"excluded":      len(result.ExcludedRows),
	}).Debug("Reconciliation complete")

	return out, result
}

// explain excludes rows on one side until the overstatement is within
// epsilon. Internal transfers go first, smallest first; then a bounded
// subset search over the smallest remaining rows. It returns the final delta.
func explain(rows []models.Transaction, s side, delta int64, config *ReconcileConfig, result *models.ReconciliationResult) int64 {
	eps := config.EpsilonCents

	var transfers []int
	for i := range rows {
		if s.member(&rows[i]) && canon.InternalTransferPattern.MatchString(rows[i].Description) {
			transfers = append(transfers, i)
		}
	}
	sortByMagnitude(rows, transfers)

	for _, i := range transfers {
		if abs(delta) <= eps {
			break
		}
		cents := abs(models.ToCents(rows[i].Amount))
		if cents > delta+eps {
			continue
		}
		exclude(rows, i, result, fmt.Sprintf("%s: excluded internal transfer %s", s, describe(&rows[i])))
		delta -= cents
	}
	if abs(delta) <= eps || delta < 0 {
		return delta
	}

	candidates := searchCandidates(rows, s, config.MaxCandidates)
	values := make([]int64, len(candidates))
	for k, i := range candidates {
		values[k] = abs(models.ToCents(rows[i].Amount))
	}

	maxSize := 3
	if s == incomeSide && !config.IncomeComboSearch {
		maxSize = 1
		result.Steps = append(result.Steps, "income: subset search limited to single rows")
	}

	combo := findSubset(values, delta, eps, maxSize)
	if combo == nil {
		result.Steps = append(result.Steps, fmt.Sprintf("%s: no subset of %d candidates explains %s", s, len(values), models.FromCents(delta).StringFixed(2)))
		return delta
	}
	for _, k := range combo {
		i := candidates[k]
		exclude(rows, i, result, fmt.Sprintf("%s: excluded %s by subset search", s, describe(&rows[i])))
		delta -= values[k]
	}
	return delta
}

// searchCandidates returns indexes of unexcluded rows on the side ordered by
// magnitude, capped at max. On the income side rows that do not look like
// real income come before strong deposits.
func searchCandidates(rows []models.Transaction, s side, max int) []int {
	var weak, strong []int
	for i := range rows {
		if rows[i].ExcludedFromTotals || !s.member(&rows[i]) {
			continue
		}
		if s == incomeSide && canon.StrongDepositPattern.MatchString(rows[i].Description) {
			strong = append(strong, i)
			continue
		}
		weak = append(weak, i)
	}
	sortByMagnitude(rows, weak)
	sortByMagnitude(rows, strong)

	candidates := append(weak, strong...)
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}

// findSubset looks for one, two, then three values summing to target within
// eps. The first match in index order wins.
func findSubset(values []int64, target, eps int64, maxSize int) []int {
	n := len(values)
	near := func(sum int64) bool { return abs(sum-target) <= eps }

	for i := 0; i < n; i++ {
		if near(values[i]) {
			return []int{i}
		}
	}
	if maxSize < 2 {
		return nil
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if near(values[i] + values[j]) {
				return []int{i, j}
			}
		}
	}
	if maxSize < 3 {
		return nil
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := j + 1; k < n; k++ {
				if near(values[i] + values[j] + values[k]) {
					return []int{i, j, k}
				}
			}
		}
	}
	return nil
}

func sortByMagnitude(rows []models.Transaction, idx []int) {
	sort.SliceStable(idx, func(a, b int) bool {
		return rows[idx[a]].Amount.Abs().LessThan(rows[idx[b]].Amount.Abs())
	})
}

func exclude(rows []models.Transaction, i int, result *models.ReconciliationResult, step string) {
	rows[i].ExcludedFromTotals = true
	result.ExcludedRows = append(result.ExcludedRows, rows[i].ID)
	result.Steps = append(result.Steps, step)
}

func describe(row *models.Transaction) string {
	return fmt.Sprintf("%s %s %q", row.DateString(), row.Amount.StringFixed(2), row.Description)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
