package parsers

import (
	"regexp"
	"sort"

	"statement-ledger/internal/models"

	"github.com/shopspring/decimal"
)

const amountExpr = `\$?(-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2})`

var (
	openingBalanceRe = regexp.MustCompile(`(?i)^(?:beginning|opening)\s+balance(?:\s+on\s+\S+)?\s*` + amountExpr + `$`)
	openingLabelRe   = regexp.MustCompile(`(?i)^(?:beginning|opening)\s+balance(?:\s+on\s+\S+)?$`)
	totalIncomeRe    = regexp.MustCompile(`(?i)^(?:total\s+)?(?:deposits|credits)(?:\s*(?:/|and)\s*(?:other\s+)?(?:additions|credits))?\s+` + amountExpr + `$`)
	totalExpenseRe   = regexp.MustCompile(`(?i)^(?:total\s+)?(?:electronic\s+)?(?:withdrawals|debits)(?:\s*(?:/|and)\s*(?:other\s+)?(?:subtractions|debits))?\s+-?` + amountExpr + `$`)
	dailyTableRe     = regexp.MustCompile(`(?i)^(?:daily\s+ending|ending\s+daily)\s+balance\b`)
	balancePairRe    = regexp.MustCompile(`(\d{1,2}/\d{1,2})\s+` + amountExpr)
)

// ReadDeclarations collects the figures a statement states about itself: the
// opening balance, the deposit and withdrawal totals, and the daily ending
// balance table. The first value found for each figure wins.
func ReadDeclarations(pages [][]ClassifiedLine, year int) models.DeclaredInputs {
	declared := models.DeclaredInputs{Year: year}
	daily := make(map[string]models.DailyBalance)

	for _, lines := range pages {
		inTable := false
		var pendingDate string

		for i, line := range lines {
			text := line.Text

			if declared.OpeningBalance == nil {
				if m := openingBalanceRe.FindStringSubmatch(text); m != nil {
					declared.OpeningBalance = parseDeclared(m[1])
				} else if openingLabelRe.MatchString(text) && i+1 < len(lines) && lines[i+1].Tag == AmountOnly {
					declared.OpeningBalance = parseDeclared(lines[i+1].Text)
				}
			}
			if declared.ExpectedIncome == nil {
				if m := totalIncomeRe.FindStringSubmatch(text); m != nil {
					declared.ExpectedIncome = parseDeclared(m[1])
				}
			}
			if declared.ExpectedExpense == nil {
				if m := totalExpenseRe.FindStringSubmatch(text); m != nil {
					if v := parseDeclared(m[1]); v != nil {
						abs := v.Abs()
						declared.ExpectedExpense = &abs
					}
				}
			}

			if dailyTableRe.MatchString(text) {
				inTable = true
				pendingDate = ""
				continue
			}
			if !inTable {
				continue
			}

			switch line.Tag {
			case SectionHeader:
				inTable = false
			case DateOnly:
				pendingDate = text
			case AmountOnly:
				if pendingDate != "" {
					addDaily(daily, pendingDate, text, year)
					pendingDate = ""
				}
			default:
				for _, m := range balancePairRe.FindAllStringSubmatch(text, -1) {
					addDaily(daily, m[1], m[2], year)
				}
			}
		}
	}

	for _, d := range daily {
		declared.DailyBalances = append(declared.DailyBalances, d)
	}
	sort.Slice(declared.DailyBalances, func(i, j int) bool {
		return declared.DailyBalances[i].Date.Before(declared.DailyBalances[j].Date)
	})
	return declared
}

func addDaily(daily map[string]models.DailyBalance, dateToken, amountText string, year int) {
	date, ok := ParseDateToken(dateToken, year)
	if !ok {
		return
	}
	balance := parseDeclared(amountText)
	if balance == nil {
		return
	}
	key := models.FormatDate(date)
	if _, seen := daily[key]; !seen {
		daily[key] = models.DailyBalance{Date: date, Balance: *balance}
	}
}

func parseDeclared(s string) *decimal.Decimal {
	v, err := models.ParseAmount(s)
	if err != nil {
		return nil
	}
	return &v
}
