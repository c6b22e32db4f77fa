package parsers

import (
	"strings"

	"statement-ledger/internal/canon"
	"statement-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// amountScan is what scanAmount found for one descriptor line
type amountScan struct {
	Amount  decimal.Decimal
	Balance *decimal.Decimal
	Inline  bool
	// Continuation holds descriptor lines between the row and its amount
	Continuation []string
}

// scanAmount finds the amount belonging to the descriptor at index i. It
// walks forward and never crosses a date line, a header, a line that opens
// with its own date, or a line that opens a transaction of its own. A
// standalone amount line is preferred; an amount line immediately after it is
// the running balance. Otherwise the last amount token on the descriptor line
// itself is used.
//
// The returned cursor is where the caller resumes: past the consumed amount
// lines, or at the line that stopped the scan.
func scanAmount(lines []ClassifiedLine, i int) (amountScan, bool, int) {
	var continuation []string

	stop := len(lines)
scan:
	for j := i + 1; j < len(lines); j++ {
		switch lines[j].Tag {
		case DateOnly, SectionHeader:
			stop = j
			break scan
		case AmountOnly:
			amount, err := models.ParseAmount(lines[j].Text)
			if err != nil {
				stop = j
				break scan
			}
			result := amountScan{Amount: amount.Abs(), Continuation: continuation}
			next := j + 1
			if next < len(lines) && lines[next].Tag == AmountOnly {
				if balance, err := models.ParseAmount(lines[next].Text); err == nil {
					result.Balance = &balance
					next++
				}
			}
			return result, true, next
		default:
			if _, _, dated := splitLeadingDate(lines[j].Text); dated || canon.OpensTransaction(lines[j].Text) {
				stop = j
				break scan
			}
			continuation = append(continuation, lines[j].Text)
		}
	}

	if amount, ok := lastInlineAmount(lines[i].Text); ok {
		return amountScan{Amount: amount, Inline: true, Continuation: continuation}, true, stop
	}
	return amountScan{}, false, stop
}

// lastInlineAmount returns the last amount token on a line, ignoring the
// declared cash-back sub-amount.
func lastInlineAmount(text string) (decimal.Decimal, bool) {
	text = canon.CashbackAmountPattern.ReplaceAllString(text, " ")
	fields := strings.Fields(text)
	for k := len(fields) - 1; k >= 0; k-- {
		if !amountOnlyRe.MatchString(fields[k]) {
			continue
		}
		amount, err := models.ParseAmount(fields[k])
		if err != nil {
			return decimal.Zero, false
		}
		return amount.Abs(), true
	}
	return decimal.Zero, false
}
