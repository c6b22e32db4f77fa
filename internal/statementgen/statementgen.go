// Package statementgen writes synthetic statement text with known totals and
// daily balances. The output uses the page layout the extractor reads, so a
// generated statement must reconcile to zero and pass the balance check.
package statementgen

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"statement-ledger/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Generator produces one month of statement activity
type Generator struct {
	Year           int
	Month          time.Month
	Count          int
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	OpeningBalance decimal.Decimal

	// IncomeRatio is the share of days that carry a payroll credit
	IncomeRatio float64
	RowsPerPage int
	CardLast4   string
	Seed        int64
}

// Row is one generated transaction as the extractor should report it
type Row struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}

// Statement is the generated text plus the figures it declares
type Statement struct {
	Pages          []string
	Rows           []Row
	OpeningBalance decimal.Decimal
	Income         decimal.Decimal
	Expense        decimal.Decimal
	DailyBalances  []models.DailyBalance
}

// Text joins the pages with form feeds, the layout of a text export
func (s *Statement) Text() string {
	return strings.Join(s.Pages, "\f")
}

var merchants = []struct{ name, city string }{
	{"Joe's Crab Shack", "Virginia Beach VA"},
	{"City of Norfolk", "Norfolk VA"},
	{"Harris Teeter", "Chesapeake VA"},
	{"Shell Oil", "Suffolk VA"},
	{"Target", "Norfolk VA"},
	{"Dominion Energy", "Richmond VA"},
	{"Starbucks", "Virginia Beach VA"},
	{"Home Depot", "Chesapeake VA"},
}

var employers = []string{"Acme Corp", "Tidewater Logistics", "Norfolk Naval Shipyard"}

// NewGenerator returns a generator with the defaults used by fixtures
func NewGenerator(year int, month time.Month, count int, seed int64) *Generator {
	return &Generator{
		Year:           year,
		Month:          month,
		Count:          count,
		MinAmount:      decimal.NewFromFloat(1.00),
		MaxAmount:      decimal.NewFromFloat(250.00),
		OpeningBalance: decimal.NewFromInt(5000),
		IncomeRatio:    0.1,
		RowsPerPage:    40,
		CardLast4:      "5280",
		Seed:           seed,
	}
}

// Validate checks the generator settings
func (g *Generator) Validate() error {
	if g.Year < 2000 || g.Year > 2100 {
		return errors.Errorf("year %d out of range", g.Year)
	}
	if g.Month < time.January || g.Month > time.December {
		return errors.Errorf("month %d out of range", g.Month)
	}
	if g.Count <= 0 {
		return errors.New("count must be positive")
	}
	if !g.MinAmount.IsPositive() || g.MaxAmount.LessThan(g.MinAmount) {
		return errors.Errorf("invalid amount range %s..%s", g.MinAmount, g.MaxAmount)
	}
	if g.IncomeRatio < 0 || g.IncomeRatio > 1 {
		return errors.Errorf("income ratio %.2f must be between 0 and 1", g.IncomeRatio)
	}
	if g.RowsPerPage <= 0 {
		return errors.New("rows per page must be positive")
	}
	return nil
}

// Generate builds the rows and renders them into pages
func (g *Generator) Generate() (*Statement, error) {
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid generator settings")
	}
	rng := rand.New(rand.NewSource(g.Seed))

	first := time.Date(g.Year, g.Month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	s := &Statement{OpeningBalance: g.OpeningBalance}
	for i := 0; i < g.Count; i++ {
		date := first.AddDate(0, 0, rng.Intn(days))
		m := merchants[rng.Intn(len(merchants))]
		amount := g.randomAmount(rng)
		desc := fmt.Sprintf("Purchase authorized on %02d/%02d %s #%04d %s Card %s",
			int(date.Month()), date.Day(), m.name, i+1, m.city, g.CardLast4)
		s.Rows = append(s.Rows, Row{Date: date, Description: desc, Amount: amount.Neg()})
		s.Expense = s.Expense.Add(amount)
	}

	// at most one payroll credit per day keeps every row distinct
	for day := 0; day < days; day++ {
		if rng.Float64() >= g.IncomeRatio {
			continue
		}
		date := first.AddDate(0, 0, day)
		amount := g.randomAmount(rng).Mul(decimal.NewFromInt(8)).Round(2)
		desc := fmt.Sprintf("%s Payroll ACH Credit", employers[rng.Intn(len(employers))])
		s.Rows = append(s.Rows, Row{Date: date, Description: desc, Amount: amount})
		s.Income = s.Income.Add(amount)
	}

	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Date.Before(s.Rows[j].Date)
	})

	balance := g.OpeningBalance
	for i, row := range s.Rows {
		balance = balance.Add(row.Amount)
		if i == len(s.Rows)-1 || !s.Rows[i+1].Date.Equal(row.Date) {
			s.DailyBalances = append(s.DailyBalances, models.DailyBalance{Date: row.Date, Balance: balance})
		}
	}

	s.Pages = g.render(s)
	return s, nil
}

func (g *Generator) randomAmount(rng *rand.Rand) decimal.Decimal {
	span := g.MaxAmount.Sub(g.MinAmount)
	cents := span.Mul(decimal.NewFromInt(100)).IntPart()
	offset := int64(0)
	if cents > 0 {
		offset = rng.Int63n(cents + 1)
	}
	return g.MinAmount.Add(models.FromCents(offset))
}

func (g *Generator) render(s *Statement) []string {
	var pages []string
	var page []string

	page = append(page,
		"Account summary",
		fmt.Sprintf("Beginning balance on %d/1 $%s", int(g.Month), FormatAmount(s.OpeningBalance)),
		fmt.Sprintf("Deposits/Additions %s", FormatAmount(s.Income)),
		fmt.Sprintf("Withdrawals/Subtractions -%s", FormatAmount(s.Expense)),
		"Transaction history",
	)

	rows := 0
	var current time.Time
	for _, row := range s.Rows {
		if rows >= g.RowsPerPage {
			pages = append(pages, strings.Join(page, "\n"))
			page = []string{fmt.Sprintf("Page %d of X", len(pages)+1), "Transaction history"}
			rows = 0
			current = time.Time{}
		}
		if !row.Date.Equal(current) {
			page = append(page, dateToken(row.Date))
			current = row.Date
		}
		page = append(page, row.Description, FormatAmount(row.Amount.Abs()))
		rows++
	}

	page = append(page, "Daily ending balance")
	var pairs []string
	for i, d := range s.DailyBalances {
		pairs = append(pairs, fmt.Sprintf("%s %s", dateToken(d.Date), FormatAmount(d.Balance)))
		if len(pairs) == 4 || i == len(s.DailyBalances)-1 {
			page = append(page, strings.Join(pairs, " "))
			pairs = pairs[:0]
		}
	}
	pages = append(pages, strings.Join(page, "\n"))

	total := len(pages)
	for i := range pages {
		pages[i] = strings.Replace(pages[i], fmt.Sprintf("Page %d of X", i+1), fmt.Sprintf("Page %d of %d", i+1, total), 1)
	}
	return pages
}

func dateToken(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}

// FormatAmount renders an amount with thousands separators, as statements do
func FormatAmount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	whole, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
