package reconciler

import (
	"testing"
	"time"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/statementgen"

	"github.com/shopspring/decimal"
)

func TestServiceGeneratedStatements(t *testing.T) {
	tests := []struct {
		name        string
		count       int
		rowsPerPage int
		seed        int64
	}{
		{"single page", 25, 60, 1},
		{"page breaks", 150, 30, 2},
		{"many small pages", 300, 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := statementgen.NewGenerator(2025, time.March, tt.count, tt.seed)
			gen.RowsPerPage = tt.rowsPerPage
			gen.OpeningBalance = decimal.NewFromInt(100000)
			stmt, err := gen.Generate()
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}

			s := newTestService(t)
			outcome, err := s.Process(&Request{Pages: stmt.Pages})
			if err != nil {
				t.Fatalf("Process failed: %v", err)
			}

			if len(outcome.Rows) != len(stmt.Rows) {
				t.Fatalf("Expected %d rows, got %d (diagnostics %v)", len(stmt.Rows), len(outcome.Rows), outcome.Diagnostics)
			}
			income, expense := Totals(outcome.Rows)
			if income != models.ToCents(stmt.Income) || expense != models.ToCents(stmt.Expense) {
				t.Errorf("Totals %d/%d, generated %s/%s", income, expense, stmt.Income, stmt.Expense)
			}
			if r := outcome.Reconciliation; r.ExpenseDeltaCents == nil || *r.ExpenseDeltaCents != 0 {
				t.Errorf("Expected zero expense delta, got %+v", r)
			}
			if outcome.Balance == nil || !outcome.Balance.Passed() {
				t.Fatalf("Expected daily balances to pass, got %+v", outcome.Balance)
			}
			if outcome.Balance.Checked != len(stmt.DailyBalances) {
				t.Errorf("Checked %d days, generated %d", outcome.Balance.Checked, len(stmt.DailyBalances))
			}
			if StatementID(outcome.Rows) != "2025-03" {
				t.Errorf("StatementID = %s", StatementID(outcome.Rows))
			}
		})
	}
}

func BenchmarkServiceProcess(b *testing.B) {
	gen := statementgen.NewGenerator(2025, time.March, 500, 42)
	gen.OpeningBalance = decimal.NewFromInt(1000000)
	stmt, err := gen.Generate()
	if err != nil {
		b.Fatal(err)
	}
	config := parsers.DefaultExtractorConfig()
	config.Year = 2025
	s, err := NewService(config, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Process(&Request{Pages: stmt.Pages}); err != nil {
			b.Fatal(err)
		}
	}
}
