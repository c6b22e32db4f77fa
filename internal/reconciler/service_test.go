package reconciler

import (
	"context"
	"strings"
	"testing"
	"time"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/storage"
	ledgererrors "statement-ledger/pkg/errors"

	"github.com/shopspring/decimal"
)

const junePage = `Account summary
Beginning balance on 6/1 $1,000.00
Deposits/Additions 1,500.00
Withdrawals/Subtractions -78.00
Transaction history
6/20
Purchase authorized on 06/20 Joe's Crab Shack Virginia Beach VA Card 5280
20.00
6/26
Purchase authorized on 06/25 City of Norfolk Norfolk VA Card 5280
58.00
Acme Corp Payroll ACH Credit
1,500.00
Daily ending balance
6/20 980.00 6/26 2,422.00`

func newTestService(t *testing.T) *Service {
	t.Helper()
	config := parsers.DefaultExtractorConfig()
	config.Year = 2025
	s, err := NewService(config, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return s
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *storage.Memory) {
	t.Helper()
	store := storage.NewMemory()
	o, err := NewOrchestrator(newTestService(t), store)
	if err != nil {
		t.Fatalf("Failed to create orchestrator: %v", err)
	}
	return o, store
}

func TestServiceProcess(t *testing.T) {
	s := newTestService(t)
	outcome, err := s.Process(&Request{Pages: []string{junePage}})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(outcome.Rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(outcome.Rows))
	}
	if outcome.Declared.OpeningBalance == nil || len(outcome.Declared.DailyBalances) != 2 {
		t.Errorf("Expected declarations from the statement text, got %+v", outcome.Declared)
	}
	if *outcome.Reconciliation.ExpenseDeltaCents != 0 || *outcome.Reconciliation.IncomeDeltaCents != 0 {
		t.Errorf("Expected reconciled totals, got %+v", outcome.Reconciliation)
	}
	if outcome.Balance == nil || !outcome.Balance.Passed() {
		t.Errorf("Expected daily balances to pass, got %+v", outcome.Balance)
	}

	norfolk := outcome.Rows[1]
	if norfolk.DateString() != "2025-06-26" || norfolk.Amount.StringFixed(2) != "-58.00" {
		t.Errorf("Unexpected Norfolk row %s", norfolk.String())
	}
	if norfolk.Merchant == nil || *norfolk.Merchant != "City of Norfolk" {
		t.Errorf("Expected merchant City of Norfolk, got %v", norfolk.Merchant)
	}
	if outcome.Rows[2].Category != "Income" {
		t.Errorf("Expected payroll categorized as Income, got %s", outcome.Rows[2].Category)
	}
}

func TestServiceExplicitDeclarationsWin(t *testing.T) {
	s := newTestService(t)
	expense := decimal.NewFromInt(50)
	outcome, err := s.Process(&Request{
		Pages:    []string{junePage},
		Declared: models.DeclaredInputs{ExpectedExpense: &expense},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if *outcome.Reconciliation.ExpenseDeltaBeforeCents != 2800 {
		t.Errorf("Expected delta against the explicit total, got %d", *outcome.Reconciliation.ExpenseDeltaBeforeCents)
	}
}

func TestServiceRejectsEmptyRequest(t *testing.T) {
	if _, err := newTestService(t).Process(&Request{}); err == nil {
		t.Error("Expected error for a request without pages")
	}
}

func TestStatementID(t *testing.T) {
	rows := []models.Transaction{
		tx("a", "x", "-1.00"),
		tx("b", "x", "-1.00"),
		tx("c", "x", "-1.00"),
	}
	rows[0].Date = time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	if got := StatementID(rows); got != "2025-06" {
		t.Errorf("Expected 2025-06, got %s", got)
	}
	if got := StatementID(nil); got != "" {
		t.Errorf("Expected empty id, got %s", got)
	}
}

func TestOrchestratorParsePersists(t *testing.T) {
	ctx := context.Background()
	o, store := newTestOrchestrator(t)

	_, id, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}, Sources: []string{"june.txt"}, Persist: true})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if id != "2025-06" {
		t.Errorf("Expected statement id 2025-06, got %s", id)
	}

	snap, err := store.LoadSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("Snapshot not saved: %v", err)
	}
	if snap.ExtractorVersion != parsers.ExtractorVersion || len(snap.Rows) != 3 || snap.Sources[0] != "june.txt" {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestOrchestratorCorrectLearns(t *testing.T) {
	ctx := context.Background()
	o, store := newTestOrchestrator(t)

	outcome, id, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}, Persist: true})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	crab := outcome.Rows[0]

	corrected, correction, err := o.Correct(ctx, id, crab.ID, "Dining")
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if corrected.Rows[0].EffectiveCategory() != "Dining" {
		t.Errorf("Expected Dining, got %s", corrected.Rows[0].EffectiveCategory())
	}
	if len(correction.Learned) != 1 {
		t.Errorf("Expected one learned rule, got %v", correction.Learned)
	}

	overrides, _ := store.LoadOverrides(ctx)
	if len(overrides) != 1 || overrides[0].Category != "Dining" {
		t.Errorf("Expected persisted override, got %v", overrides)
	}
	rules, _ := store.LoadCategoryRules(ctx)
	if len(rules) != 1 {
		t.Errorf("Expected persisted learned rule, got %v", rules)
	}

	// a fresh parse of the same text picks the override up from the store
	again, _, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if again.Rows[0].CategoryOverride == nil || *again.Rows[0].CategoryOverride != "Dining" {
		t.Errorf("Expected stored override on re-parse, got %v", again.Rows[0].CategoryOverride)
	}

	if _, _, err := o.Correct(ctx, id, "missing", "Dining"); err == nil {
		t.Error("Expected error for unknown row")
	}
}

func TestOrchestratorReparse(t *testing.T) {
	ctx := context.Background()
	o, store := newTestOrchestrator(t)

	if _, _, err := o.Reparse(ctx, "2025-06", false); err == nil {
		t.Fatal("Expected error for missing snapshot")
	} else if le, ok := ledgererrors.AsLedgerError(err); !ok || le.Code != ledgererrors.CodeSnapshotNotFound {
		t.Errorf("Expected snapshot not found error, got %v", err)
	}

	if _, _, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}, Persist: true}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	_, extracted, err := o.Reparse(ctx, "2025-06", false)
	if err != nil || extracted {
		t.Errorf("Current snapshot should not be re-extracted, got %v %v", extracted, err)
	}

	stale, _ := store.LoadSnapshot(ctx, "2025-06")
	stale.ExtractorVersion = parsers.ExtractorVersion - 1
	stale.Rows = nil
	if err := store.SaveSnapshot(ctx, stale); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	outcome, extracted, err := o.Reparse(ctx, "2025-06", false)
	if err != nil || !extracted {
		t.Fatalf("Stale snapshot should be re-extracted, got %v %v", extracted, err)
	}
	if len(outcome.Rows) != 3 {
		t.Errorf("Expected 3 rows after re-extraction, got %d", len(outcome.Rows))
	}

	_, extracted, _ = o.Reparse(ctx, "2025-06", true)
	if !extracted {
		t.Error("Force should always re-extract")
	}
}

func TestOrchestratorReparseKeepsConfiguredAliases(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t)
	aliases := []models.AliasRule{{Pattern: "crab shack", Label: "Joe's", Mode: models.AliasContains}}

	outcome, id, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}, Aliases: aliases, Persist: true})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if m := outcome.Rows[0].Merchant; m == nil || *m != "Joe's" {
		t.Fatalf("Expected alias merchant after parse, got %v", m)
	}

	tests := []struct {
		name  string
		force bool
	}{
		{"stored rows", false},
		{"re-extracted", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, _, err := o.Reparse(ctx, id, tt.force, aliases...)
			if err != nil {
				t.Fatalf("Reparse failed: %v", err)
			}
			if m := outcome.Rows[0].Merchant; m == nil || *m != "Joe's" {
				t.Errorf("Expected merchant Joe's, got %v", m)
			}
		})
	}

	corrected, _, err := o.Correct(ctx, id, outcome.Rows[0].ID, "Dining", aliases...)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if m := corrected.Rows[0].Merchant; m == nil || *m != "Joe's" {
		t.Errorf("Expected merchant Joe's after correction, got %v", m)
	}

	// without the aliases the merchant falls back to the canon table
	plain, _, err := o.Reparse(ctx, id, false)
	if err != nil {
		t.Fatalf("Reparse failed: %v", err)
	}
	if plain.Rows[0].Merchant != nil {
		t.Errorf("Expected no merchant without aliases, got %v", *plain.Rows[0].Merchant)
	}
}

func TestOrchestratorRules(t *testing.T) {
	ctx := context.Background()
	o, _ := newTestOrchestrator(t)

	if err := o.AddAlias(ctx, models.AliasRule{Pattern: "", Label: "x", Mode: models.AliasContains}); err == nil {
		t.Error("Expected invalid alias to be rejected")
	}
	if err := o.AddAlias(ctx, models.AliasRule{Pattern: "crab shack", Label: "Joe's", Mode: models.AliasContains}); err != nil {
		t.Fatalf("AddAlias failed: %v", err)
	}

	rejected, err := o.ImportRules(ctx, &RuleSet{
		Aliases:       []models.AliasRule{{Pattern: "lion", Label: "Food Lion", Mode: "fuzzy"}},
		CategoryRules: []models.CategoryRule{{Key: "alias:joe's", Category: "Dining", Source: models.SourceAlias}},
	}, false)
	if err != nil {
		t.Fatalf("ImportRules failed: %v", err)
	}
	if len(rejected) != 1 {
		t.Errorf("Expected the fuzzy alias to be rejected, got %v", rejected)
	}

	set, err := o.ExportRules(ctx)
	if err != nil {
		t.Fatalf("ExportRules failed: %v", err)
	}
	if len(set.Aliases) != 1 || len(set.CategoryRules) != 1 {
		t.Errorf("Unexpected rule set %+v", set)
	}

	outcome, _, err := o.Parse(ctx, &ParseRequest{Pages: []string{junePage}})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if outcome.Rows[0].Category != "Dining" || !strings.HasPrefix(*outcome.Rows[0].Merchant, "Joe") {
		t.Errorf("Expected alias and rule to apply, got %s", outcome.Rows[0].String())
	}

	if _, err := o.ImportRules(ctx, &RuleSet{}, true); err != nil {
		t.Fatalf("ImportRules replace failed: %v", err)
	}
	if set, _ := o.ExportRules(ctx); len(set.Aliases) != 0 {
		t.Errorf("Replace should drop existing aliases, got %v", set.Aliases)
	}
}
