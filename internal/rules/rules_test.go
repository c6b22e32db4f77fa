package rules

import (
	"reflect"
	"testing"
	"time"

	"statement-ledger/internal/models"

	"github.com/shopspring/decimal"
)

func row(id, desc, amount string, kind models.Kind) models.Transaction {
	return models.Transaction{
		ID:          id,
		Date:        time.Date(2025, 6, 26, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      decimal.RequireFromString(amount),
		Kind:        kind,
		Category:    models.CategoryUncategorized,
	}
}

func TestTokenKeys(t *testing.T) {
	tests := []struct {
		descriptor string
		expected   []string
	}{
		{
			"Purchase authorized on 06/25 City of Norfolk Norfolk VA Card 5280",
			[]string{"tok:city"},
		},
		{
			"Purchase authorized on 06/20 Joe's Crab Shack Virginia Beach VA S385176584765712 Card 5280",
			[]string{"tok:joe crab", "tok:joe"},
		},
		{
			"Recurring Payment authorized on 06/03 Netflix.Com Netflix.Com CA Card 5280",
			[]string{"tok:netflix netflix", "tok:netflix"},
		},
		{"Card 5280", nil},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			got := TokenKeys(tt.descriptor)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestIsWeakKey(t *testing.T) {
	tests := []struct {
		key  string
		weak bool
	}{
		{"tok:the", true},
		{"tok:purchase", true},
		{"tok:abc", true},
		{"tok:food", false},
		{"tok:abc def", false},
		{"tok:", true},
		{"alias:bp", false},
	}
	for _, tt := range tests {
		if got := IsWeakKey(tt.key); got != tt.weak {
			t.Errorf("IsWeakKey(%q) = %v, want %v", tt.key, got, tt.weak)
		}
	}
}

func TestNewSnapshotPrunesAndRejects(t *testing.T) {
	snap := NewSnapshot(
		[]models.AliasRule{
			{Pattern: "(unclosed", Label: "Broken", Mode: models.AliasRegex},
			{Pattern: "", Label: "Empty", Mode: models.AliasContains},
			{Pattern: "crab shack", Label: "Joe's Crab Shack", Mode: models.AliasContains},
		},
		[]models.CategoryRule{
			{Key: "tok:the", Category: "Dining", Source: models.SourceToken},
			{Key: "tok:gas", Category: "Fuel", Source: models.SourceToken},
			{Key: "tok:joe crab", Category: "Dining", Source: models.SourceToken},
		},
		nil,
	)

	if len(snap.Rejected) != 2 {
		t.Errorf("expected 2 rejected aliases, got %d", len(snap.Rejected))
	}
	if len(snap.Pruned) != 2 {
		t.Errorf("expected 2 pruned rules, got %d: %v", len(snap.Pruned), snap.Pruned)
	}
	if len(snap.CategoryRules()) != 1 {
		t.Errorf("expected 1 live rule, got %d", len(snap.CategoryRules()))
	}
}

func TestResolveMerchantPrecedence(t *testing.T) {
	snap := NewSnapshot([]models.AliasRule{
		{Pattern: "purchase authorized on", Label: "Card Purchase", Mode: models.AliasStartsWith},
		{Pattern: `food\s+lion`, Label: "Grocery Run", Mode: models.AliasRegex},
	}, nil, nil)

	merchant, source := snap.ResolveMerchant("Purchase authorized on 06/25 Food Lion Card 5280")
	if merchant == nil || *merchant != "Card Purchase" || source != models.SourceAlias {
		t.Errorf("first alias should win, got %v %s", merchant, source)
	}

	merchant, source = snap.ResolveMerchant("FOOD LION #1234")
	if merchant == nil || *merchant != "Grocery Run" || source != models.SourceAlias {
		t.Errorf("regex alias should match case-insensitively, got %v %s", merchant, source)
	}

	merchant, source = snap.ResolveMerchant("Starbucks Store 1234")
	if merchant == nil || *merchant != "Starbucks" || source != models.SourceMerchant {
		t.Errorf("canon table should apply after aliases, got %v %s", merchant, source)
	}

	merchant, _ = snap.ResolveMerchant("Corner Bistro")
	if merchant != nil {
		t.Errorf("expected no merchant, got %s", *merchant)
	}
}

func TestResolveCategoryLookupOrder(t *testing.T) {
	desc := "Purchase authorized on 06/20 Joe's Crab Shack Card 5280"
	base := []models.CategoryRule{
		{Key: "tok:joe", Category: "Unigram", Source: models.SourceToken},
		{Key: "tok:joe crab", Category: "Bigram", Source: models.SourceToken},
	}

	res := NewSnapshot(nil, base, nil).Resolve(desc)
	if res.Category != "Bigram" || res.RuleKey != "tok:joe crab" {
		t.Errorf("bigram should beat unigram, got %+v", res)
	}

	withAlias := NewSnapshot(
		[]models.AliasRule{{Pattern: "crab shack", Label: "Joes", Mode: models.AliasContains}},
		append(base, models.CategoryRule{Key: "alias:joes", Category: "Alias", Source: models.SourceAlias}),
		nil,
	)
	if res := withAlias.Resolve(desc); res.Category != "Alias" {
		t.Errorf("alias key should win, got %+v", res)
	}

	if res := NewSnapshot(nil, nil, nil).Resolve("Acme Corp Payroll ACH Credit"); res.Category != "Income" || res.RuleKey != "" {
		t.Errorf("expected signal category Income, got %+v", res)
	}
	if res := NewSnapshot(nil, nil, nil).Resolve(desc); res.Category != models.CategoryUncategorized {
		t.Errorf("expected Uncategorized, got %+v", res)
	}
}

func TestApplyOverrideSupremacy(t *testing.T) {
	rows := []models.Transaction{
		row("a", "Purchase authorized on 06/25 Starbucks Store 1234 Card 5280", "-4.50", models.KindCardPurchase),
		row("b", "Purchase authorized on 06/26 Starbucks Store 1234 Card 5280", "-5.25", models.KindCardPurchase),
	}
	coffee := "Treats"
	rows[0].CategoryOverride = &coffee

	snap := NewSnapshot(nil, []models.CategoryRule{
		{Key: "alias:starbucks", Category: "Coffee", Source: models.SourceMerchant},
	}, nil)

	// apply repeatedly, with progressively more rules
	out := snap.Apply(rows)
	out = snap.WithRules([]models.CategoryRule{{Key: "alias:starbucks", Category: "Dining", Source: models.SourceMerchant}}).Apply(out)

	if out[0].EffectiveCategory() != "Treats" {
		t.Errorf("override must survive rule application, got %s", out[0].EffectiveCategory())
	}
	if out[1].EffectiveCategory() != "Dining" {
		t.Errorf("non-overridden row should follow latest rule, got %s", out[1].EffectiveCategory())
	}
	if out[1].Merchant == nil || *out[1].Merchant != "Starbucks" {
		t.Errorf("expected merchant Starbucks, got %v", out[1].Merchant)
	}
}

func TestApplyAttachesStoredOverride(t *testing.T) {
	r := row("a", "Corner Bistro", "-20.00", models.KindCardPurchase)
	snap := NewSnapshot(nil, nil, []models.Override{{OverrideKey: r.OverrideKey(), Category: "Dining"}})

	out := snap.Apply([]models.Transaction{r})
	if out[0].CategoryOverride == nil || *out[0].CategoryOverride != "Dining" {
		t.Errorf("expected stored override to be attached, got %v", out[0].CategoryOverride)
	}
}

func TestApplyCashBackBucket(t *testing.T) {
	r := row("a", "Purchase with Cash Back $60.00 authorized on 06/27 Food Lion Card 5280 (cash back $60.00)", "-60.00", models.KindCashBack)
	snap := NewSnapshot(nil, []models.CategoryRule{{Key: "alias:food lion", Category: "Groceries", Source: models.SourceMerchant}}, nil)

	out := snap.Apply([]models.Transaction{r})
	if out[0].Category != models.CategoryCashBack {
		t.Errorf("cash back rows stay in the cash back bucket, got %s", out[0].Category)
	}
}

func TestLearn(t *testing.T) {
	merchant := "Food Lion"
	rules := Learn("Food Lion #1234", Resolution{Merchant: &merchant, MerchantSource: models.SourceMerchant}, "Groceries")
	if len(rules) != 1 || rules[0].Key != "alias:food lion" || rules[0].Source != models.SourceMerchant {
		t.Errorf("unexpected learned rules %v", rules)
	}

	rules = Learn("Purchase authorized on 06/20 Joe's Crab Shack Card 5280", Resolution{}, "Dining")
	if len(rules) != 1 || rules[0].Key != "tok:joe crab" {
		t.Errorf("expected bigram rule, got %v", rules)
	}

	if rules := Learn("Card 5280", Resolution{}, "Dining"); rules != nil {
		t.Errorf("nothing to learn from a bare card suffix, got %v", rules)
	}
}

func TestCorrect(t *testing.T) {
	rows := []models.Transaction{
		row("a", "Purchase authorized on 06/20 Joe's Crab Shack Card 5280", "-42.10", models.KindCardPurchase),
		row("b", "Purchase authorized on 06/27 Joe's Crab Shack Card 5280", "-18.00", models.KindCardPurchase),
	}
	snap := NewSnapshot(nil, nil, nil)

	c, err := snap.Correct(rows, "a", "Dining")
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if c.Rows[0].CategoryOverride == nil || *c.Rows[0].CategoryOverride != "Dining" {
		t.Errorf("expected override on corrected row")
	}
	if c.Rows[1].CategoryOverride != nil || c.Rows[1].Category != "Dining" {
		t.Errorf("learned rule should categorize the sibling row, got %+v", c.Rows[1])
	}
	if len(c.Learned) != 1 {
		t.Errorf("expected one learned rule, got %v", c.Learned)
	}
	if rows[0].CategoryOverride != nil {
		t.Error("input rows must not be mutated")
	}

	if _, err := snap.Correct(rows, "missing", "Dining"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestMergeCategoryRules(t *testing.T) {
	merged := MergeCategoryRules(
		[]models.CategoryRule{{Key: "tok:gas station", Category: "Fuel"}, {Key: "alias:target", Category: "Shopping"}},
		[]models.CategoryRule{{Key: "alias:target", Category: "Household"}, {Key: "tok:joe crab", Category: "Dining"}},
	)
	if len(merged) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(merged))
	}
	if merged[1].Category != "Household" {
		t.Errorf("learned rule should replace existing key, got %s", merged[1].Category)
	}

	key := models.OverrideKey{Date: "2025-06-26", Descriptor: "x", Amount: "-1.00"}
	overrides := MergeOverrides([]models.Override{{OverrideKey: key, Category: "A"}}, models.Override{OverrideKey: key, Category: "B"})
	if len(overrides) != 1 || overrides[0].Category != "B" {
		t.Errorf("override should be replaced, got %v", overrides)
	}
}

func TestCleanDescriptor(t *testing.T) {
	got := CleanDescriptor("Purchase authorized on 06/25 City of Norfolk Norfolk VA S385176584765712 Card 5280")
	if got != "City of Norfolk Norfolk VA" {
		t.Errorf("unexpected clean descriptor %q", got)
	}
}
