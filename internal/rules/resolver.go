package rules

import (
	"fmt"
	"strings"

	"statement-ledger/internal/canon"
	"statement-ledger/internal/models"
)

// Resolution is the merchant and category chosen for one descriptor
type Resolution struct {
	Merchant       *string
	MerchantSource models.RuleSource
	Category       string
	// RuleKey is the category rule that matched, empty for signal categories
	RuleKey string
}

// ResolveMerchant tries user aliases, then the canon table
func (s *Snapshot) ResolveMerchant(descriptor string) (*string, models.RuleSource) {
	lower := strings.ToLower(descriptor)
	for _, a := range s.aliases {
		if a.matches(lower) {
			label := a.rule.Label
			return &label, models.SourceAlias
		}
	}
	if name, ok := canon.CanonicalMerchant(descriptor); ok {
		return &name, models.SourceMerchant
	}
	return nil, ""
}

// LookupKeys returns the category rule keys for a descriptor in lookup order:
// alias key, bigram token key, unigram token key.
func LookupKeys(descriptor string, merchant *string) []string {
	var keys []string
	if merchant != nil {
		keys = append(keys, AliasKey(*merchant))
	}
	return append(keys, TokenKeys(descriptor)...)
}

// Resolve picks a merchant and a category for a descriptor
func (s *Snapshot) Resolve(descriptor string) Resolution {
	merchant, source := s.ResolveMerchant(descriptor)
	res := Resolution{Merchant: merchant, MerchantSource: source}

	for _, key := range LookupKeys(descriptor, merchant) {
		if rule, ok := s.categoryRules[key]; ok {
			res.Category = rule.Category
			res.RuleKey = key
			return res
		}
	}

	res.Category = canon.SignalCategoryFor(descriptor)
	return res
}

// Apply resolves every row and returns updated copies. Rows with a category
// override keep their category untouched; overrides held by the snapshot are
// attached first. Cash-back rows always stay in the cash-back bucket.
func (s *Snapshot) Apply(rows []models.Transaction) []models.Transaction {
	out := make([]models.Transaction, len(rows))
	for i, row := range rows {
		if row.CategoryOverride == nil {
			if category, ok := s.overrides[row.OverrideKey()]; ok {
				c := category
				row.CategoryOverride = &c
			}
		}

		res := s.Resolve(row.Description)
		row.Merchant = res.Merchant

		switch {
		case row.CategoryOverride != nil:
		case row.Kind == models.KindCashBack:
			row.Category = models.CategoryCashBack
		default:
			row.Category = res.Category
		}
		out[i] = row
	}
	return out
}

// Learn derives category rules from a user's category decision. A row with a
// merchant teaches its alias key; otherwise the most specific token key is used.
// Weak keys are never learned.
func Learn(descriptor string, res Resolution, category string) []models.CategoryRule {
	if strings.TrimSpace(category) == "" {
		return nil
	}
	if res.Merchant != nil {
		source := res.MerchantSource
		if source == "" {
			source = models.SourceMerchant
		}
		return []models.CategoryRule{{Key: AliasKey(*res.Merchant), Category: category, Source: source}}
	}
	for _, key := range TokenKeys(descriptor) {
		if !IsWeakKey(key) {
			return []models.CategoryRule{{Key: key, Category: category, Source: models.SourceToken}}
		}
	}
	return nil
}

// Correction is the outcome of a user category decision on one row
type Correction struct {
	Rows     []models.Transaction
	Override models.Override
	Learned  []models.CategoryRule
	Snapshot *Snapshot
}

// Correct sets the category override on the row with id, learns rules from it
// and re-applies the extended snapshot to all rows.
func (s *Snapshot) Correct(rows []models.Transaction, id, category string) (*Correction, error) {
	idx := -1
	for i := range rows {
		if rows[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no row with id %s", id)
	}

	target := rows[idx]
	override := models.Override{OverrideKey: target.OverrideKey(), Category: category}
	learned := Learn(target.Description, s.Resolve(target.Description), category)

	next := s.WithOverride(override).WithRules(learned)

	updated := make([]models.Transaction, len(rows))
	copy(updated, rows)
	c := category
	updated[idx].CategoryOverride = &c

	return &Correction{
		Rows:     next.Apply(updated),
		Override: override,
		Learned:  learned,
		Snapshot: next,
	}, nil
}
