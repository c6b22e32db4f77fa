package parsers

import (
	"regexp"
	"strings"

	"statement-ledger/internal/canon"
	"statement-ledger/internal/models"
)

var (
	cardLast4Re     = regexp.MustCompile(`(?i)\bcard\s+(\d{4})\b`)
	authCodeRe      = regexp.MustCompile(`(?i)\b([sp]\d{9,})\b`)
	nonAlnumSpaceRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeDescriptor lowercases a descriptor, drops the auth code and
// collapses punctuation and whitespace.
func NormalizeDescriptor(descriptor string) string {
	s := strings.ToLower(descriptor)
	s = authCodeRe.ReplaceAllString(s, " ")
	s = nonAlnumSpaceRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// KeyFor builds the dedup key of a candidate
func KeyFor(c models.Candidate) models.DedupKey {
	key := models.DedupKey{
		Date:       models.FormatDate(c.Date),
		Kind:       c.Kind,
		Descriptor: NormalizeDescriptor(c.Descriptor),
		Amount:     c.Amount.StringFixed(2),
	}
	if c.AuthCode != nil {
		key.AuthCode = strings.ToUpper(*c.AuthCode)
	}
	if c.CardLast4 != nil {
		key.CardLast4 = *c.CardLast4
	}
	return key
}

// ToTransactions turns candidates into ledger rows. Merchant and category are
// left for the resolver.
func ToTransactions(candidates []models.Candidate) []models.Transaction {
	rows := make([]models.Transaction, 0, len(candidates))
	for _, c := range candidates {
		key := KeyFor(c)
		category := models.CategoryUncategorized
		if c.Kind == models.KindCashBack {
			category = models.CategoryCashBack
		}
		rows = append(rows, models.Transaction{
			ID:          key.ID(),
			Date:        c.Date,
			Description: c.Descriptor,
			Amount:      c.Amount,
			Category:    category,
			CardLast4:   c.CardLast4,
			Cashback:    c.Cashback,
			Balance:     c.Balance,
			Kind:        c.Kind,
			Recurring:   canon.RecurringPattern.MatchString(c.Descriptor),
			Notes:       c.Notes,
			DedupKey:    key.String(),
		})
	}
	return rows
}

func findCardLast4(text string) *string {
	if m := cardLast4Re.FindStringSubmatch(text); m != nil {
		v := m[1]
		return &v
	}
	return nil
}

func findAuthCode(text string) *string {
	if m := authCodeRe.FindStringSubmatch(text); m != nil {
		v := strings.ToUpper(m[1])
		return &v
	}
	return nil
}
