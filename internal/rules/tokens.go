package rules

import (
	"regexp"
	"strings"

	"statement-ledger/internal/canon"
)

const (
	// AliasKeyPrefix prefixes category rule keys derived from a merchant label
	AliasKeyPrefix = "alias:"
	// TokenKeyPrefix prefixes category rule keys derived from descriptor tokens
	TokenKeyPrefix = "tok:"
)

var (
	cardSuffixRe  = regexp.MustCompile(`(?i)\bcard\s+\d{4}\b`)
	authCodeRe    = regexp.MustCompile(`(?i)\b[sp]\d{9,}\b`)
	leadingDateRe = regexp.MustCompile(`^\s*\d{1,2}/\d{1,2}(?:/\d{2,4})?\s+`)
	nonLetterRe   = regexp.MustCompile(`[^a-z]+`)

	authorizedPrefixRe = regexp.MustCompile(`(?i)^(?:recurring\s+)?(?:purchase|payment)(?:\s+return)?\s+authorized\s+on\s+\d{1,2}/\d{1,2}\s+`)
)

// Tokens lowercases a descriptor, cuts it at the card suffix or auth code,
// strips digits and punctuation and drops stopwords.
func Tokens(descriptor string) []string {
	s := strings.ToLower(descriptor)
	if loc := cardSuffixRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	if loc := authCodeRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = nonLetterRe.ReplaceAllString(s, " ")

	var tokens []string
	for _, tok := range strings.Fields(s) {
		if len(tok) < 2 || canon.IsStopword(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// TokenKeys returns the bigram key (when two tokens remain) followed by the
// unigram key.
func TokenKeys(descriptor string) []string {
	tokens := Tokens(descriptor)
	switch {
	case len(tokens) == 0:
		return nil
	case len(tokens) == 1:
		return []string{TokenKeyPrefix + tokens[0]}
	default:
		return []string{
			TokenKeyPrefix + tokens[0] + " " + tokens[1],
			TokenKeyPrefix + tokens[0],
		}
	}
}

// AliasKey builds the category rule key for a merchant label
func AliasKey(merchant string) string {
	return AliasKeyPrefix + strings.ToLower(strings.TrimSpace(merchant))
}

// IsWeakKey reports whether a token rule key is too generic to keep: a single
// stopword, or a single token of three characters or fewer.
func IsWeakKey(key string) bool {
	if !strings.HasPrefix(key, TokenKeyPrefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(key, TokenKeyPrefix))
	switch len(fields) {
	case 0:
		return true
	case 1:
		return canon.IsStopword(fields[0]) || len(fields[0]) <= 3
	default:
		return false
	}
}

// CleanDescriptor produces a display name for rows without a merchant
func CleanDescriptor(descriptor string) string {
	s := leadingDateRe.ReplaceAllString(descriptor, "")
	if loc := cardSuffixRe.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = authCodeRe.ReplaceAllString(s, "")
	s = authorizedPrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.Join(strings.Fields(s), " ")
}
