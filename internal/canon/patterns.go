package canon

import (
	"regexp"

	"statement-ledger/internal/models"
)

var (
	// CashbackPattern marks a card purchase that includes cash back
	CashbackPattern = regexp.MustCompile(`(?i)\bpurchase\s+(?:with|w/)\s*cash\s*back\b`)

	// CashbackAmountPattern captures the declared cash-back sub-amount
	CashbackAmountPattern = regexp.MustCompile(`(?i)\bcash\s*back\s*(?:of\s*)?\$?\s*(\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2})`)

	depositPattern = regexp.MustCompile(`(?i)\b(?:payroll|direct\s+dep(?:osit)?|ach\s+credit|zelle\s+(?:payment\s+)?from|(?:us\s+)?treas(?:ury)?|ssa\s+treas|irs\s+treas|mobile\s+deposit|edeposit|branch\s+deposit|deposit\s+made\s+in\s+a\s+branch|atm\s+(?:cash\s+)?deposit|(?:online\s+)?transfer\s+from|interest\s+payment)\b`)

	billPattern = regexp.MustCompile(`(?i)\b(?:verizon|comcast|xfinity|dominion\s+energy|duke\s+energy|spectrum|geico|state\s+farm|progressive|allstate|t-mobile|att\s+(?:bill|payment)|hrsd|(?:online\s+)?transfer\s+to|zelle\s+(?:payment\s+)?to|ach\s+debit|bill\s+pay(?:ment)?|recurring\s+payment|autopay|monthly\s+service\s+fee|overdraft\s+fee|atm\s+withdrawal|(?:credit\s+)?(?:card|crd)\s+(?:payment|pmt|epay)|e-?payment|check\s+#?\d+)\b`)

	cardPattern = regexp.MustCompile(`(?i)\bcard\s+\d{4}\b|\bauthorized\s+on\b`)

	cardSuffixPattern = regexp.MustCompile(`(?i)\bcard\s+\d{4}\b`)
)

// KindRule pairs a descriptor pattern with the kind it selects
type KindRule struct {
	Name    string
	Pattern *regexp.Regexp
	Kind    models.Kind
}

// KindRules is the kind precedence: cashback, deposit, bill or debit memo,
// generic card purchase. A descriptor matching none of them is not a transaction.
var KindRules = []KindRule{
	{"cashback-purchase", CashbackPattern, models.KindCashbackPurchase},
	{"deposit", depositPattern, models.KindDeposit},
	{"bill-vendor", billPattern, models.KindBillPayment},
	{"card-purchase", cardPattern, models.KindCardPurchase},
}

// ClassifyKind returns the kind of the first matching rule
func ClassifyKind(descriptor string) (models.Kind, bool) {
	for _, rule := range KindRules {
		if rule.Pattern.MatchString(descriptor) {
			return rule.Kind, true
		}
	}
	return "", false
}

// OpensTransaction reports whether a line starts a row of its own. A card
// suffix alone marks continuation text such as a wrapped merchant and city.
func OpensTransaction(line string) bool {
	_, ok := ClassifyKind(cardSuffixPattern.ReplaceAllString(line, " "))
	return ok
}

var creditPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:online\s+)?transfer\s+from\b`),
	regexp.MustCompile(`(?i)\bzelle\s+(?:payment\s+)?from\b`),
	regexp.MustCompile(`(?i)\bach\s+credit\b`),
	regexp.MustCompile(`(?i)\b(?:treas(?:ury)?|ssa|irs)\b`),
	regexp.MustCompile(`(?i)\b(?:refund|reversal|reversed|return|returned)\b`),
	regexp.MustCompile(`(?i)\binterest\s+(?:payment|credit|paid|earned)\b`),
	depositPattern,
}

var debitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:online\s+)?transfer\s+to\b`),
	regexp.MustCompile(`(?i)\bzelle\s+(?:payment\s+)?to\b`),
	regexp.MustCompile(`(?i)\bach\s+debit\b`),
	regexp.MustCompile(`(?i)\b(?:credit\s+)?(?:card|crd)\s+(?:bill\s+)?(?:payment|pmt|epay)\b|\bcrcardpmt\b`),
}

// IsCredit applies the sign rules to a non-cashback descriptor. Debit rules
// are checked last and win over credit rules.
func IsCredit(descriptor string) bool {
	credit := false
	for _, p := range creditPatterns {
		if p.MatchString(descriptor) {
			credit = true
			break
		}
	}
	for _, p := range debitPatterns {
		if p.MatchString(descriptor) {
			return false
		}
	}
	return credit
}

var (
	// InternalTransferPattern matches movements between the account holder's own accounts
	InternalTransferPattern = regexp.MustCompile(`(?i)\b(?:online\s+|mobile\s+)?transfer\s+(?:to|from)\b.*\b(?:savings|checking|way2save|acct|account|x{3,}\d{4})\b`)

	// StrongDepositPattern matches credits that are almost certainly real income
	StrongDepositPattern = regexp.MustCompile(`(?i)\b(?:payroll|direct\s+dep(?:osit)?|ach\s+credit|ssa|treas(?:ury)?|irs|interest|dividend|edeposit|mobile\s+deposit|branch\s+deposit)\b`)

	// RecurringPattern marks rows the statement labels as recurring
	RecurringPattern = regexp.MustCompile(`(?i)\brecurring\s+(?:payment|transfer|charge)\b|\bauto\s*pay\b`)
)

// SignalCategory is a hard-coded fallback used when no learned rule matches
type SignalCategory struct {
	Pattern  *regexp.Regexp
	Category string
}

// SignalCategories are checked in order. Transfers come first and map to
// Uncategorized so they are never guessed into a spending bucket.
var SignalCategories = []SignalCategory{
	{regexp.MustCompile(`(?i)\b(?:transfer|xfer|zelle|venmo)\b`), models.CategoryUncategorized},
	{regexp.MustCompile(`(?i)\b(?:payroll|direct\s+dep(?:osit)?|ach\s+credit|salary|ssa|treas(?:ury)?|irs)\b`), "Income"},
	{regexp.MustCompile(`(?i)\binterest\s+(?:payment|credit|paid|earned)\b`), "Interest"},
	{regexp.MustCompile(`(?i)\b(?:monthly\s+service\s+fee|overdraft\s+fee|nsf\s+fee|atm\s+fee|service\s+charge|wire\s+fee|foreign\s+transaction\s+fee)\b`), "Fees"},
}

// SignalCategoryFor returns the first signal category matching the descriptor,
// or CategoryUncategorized.
func SignalCategoryFor(descriptor string) string {
	for _, s := range SignalCategories {
		if s.Pattern.MatchString(descriptor) {
			return s.Category
		}
	}
	return models.CategoryUncategorized
}
