package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the ISO layout used for every date the ledger emits
const DateLayout = "2006-01-02"

// UnknownDate is rendered for rows whose posting date could not be resolved
const UnknownDate = "unknown"

// Kind identifies how a statement line was recognized as a transaction
type Kind string

const (
	KindDeposit          Kind = "deposit"
	KindCardPurchase     Kind = "card_purchase"
	KindCashbackPurchase Kind = "cashback_purchase"
	KindBillPayment      Kind = "bill_payment"
	// KindCashBack is the cash portion split out of a cashback purchase
	KindCashBack Kind = "cash_back"
)

// IsValid checks if the kind is one of the known values
func (k Kind) IsValid() bool {
	switch k {
	case KindDeposit, KindCardPurchase, KindCashbackPurchase, KindBillPayment, KindCashBack:
		return true
	default:
		return false
	}
}

// CategoryUncategorized is the sentinel assigned when no rule or signal applies
const CategoryUncategorized = "Uncategorized"

// CategoryCashBack is forced onto the cash portion of a cashback split
const CategoryCashBack = "Cash Back"

// Candidate is a transaction as first recognized by the extractor, before
// merchant and category resolution.
type Candidate struct {
	Date       time.Time
	Descriptor string
	Amount     decimal.Decimal
	Kind       Kind
	CardLast4  *string
	AuthCode   *string
	Cashback   *decimal.Decimal
	Balance    *decimal.Decimal
	Notes      []string
	Page       int
	Line       int
}

// DedupKey is the identity of a transaction across extraction passes
type DedupKey struct {
	Date       string
	Kind       Kind
	Descriptor string
	AuthCode   string
	CardLast4  string
	Amount     string
}

// String joins the key parts into a single comparable value
func (k DedupKey) String() string {
	return strings.Join([]string{k.Date, string(k.Kind), k.Descriptor, k.AuthCode, k.CardLast4, k.Amount}, "|")
}

// ID derives a stable row id from the key
func (k DedupKey) ID() string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(k.String())).String()
}

// Transaction is the canonical ledger row. Amount is positive for money in
// and negative for money out.
type Transaction struct {
	ID                 string           `json:"id"`
	Date               time.Time        `json:"date"`
	Description        string           `json:"description"`
	Amount             decimal.Decimal  `json:"amount"`
	Category           string           `json:"category"`
	CategoryOverride   *string          `json:"categoryOverride,omitempty"`
	Merchant           *string          `json:"merchant,omitempty"`
	CardLast4          *string          `json:"cardLast4,omitempty"`
	Cashback           *decimal.Decimal `json:"cashback,omitempty"`
	Balance            *decimal.Decimal `json:"balance,omitempty"`
	ExcludedFromTotals bool             `json:"excludedFromTotals"`
	Kind               Kind             `json:"kind"`
	Recurring          bool             `json:"recurring"`
	Notes              []string         `json:"notes,omitempty"`
	DedupKey           string           `json:"dedupKey"`
}

// EffectiveCategory returns the override when one is set
func (t *Transaction) EffectiveCategory() string {
	if t.CategoryOverride != nil {
		return *t.CategoryOverride
	}
	return t.Category
}

// IsCredit reports whether the row brings money in
func (t *Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// DateString formats the posting date, or UnknownDate
func (t *Transaction) DateString() string {
	return FormatDate(t.Date)
}

// OverrideKey returns the key user category overrides are stored under
func (t *Transaction) OverrideKey() OverrideKey {
	return OverrideKey{
		Date:       t.DateString(),
		Descriptor: t.Description,
		Amount:     t.Amount.StringFixed(2),
	}
}

// String returns a short representation of the row
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Date: %s, Amount: %s, Description: %s, Category: %s}",
		t.DateString(), t.Amount.StringFixed(2), t.Description, t.EffectiveCategory())
}

// MarshalJSON renders the date as YYYY-MM-DD and money with two decimals
func (t Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	var cashback, balance *string
	if t.Cashback != nil {
		s := t.Cashback.StringFixed(2)
		cashback = &s
	}
	if t.Balance != nil {
		s := t.Balance.StringFixed(2)
		balance = &s
	}
	return json.Marshal(&struct {
		Date     string  `json:"date"`
		Amount   string  `json:"amount"`
		Cashback *string `json:"cashback,omitempty"`
		Balance  *string `json:"balance,omitempty"`
		Alias
	}{
		Date:     FormatDate(t.Date),
		Amount:   t.Amount.StringFixed(2),
		Cashback: cashback,
		Balance:  balance,
		Alias:    Alias(t),
	})
}

// UnmarshalJSON reverses MarshalJSON, used when snapshots are reloaded
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Date     string  `json:"date"`
		Amount   string  `json:"amount"`
		Cashback *string `json:"cashback,omitempty"`
		Balance  *string `json:"balance,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if t.Date, err = ParseDate(aux.Date); err != nil {
		return err
	}
	if t.Amount, err = ParseAmount(aux.Amount); err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}
	if t.Cashback, err = parseOptionalAmount(aux.Cashback); err != nil {
		return fmt.Errorf("invalid cashback format: %w", err)
	}
	if t.Balance, err = parseOptionalAmount(aux.Balance); err != nil {
		return fmt.Errorf("invalid balance format: %w", err)
	}
	return nil
}

func parseOptionalAmount(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := ParseAmount(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// AliasMode controls how an alias pattern is matched against a descriptor
type AliasMode string

const (
	AliasContains   AliasMode = "contains"
	AliasStartsWith AliasMode = "startsWith"
	AliasRegex      AliasMode = "regex"
)

// IsValid checks if the mode is supported
func (m AliasMode) IsValid() bool {
	return m == AliasContains || m == AliasStartsWith || m == AliasRegex
}

// AliasRule maps matching descriptors onto a user-chosen merchant label
type AliasRule struct {
	Pattern string    `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
	Label   string    `json:"label" yaml:"label" mapstructure:"label"`
	Mode    AliasMode `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// Validate checks the rule is usable
func (r AliasRule) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("alias pattern cannot be empty")
	}
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("alias label cannot be empty")
	}
	if !r.Mode.IsValid() {
		return fmt.Errorf("invalid alias mode: %s", r.Mode)
	}
	return nil
}

// RuleSource records where a learned category rule came from
type RuleSource string

const (
	SourceAlias    RuleSource = "alias"
	SourceMerchant RuleSource = "merchant"
	SourceToken    RuleSource = "token"
)

// CategoryRule assigns a category to every row whose lookup key matches
type CategoryRule struct {
	Key      string     `json:"key" yaml:"key"`
	Category string     `json:"category" yaml:"category"`
	Source   RuleSource `json:"source" yaml:"source"`
}

// OverrideKey identifies a row for a user category override
type OverrideKey struct {
	Date       string `json:"date" yaml:"date"`
	Descriptor string `json:"descriptor" yaml:"descriptor"`
	Amount     string `json:"amount" yaml:"amount"`
}

// Override is a persisted per-row category decision
type Override struct {
	OverrideKey `yaml:",inline"`
	Category    string `json:"category" yaml:"category"`
}

// DailyBalance is the account balance at the close of a date
type DailyBalance struct {
	Date    time.Time       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// MarshalJSON renders the balance in ledger formats
func (d DailyBalance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date    string `json:"date"`
		Balance string `json:"balance"`
	}{FormatDate(d.Date), d.Balance.StringFixed(2)})
}

// UnmarshalJSON reverses MarshalJSON
func (d *DailyBalance) UnmarshalJSON(data []byte) error {
	var aux struct {
		Date    string `json:"date"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if d.Date, err = ParseDate(aux.Date); err != nil {
		return err
	}
	d.Balance, err = ParseAmount(aux.Balance)
	return err
}

// ReconciliationResult is the outcome of comparing computed totals to
// statement-declared totals. Deltas are computed minus declared, in cents,
// and are nil when no declared total was supplied.
type ReconciliationResult struct {
	IncomeDeltaCents         *int64   `json:"incomeDeltaCents"`
	ExpenseDeltaCents        *int64   `json:"expenseDeltaCents"`
	IncomeDeltaBeforeCents   *int64   `json:"incomeDeltaBeforeCents"`
	ExpenseDeltaBeforeCents  *int64   `json:"expenseDeltaBeforeCents"`
	ComputedIncomeCents      int64    `json:"computedIncomeCents"`
	ComputedExpenseCents     int64    `json:"computedExpenseCents"`
	ExcludedRows             []string `json:"excludedRows"`
	Steps                    []string `json:"steps,omitempty"`
}

// BalanceMismatch describes the first day the computed running balance
// disagreed with the statement's own daily balance table.
type BalanceMismatch struct {
	Date         time.Time       `json:"date"`
	Computed     decimal.Decimal `json:"computed"`
	Declared     decimal.Decimal `json:"declared"`
	Difference   decimal.Decimal `json:"difference"`
	Transactions []Transaction   `json:"transactions"`
}

// MarshalJSON renders the mismatch in ledger formats
func (m BalanceMismatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date         string        `json:"date"`
		Computed     string        `json:"computed"`
		Declared     string        `json:"declared"`
		Difference   string        `json:"difference"`
		Transactions []Transaction `json:"transactions"`
	}{
		Date:         FormatDate(m.Date),
		Computed:     m.Computed.StringFixed(2),
		Declared:     m.Declared.StringFixed(2),
		Difference:   m.Difference.StringFixed(2),
		Transactions: m.Transactions,
	})
}

// DeclaredInputs are the figures a statement claims about itself
type DeclaredInputs struct {
	Year            int              `json:"year"`
	OpeningBalance  *decimal.Decimal `json:"openingBalance,omitempty"`
	ExpectedIncome  *decimal.Decimal `json:"expectedIncome,omitempty"`
	ExpectedExpense *decimal.Decimal `json:"expectedExpense,omitempty"`
	DailyBalances   []DailyBalance   `json:"dailyBalances,omitempty"`
}

// Merge fills unset fields from other. Explicit values win.
func (d DeclaredInputs) Merge(other DeclaredInputs) DeclaredInputs {
	if d.Year == 0 {
		d.Year = other.Year
	}
	if d.OpeningBalance == nil {
		d.OpeningBalance = other.OpeningBalance
	}
	if d.ExpectedIncome == nil {
		d.ExpectedIncome = other.ExpectedIncome
	}
	if d.ExpectedExpense == nil {
		d.ExpectedExpense = other.ExpectedExpense
	}
	if len(d.DailyBalances) == 0 {
		d.DailyBalances = other.DailyBalances
	}
	return d
}

// StatementSnapshot is the persisted state of one imported statement
type StatementSnapshot struct {
	ID               string         `json:"id"`
	ExtractorVersion int            `json:"extractorVersion"`
	Sources          []string       `json:"sources"`
	Pages            []string       `json:"pages"`
	Rows             []Transaction  `json:"rows"`
	Declared         DeclaredInputs `json:"declared"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// FormatDate formats a posting date, returning UnknownDate for the zero time
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return UnknownDate
	}
	return t.Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD date; UnknownDate and "" yield the zero time
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == UnknownDate {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseAmount parses a statement amount, tolerating a currency symbol,
// thousands separators and surrounding whitespace.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(cleaned)
}

// ToCents converts a decimal amount to integer cents, rounding half away from zero
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts integer cents back to a decimal amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
