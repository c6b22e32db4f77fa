// Package reporter renders verified statement ledgers.
//
// A Document bundles the rows, reconciliation result, balance check and
// diagnostics of one statement together with a Summary. Documents are
// written as JSON or CSV, and the Summary is printed to the console with
// PASS/FAIL markers for the declared totals.
//
// Example usage:
//
//	doc := reporter.NewDocument(outcome, "2024-06", sources)
//	generator, err := reporter.NewReportGenerator(nil)
//	err = generator.GenerateReport(doc, file)
//	generator.WriteSummary(doc, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/reconciler"
	"statement-ledger/internal/rules"

	"github.com/fatih/color"
)

// OutputFormat represents the supported document formats
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// FormatForPath picks the format for an output file. An explicit format
// wins; otherwise the extension decides and anything but .csv is JSON.
func FormatForPath(path, explicit string) (OutputFormat, error) {
	if explicit != "" {
		f := OutputFormat(strings.ToLower(explicit))
		if !f.IsValid() {
			return "", fmt.Errorf("unsupported output format: %s", explicit)
		}
		return f, nil
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV, nil
	}
	return FormatJSON, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// UseColors enables PASS/FAIL colors in the console summary
	UseColors bool `json:"use_colors"`

	// ToleranceCents is the largest delta still shown as PASS
	ToleranceCents int64 `json:"tolerance_cents"`

	// MaxDiagnostics limits diagnostics echoed in the summary, 0 prints none
	MaxDiagnostics int `json:"max_diagnostics"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:         FormatJSON,
		UseColors:      true,
		ToleranceCents: 1,
		MaxDiagnostics: 5,
		CSVDelimiter:   ',',
		CSVHeaders:     true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.ToleranceCents < 0 {
		return fmt.Errorf("tolerance cannot be negative, got %d", c.ToleranceCents)
	}
	if c.MaxDiagnostics < 0 {
		return fmt.Errorf("max diagnostics cannot be negative, got %d", c.MaxDiagnostics)
	}
	return nil
}

// Summary is the headline figures for one statement
type Summary struct {
	Rows          int                     `json:"rows"`
	IncomeTotal   string                  `json:"incomeTotal"`
	ExpenseTotal  string                  `json:"expenseTotal"`
	Recurring     int                     `json:"recurring"`
	Cashback      int                     `json:"cashback"`
	Excluded      int                     `json:"excluded"`
	Diagnostics   int                     `json:"diagnostics"`
	IncomeDelta   *int64                  `json:"incomeDeltaCents"`
	ExpenseDelta  *int64                  `json:"expenseDeltaCents"`
	BalanceDays   int                     `json:"balanceDaysChecked"`
	FirstMismatch *models.BalanceMismatch `json:"firstMismatch,omitempty"`
}

// Summarize computes the summary of an outcome. Totals leave out rows
// excluded by reconciliation.
func Summarize(outcome *reconciler.Outcome) *Summary {
	income, expense := reconciler.Totals(outcome.Rows)
	s := &Summary{
		Rows:         len(outcome.Rows),
		IncomeTotal:  models.FromCents(income).StringFixed(2),
		ExpenseTotal: models.FromCents(expense).StringFixed(2),
		Diagnostics:  len(outcome.Diagnostics),
	}
	for i := range outcome.Rows {
		row := &outcome.Rows[i]
		if row.Recurring {
			s.Recurring++
		}
		if row.Kind == models.KindCashBack {
			s.Cashback++
		}
		if row.ExcludedFromTotals {
			s.Excluded++
		}
	}
	if r := outcome.Reconciliation; r != nil {
		s.IncomeDelta = r.IncomeDeltaCents
		s.ExpenseDelta = r.ExpenseDeltaCents
	}
	if b := outcome.Balance; b != nil {
		s.BalanceDays = b.Checked
		s.FirstMismatch = b.FirstMismatch
	}
	return s
}

// Document is the output of one statement run
type Document struct {
	Statement   string    `json:"statement,omitempty"`
	Sources     []string  `json:"sources"`
	GeneratedAt time.Time `json:"generatedAt"`
	Summary     *Summary  `json:"summary"`
	*reconciler.Outcome
}

// NewDocument wraps an outcome for output
func NewDocument(outcome *reconciler.Outcome, statement string, sources []string) *Document {
	if sources == nil {
		sources = []string{}
	}
	return &Document{
		Statement:   statement,
		Sources:     sources,
		GeneratedAt: time.Now().UTC(),
		Summary:     Summarize(outcome),
		Outcome:     outcome,
	}
}

// ReportGenerator writes statement documents and console summaries
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes the document in the configured format
func (rg *ReportGenerator) GenerateReport(doc *Document, writer io.Writer) error {
	if doc == nil || doc.Outcome == nil {
		return fmt.Errorf("document cannot be nil")
	}

	switch rg.config.Format {
	case FormatJSON:
		return rg.generateJSONReport(doc, writer)
	case FormatCSV:
		return rg.generateCSVReport(doc, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateJSONReport(doc *Document, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// csvHeaders are the columns of the CSV rows export
var csvHeaders = []string{
	"id", "date", "description", "amount", "category", "merchant",
	"kind", "card_last4", "cashback", "balance", "excluded", "recurring", "notes",
}

func (rg *ReportGenerator) generateCSVReport(doc *Document, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for i := range doc.Rows {
		row := &doc.Rows[i]
		record := []string{
			row.ID,
			row.DateString(),
			row.Description,
			row.Amount.StringFixed(2),
			row.EffectiveCategory(),
			displayName(row),
			string(row.Kind),
			deref(row.CardLast4),
			"",
			"",
			fmt.Sprintf("%t", row.ExcludedFromTotals),
			fmt.Sprintf("%t", row.Recurring),
			strings.Join(row.Notes, "; "),
		}
		if row.Cashback != nil {
			record[8] = row.Cashback.StringFixed(2)
		}
		if row.Balance != nil {
			record[9] = row.Balance.StringFixed(2)
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", row.ID, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// WriteSummary prints the console summary of a document
func (rg *ReportGenerator) WriteSummary(doc *Document, writer io.Writer) {
	s := doc.Summary
	if s == nil {
		s = Summarize(doc.Outcome)
	}

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	if doc.Statement != "" {
		fmt.Fprintf(writer, "Statement:       %s\n", doc.Statement)
	}
	fmt.Fprintf(writer, "Rows:            %d\n", s.Rows)
	fmt.Fprintf(writer, "Income total:    %s\n", s.IncomeTotal)
	fmt.Fprintf(writer, "Expense total:   %s\n", s.ExpenseTotal)
	fmt.Fprintf(writer, "Recurring rows:  %d\n", s.Recurring)
	fmt.Fprintf(writer, "Cashback rows:   %d\n", s.Cashback)
	if s.Excluded > 0 {
		fmt.Fprintf(writer, "Excluded rows:   %d\n", s.Excluded)
	}
	fmt.Fprintf(writer, "Income delta:    %s\n", rg.deltaLine(s.IncomeDelta))
	fmt.Fprintf(writer, "Expense delta:   %s\n", rg.deltaLine(s.ExpenseDelta))

	switch {
	case doc.Balance == nil:
		fmt.Fprintf(writer, "Daily balances:  not checked (no opening balance)\n")
	case s.FirstMismatch == nil:
		fmt.Fprintf(writer, "Daily balances:  %s (%d days)\n", rg.marker(true), s.BalanceDays)
	default:
		m := s.FirstMismatch
		fmt.Fprintf(writer, "Daily balances:  %s first mismatch %s computed %s declared %s (off by %s)\n",
			rg.marker(false), models.FormatDate(m.Date),
			m.Computed.StringFixed(2), m.Declared.StringFixed(2), m.Difference.StringFixed(2))
		for _, row := range m.Transactions {
			fmt.Fprintf(writer, "  %s %12s  %s\n", row.DateString(), row.Amount.StringFixed(2), displayName(&row))
		}
	}

	if r := doc.Reconciliation; r != nil && len(r.Steps) > 0 {
		fmt.Fprintf(writer, "\nReconciliation steps:\n")
		for _, step := range r.Steps {
			fmt.Fprintf(writer, "  - %s\n", step)
		}
	}

	if s.Diagnostics > 0 && rg.config.MaxDiagnostics > 0 {
		fmt.Fprintf(writer, "\nDiagnostics (%d):\n", s.Diagnostics)
		for _, line := range parsers.SampleDiagnostics(doc.Diagnostics, rg.config.MaxDiagnostics) {
			fmt.Fprintf(writer, "  %s\n", line)
		}
		if s.Diagnostics > rg.config.MaxDiagnostics {
			fmt.Fprintf(writer, "  ... and %d more\n", s.Diagnostics-rg.config.MaxDiagnostics)
		}
	}
}

func (rg *ReportGenerator) deltaLine(delta *int64) string {
	if delta == nil {
		return "n/a (no declared total)"
	}
	d := *delta
	pass := d <= rg.config.ToleranceCents && d >= -rg.config.ToleranceCents
	return fmt.Sprintf("%s %s", models.FromCents(d).StringFixed(2), rg.marker(pass))
}

func (rg *ReportGenerator) marker(pass bool) string {
	c := color.New(color.FgRed, color.Bold)
	text := "FAIL"
	if pass {
		c = color.New(color.FgGreen, color.Bold)
		text = "PASS"
	}
	if !rg.config.UseColors {
		c.DisableColor()
	}
	return c.Sprint(text)
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

// displayName is the resolved merchant, or the cleaned descriptor when no
// alias or canon entry matched
func displayName(row *models.Transaction) string {
	if row.Merchant != nil {
		return *row.Merchant
	}
	return rules.CleanDescriptor(row.Description)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
