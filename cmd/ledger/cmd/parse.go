package cmd

import (
	"fmt"
	"os"

	"statement-ledger/cmd/ledger/config"
	"statement-ledger/internal/extractor"
	"statement-ledger/internal/models"
	"statement-ledger/internal/reconciler"
	"statement-ledger/internal/reporter"
	"statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// Flags for the parse command
var (
	outputFile      string
	outputFormat    string
	statementID     string
	openingBalance  string
	expectedIncome  string
	expectedExpense string
	noColor         bool
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <statement>...",
	Short: "Parse statements into a verified ledger",
	Long: `Parse reads one or more statement documents (.txt exports split on form
feeds, or .pdf files), extracts every transaction, resolves merchants and
categories, reconciles the totals and checks the daily balances.

The result is written to --output as JSON, or as CSV when the file ends in
.csv or --format csv is given. A summary is printed to the console.

Opening balance, total deposits, total withdrawals and the daily ending
balance table are read from the statement text when present. The flags
below override them.

Examples:
  # Basic parse
  ledger parse june.pdf --output june.json

  # Several pages exported as text, CSV rows
  ledger parse june-1.txt june-2.txt --output june.csv

  # Declared figures from the statement cover page
  ledger parse june.txt --output june.json \
    --opening-balance 1000.00 --expected-income 1500.00 --expected-expense 78.00

  # Keep a snapshot for reparse and correct
  ledger parse june.pdf --output june.json --store ledger.db`,

	Args:    cobra.ArbitraryArgs,
	PreRunE: validateParseFlags,
	RunE:    runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output document path (required)")
	parseCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format: json or csv (default: by extension)")
	parseCmd.Flags().StringVar(&statementID, "statement-id", "", "snapshot id (default: YYYY-MM of most rows)")
	parseCmd.Flags().StringVar(&openingBalance, "opening-balance", "", "opening balance for the daily balance check")
	parseCmd.Flags().StringVar(&expectedIncome, "expected-income", "", "declared total deposits")
	parseCmd.Flags().StringVar(&expectedExpense, "expected-expense", "", "declared total withdrawals")
	parseCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored PASS/FAIL markers")
}

func validateParseFlags(cmd *cobra.Command, args []string) error {
	if outputFile == "" {
		return errors.UsageError(errors.CodeMissingFlag, "output", "")
	}
	if info, err := os.Stat(outputFile); err == nil && info.IsDir() {
		return errors.UsageError(errors.CodeInvalidFlag, "output", outputFile).
			WithSuggestion("--output must be a file path, not a directory")
	}
	if _, err := reporter.FormatForPath(outputFile, outputFormat); err != nil {
		return errors.UsageError(errors.CodeInvalidFlag, "format", outputFormat)
	}

	if len(args) == 0 {
		return errors.UsageError(errors.CodeMissingInput, "statement", "")
	}
	if err := validateInputPaths(args); err != nil {
		return err
	}

	for name, value := range map[string]string{
		"opening-balance":  openingBalance,
		"expected-income":  expectedIncome,
		"expected-expense": expectedExpense,
	} {
		if _, err := config.ParseAmount(value); err != nil {
			return errors.UsageError(errors.CodeInvalidFlag, name, value)
		}
	}
	return nil
}

// validateInputPaths checks every path and reports all failures together
func validateInputPaths(paths []string) error {
	var errs error
	for _, path := range paths {
		errs = multierr.Append(errs, validateFileExists(path))
	}

	all := multierr.Errors(errs)
	switch len(all) {
	case 0:
		return nil
	case 1:
		return all[0]
	default:
		first, _ := errors.AsLedgerError(all[0])
		return errors.Wrap(errs, errors.CategoryFile, first.Code,
			fmt.Sprintf("%d statement paths cannot be read", len(all))).
			WithSuggestion(FormatValidationErrors(all))
	}
}

func validateFileExists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, path, err)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	if info.IsDir() || !extractor.Supported(path) {
		return errors.FileError(errors.CodeUnsupportedType, path, nil)
	}

	// Check if file is readable
	file, err := os.Open(path)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	file.Close()
	return nil
}

func declaredFromFlags() models.DeclaredInputs {
	declared := models.DeclaredInputs{}
	// validated in PreRunE
	declared.OpeningBalance, _ = config.ParseAmount(openingBalance)
	declared.ExpectedIncome, _ = config.ParseAmount(expectedIncome)
	declared.ExpectedExpense, _ = config.ParseAmount(expectedExpense)
	return declared
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logger.WithComponent("cli")

	var pages, sources []string
	var failures []*errors.LedgerError
	for _, path := range args {
		doc, err := extractor.Load(path)
		if err != nil {
			// one unreadable document does not sink the others
			log.WithError(err).WithField("file", path).Warn("Skipping statement document")
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipping %s: %v\n", path, err)
			failures = append(failures, errors.WrapIfNeeded(err, errors.CategoryParse,
				errors.CodeUnreadableDocument, "cannot read "+path))
			continue
		}
		pages = append(pages, doc.Pages...)
		sources = append(sources, doc.Path)
	}
	if len(pages) == 0 {
		if len(failures) == 1 {
			return failures[0]
		}
		return errors.NewErrorSummary(failures)
	}

	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	persist := settings.Store != config.MemoryStore
	outcome, id, err := orchestrator.Parse(ctx, &reconciler.ParseRequest{
		Pages:       pages,
		Sources:     sources,
		Declared:    declaredFromFlags(),
		StatementID: statementID,
		Aliases:     settings.Aliases,
		Persist:     persist,
	})
	if err != nil {
		return err
	}

	if err := writeDocument(cmd, reporter.NewDocument(outcome, id, sources), outputFile, outputFormat); err != nil {
		return err
	}
	if persist && id != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nSaved snapshot %s to %s\n", id, redact(settings.Store))
	}
	return nil
}

// writeDocument writes the output file, if any, and prints the summary
func writeDocument(cmd *cobra.Command, doc *reporter.Document, path, format string) error {
	reportConfig, err := config.CreateReportConfig(path, format, !noColor)
	if err != nil {
		return errors.UsageError(errors.CodeInvalidFlag, "format", format)
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	if path != "" {
		if err := generator.WriteFile(doc, path); err != nil {
			return err
		}
	}

	generator.WriteSummary(doc, cmd.OutOrStdout())
	if path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\nWrote %d rows to %s\n", len(doc.Rows), path)
	}
	return nil
}
