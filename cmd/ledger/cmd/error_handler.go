package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints the error and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if summary, ok := err.(*errors.ErrorSummary); ok {
		return h.handleSummary(summary)
	}
	if ledgerErr, ok := errors.AsLedgerError(err); ok {
		return h.handleLedgerError(ledgerErr)
	}
	return h.handleGenericError(err)
}

// handleSummary lists every error of a multi-document failure
func (h *CLIErrorHandler) handleSummary(summary *errors.ErrorSummary) int {
	fmt.Fprintf(h.out, "Error: %s\n\n", summary.Error())
	for i, err := range summary.Errors {
		fmt.Fprintf(h.out, "  %d. %s\n", i+1, err.Message)
		if h.verbose && err.Cause != nil {
			fmt.Fprintf(h.out, "     %v\n", err.Cause)
		}
	}
	return summary.GetExitCode()
}

// handleLedgerError handles LedgerError with detailed context
func (h *CLIErrorHandler) handleLedgerError(err *errors.LedgerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if help := h.getCategoryHelp(err.Category); help != "" {
		fmt.Fprintf(h.out, "\n%s\n", help)
	}

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles errors that carry no category, mostly cobra
// argument errors.
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}
	if os.IsPermission(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if isUsageMessage(err) {
		fmt.Fprintf(h.out, "Run 'ledger --help' for usage.\n")
		return 2
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Statements must be .txt or .pdf files
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have permission to read inputs and write the --output file`

	case errors.CategoryParse:
		return `Parse error help:
• Scanned PDFs carry no text layer; export the statement as text instead
• Text exports separate pages with form feeds
• Use 'ledger parse --help' for examples`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Verify configuration file syntax if using --config
• LEDGER_* environment variables override the config file
• Try running with default settings first`

	case errors.CategoryStorage:
		return `Store error help:
• --store takes 'memory', a SQLite file path or a mongodb:// URI
• Snapshots only exist for statements parsed with a persistent --store`

	default:
		return ""
	}
}

func isUsageMessage(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"unknown command", "unknown flag", "unknown shorthand", "accepts ", "requires at least", "flag needs an argument", "invalid argument"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// FormatValidationErrors formats validation errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Validation error: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d validation errors:", len(errs)))

	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		// Limit the number of errors shown
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}

	return strings.Join(lines, "\n")
}
