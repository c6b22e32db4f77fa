package cmd

import (
	"fmt"
	"strings"

	"statement-ledger/internal/reporter"
	"statement-ledger/pkg/errors"

	"github.com/spf13/cobra"
)

var correctOutput string

// correctCmd records a category decision for one row
var correctCmd = &cobra.Command{
	Use:   "correct <statement-id> <row-id> <category>",
	Short: "Set the category of one row and learn from it",
	Long: `Correct stores a category override for one row of a saved statement. The
override is keyed by the row's date, description and amount, so it survives
re-parsing. Category rules learned from the row's merchant or description
tokens are stored too and apply to future statements.

Row ids are listed in the "id" field of the parse output.

Examples:
  ledger correct 2024-06 6f1c2a9e-... Dining --store ledger.db`,
	Args: cobra.ExactArgs(3),
	RunE: runCorrect,
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.Flags().StringVarP(&correctOutput, "output", "o", "", "also write the updated document to this path")
	correctCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored PASS/FAIL markers")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, rowID, category := args[0], args[1], strings.TrimSpace(args[2])
	if category == "" {
		return errors.UsageError(errors.CodeInvalidFlag, "category", args[2])
	}

	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	outcome, correction, err := orchestrator.Correct(ctx, id, rowID, category, settings.Aliases...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s on %s %s %s\n", category,
		correction.Override.Date, correction.Override.Amount, correction.Override.Descriptor)
	for _, rule := range correction.Learned {
		fmt.Fprintf(out, "Learned %s -> %s\n", rule.Key, rule.Category)
	}
	fmt.Fprintln(out)

	return writeDocument(cmd, reporter.NewDocument(outcome, id, nil), correctOutput, "")
}
