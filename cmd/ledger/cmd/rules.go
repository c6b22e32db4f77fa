package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"statement-ledger/internal/models"
	"statement-ledger/internal/reconciler"
	"statement-ledger/pkg/errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	aliasMode    string
	rulesFile    string
	rulesReplace bool
)

// rulesCmd groups the rule store commands
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage merchant aliases, category rules and overrides",
	Long: `Rules inspects and edits the rule store used by parse, reparse and correct.

Alias rules map statement descriptions to merchant names. Category rules map
a merchant or description tokens to a category and are mostly learned from
'ledger correct'. Overrides pin the category of a single row.

Rule files are YAML with the keys aliases, category_rules and overrides.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every stored rule",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesAddAliasCmd = &cobra.Command{
	Use:   "add-alias <pattern> <label>",
	Short: "Add a merchant alias rule",
	Long: `Add-alias maps descriptions matching pattern to the merchant label.
Matching is case-insensitive; --mode selects contains, startsWith or regex.

Examples:
  ledger rules add-alias "crab shack" "Joe's Crab Shack" --store ledger.db
  ledger rules add-alias "^SQ \*" "Square" --mode regex --store ledger.db`,
	Args: cobra.ExactArgs(2),
	RunE: runRulesAddAlias,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge rules from a YAML file into the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesImport,
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored rules as YAML",
	Args:  cobra.NoArgs,
	RunE:  runRulesExport,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd, rulesAddAliasCmd, rulesImportCmd, rulesExportCmd)

	rulesAddAliasCmd.Flags().StringVar(&aliasMode, "mode", string(models.AliasContains), "match mode: contains, startsWith, regex")
	rulesImportCmd.Flags().BoolVar(&rulesReplace, "replace", false, "drop the stored rules before importing")
	rulesExportCmd.Flags().StringVar(&rulesFile, "file", "", "write to this file instead of stdout")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := orchestrator.ExportRules(ctx)
	if err != nil {
		return err
	}
	printRuleSet(cmd.OutOrStdout(), set, settings.Aliases)
	return nil
}

func printRuleSet(out io.Writer, set *reconciler.RuleSet, configured []models.AliasRule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "ALIASES (%d stored, %d from config)\n", len(set.Aliases), len(configured))
	for _, a := range set.Aliases {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", a.Mode, a.Pattern, a.Label)
	}
	for _, a := range configured {
		fmt.Fprintf(w, "  %s\t%s\t%s\t(config)\n", a.Mode, a.Pattern, a.Label)
	}

	fmt.Fprintf(w, "\nCATEGORY RULES (%d)\n", len(set.CategoryRules))
	for _, r := range set.CategoryRules {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", r.Key, r.Category, r.Source)
	}

	fmt.Fprintf(w, "\nOVERRIDES (%d)\n", len(set.Overrides))
	for _, o := range set.Overrides {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", o.Date, o.Amount, o.Descriptor, o.Category)
	}
	w.Flush()
}

func runRulesAddAlias(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rule := models.AliasRule{Pattern: args[0], Label: args[1], Mode: models.AliasMode(aliasMode)}

	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := orchestrator.AddAlias(ctx, rule); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added alias %q -> %s (%s)\n", rule.Pattern, rule.Label, rule.Mode)
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return errors.FileError(errors.CodeFilePermission, path, err)
	}
	var set reconciler.RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return errors.ParseError(errors.CodeUnreadableDocument, path, err).
			WithSuggestion("Rule files are YAML with aliases, category_rules and overrides lists")
	}

	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	rejected, err := orchestrator.ImportRules(ctx, &set, rulesReplace)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d aliases, %d category rules, %d overrides from %s\n",
		len(set.Aliases)-len(rejected), len(set.CategoryRules), len(set.Overrides), path)
	for _, a := range rejected {
		fmt.Fprintf(out, "Rejected alias %q -> %q: %v\n", a.Pattern, a.Label, a.Validate())
	}
	return nil
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	orchestrator, store, err := newOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	set, err := orchestrator.ExportRules(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "rules export", err)
	}

	if rulesFile == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(rulesFile, data, 0o644); err != nil {
		return errors.FileError(errors.CodeFilePermission, rulesFile, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported rules to %s\n", rulesFile)
	return nil
}
