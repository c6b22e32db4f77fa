package cmd

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"statement-ledger/internal/models"
	"statement-ledger/pkg/errors"
)

const junePage = `Account summary
Beginning balance on 6/1 $1,000.00
Deposits/Additions 1,500.00
Withdrawals/Subtractions -78.00
Transaction history
6/20
Purchase authorized on 06/20 Joe's Crab Shack Virginia Beach VA Card 5280
20.00
6/26
Purchase authorized on 06/25 City of Norfolk Norfolk VA Card 5280
58.00
Acme Corp Payroll ACH Credit
1,500.00
Daily ending balance
6/20 980.00 6/26 2,422.00`

// runCLI executes the root command with fresh flag variables
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	outputFile, outputFormat, statementID = "", "", ""
	openingBalance, expectedIncome, expectedExpense = "", "", ""
	noColor, reparseForce, reparseOutput, correctOutput = false, false, "", ""
	rulesFile, rulesReplace, aliasMode = "", false, string(models.AliasContains)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeStatement(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "june.txt")
	if err := os.WriteFile(path, []byte(junePage), 0o644); err != nil {
		t.Fatalf("failed to create statement: %v", err)
	}
	return path
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := writeStatement(t, tmpDir)
	csvFile := filepath.Join(tmpDir, "rows.csv")
	if err := os.WriteFile(csvFile, []byte("a,b"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		filePath string
		code     errors.ErrorCode
	}{
		{"valid file", validFile, ""},
		{"non-existent file", filepath.Join(tmpDir, "missing.pdf"), errors.CodeFileNotFound},
		{"directory instead of file", tmpDir, errors.CodeUnsupportedType},
		{"unsupported extension", csvFile, errors.CodeUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath)
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			le, ok := errors.AsLedgerError(err)
			if !ok {
				t.Fatalf("expected LedgerError, got %v", err)
			}
			if le.Code != tt.code {
				t.Errorf("Code = %s, want %s", le.Code, tt.code)
			}
		})
	}
}

func TestValidateInputPathsCollectsAll(t *testing.T) {
	dir := t.TempDir()
	err := validateInputPaths([]string{
		writeStatement(t, dir),
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.txt"),
	})
	le, ok := errors.AsLedgerError(err)
	if !ok {
		t.Fatalf("expected LedgerError, got %v", err)
	}
	if le.Category != errors.CategoryFile || le.GetExitCode() != 2 {
		t.Errorf("unexpected error %s (%s)", le.Message, le.Category)
	}
	if !strings.Contains(le.Message, "2 statement paths") {
		t.Errorf("Message = %q", le.Message)
	}
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeStatement(t, dir)
	output := filepath.Join(dir, "out", "june.json")

	out, err := runCLI(t, "parse", input, "--output", output, "--year", "2025", "--store", "memory", "--no-color")
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, out)
	}

	for _, want := range []string{
		"=== SUMMARY ===",
		"Rows:            3",
		"Income delta:    0.00 PASS",
		"Expense delta:   0.00 PASS",
		"Daily balances:  PASS (2 days)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if rows := doc["rows"].([]interface{}); len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

func TestParseCommandFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	input := writeStatement(t, dir)
	output := filepath.Join(dir, "june.csv")

	out, err := runCLI(t, "parse", input, "--output", output, "--year", "2025", "--store", "memory",
		"--no-color", "--expected-expense", "100.00", "--opening-balance", "1000")
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Expense delta:   -22.00 FAIL") {
		t.Errorf("expected failing expense delta\n%s", out)
	}

	data, _ := os.ReadFile(output)
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 4 {
		t.Errorf("expected CSV header + 3 rows, got %d lines", len(lines))
	}
}

func TestParseCommandUsageErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeStatement(t, dir)

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"missing output", []string{"parse", input}, errors.CodeMissingFlag},
		{"output is a directory", []string{"parse", input, "--output", dir}, errors.CodeInvalidFlag},
		{"bad format", []string{"parse", input, "--output", "x.json", "--format", "xml"}, errors.CodeInvalidFlag},
		{"no inputs", []string{"parse", "--output", "x.json"}, errors.CodeMissingInput},
		{"missing input", []string{"parse", filepath.Join(dir, "nope.txt"), "--output", "x.json"}, errors.CodeFileNotFound},
		{"bad amount", []string{"parse", input, "--output", "x.json", "--opening-balance", "lots"}, errors.CodeInvalidFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--store", "memory", "--year", "2025")
			_, err := runCLI(t, args...)
			le, ok := errors.AsLedgerError(err)
			if !ok {
				t.Fatalf("expected LedgerError, got %v", err)
			}
			if le.Code != tt.code {
				t.Errorf("Code = %s, want %s", le.Code, tt.code)
			}
			if le.GetExitCode() != 2 {
				t.Errorf("exit code = %d, want 2", le.GetExitCode())
			}
		})
	}
}

func TestParseCommandUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.pdf", "b.pdf"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
			t.Fatal(err)
		}
		inputs = append(inputs, path)
	}

	args := append([]string{"parse"}, inputs...)
	args = append(args, "--output", filepath.Join(dir, "out.json"), "--store", "memory", "--year", "2025")
	_, err := runCLI(t, args...)

	summary, ok := err.(*errors.ErrorSummary)
	if !ok {
		t.Fatalf("expected ErrorSummary, got %T %v", err, err)
	}
	if summary.Total != 2 || summary.GetExitCode() != 3 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.json")); !os.IsNotExist(err) {
		t.Error("no output should be written when every document fails")
	}
}

func TestSnapshotWorkflow(t *testing.T) {
	dir := t.TempDir()
	input := writeStatement(t, dir)
	output := filepath.Join(dir, "june.json")
	store := filepath.Join(dir, "ledger.db")

	out, err := runCLI(t, "parse", input, "--output", output, "--year", "2025", "--store", store, "--no-color")
	if err != nil {
		t.Fatalf("parse failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Saved snapshot 2025-06") {
		t.Errorf("expected snapshot message\n%s", out)
	}

	out, err = runCLI(t, "reparse", "2025-06", "--store", store, "--year", "2025", "--no-color")
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "is current") {
		t.Errorf("expected current snapshot\n%s", out)
	}

	out, err = runCLI(t, "reparse", "2025-06", "--store", store, "--year", "2025", "--force", "--no-color")
	if err != nil || !strings.Contains(out, "Re-extracted 2025-06") {
		t.Errorf("forced reparse: %v\n%s", err, out)
	}

	var doc struct {
		Rows []struct {
			ID string `json:"id"`
		} `json:"rows"`
	}
	data, _ := os.ReadFile(output)
	if err := json.Unmarshal(data, &doc); err != nil || len(doc.Rows) == 0 {
		t.Fatalf("cannot read rows from output: %v", err)
	}

	out, err = runCLI(t, "correct", "2025-06", doc.Rows[0].ID, "Dining", "--store", store, "--year", "2025", "--no-color")
	if err != nil {
		t.Fatalf("correct failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Set Dining on 2025-06-20 -20.00") {
		t.Errorf("unexpected correct output\n%s", out)
	}

	_, err = runCLI(t, "reparse", "1999-01", "--store", store, "--year", "2025")
	if le, ok := errors.AsLedgerError(err); !ok || le.Code != errors.CodeSnapshotNotFound {
		t.Errorf("expected snapshot not found, got %v", err)
	}
}

func TestRulesCommands(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "rules.db")
	exported := filepath.Join(dir, "rules.yaml")

	if out, err := runCLI(t, "rules", "add-alias", "crab shack", "Joe's Crab Shack", "--store", store, "--year", "2025"); err != nil {
		t.Fatalf("add-alias failed: %v\n%s", err, out)
	}
	if _, err := runCLI(t, "rules", "add-alias", "x", "X", "--mode", "fuzzy", "--store", store, "--year", "2025"); err == nil {
		t.Error("expected invalid mode to fail")
	}

	out, err := runCLI(t, "rules", "export", "--file", exported, "--store", store, "--year", "2025")
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	data, _ := os.ReadFile(exported)
	if !strings.Contains(string(data), "crab shack") {
		t.Errorf("export missing alias\n%s", data)
	}

	imported := filepath.Join(dir, "import.yaml")
	content := `aliases:
  - pattern: norfolk
    label: City of Norfolk
    mode: contains
  - pattern: bad
    label: Bad
    mode: fuzzy
category_rules:
  - key: "alias:city of norfolk"
    category: Utilities
    source: alias
overrides:
  - date: "2025-06-20"
    descriptor: Joe's Crab Shack
    amount: "-20.00"
    category: Dining
`
	if err := os.WriteFile(imported, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, "rules", "import", imported, "--store", store, "--year", "2025")
	if err != nil {
		t.Fatalf("import failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Imported 1 aliases, 1 category rules, 1 overrides") || !strings.Contains(out, "Rejected alias \"bad\"") {
		t.Errorf("unexpected import output\n%s", out)
	}

	out, err = runCLI(t, "rules", "list", "--store", store, "--year", "2025")
	if err != nil {
		t.Fatalf("list failed: %v\n%s", err, out)
	}
	for _, want := range []string{"ALIASES (2 stored", "CATEGORY RULES (1)", "OVERRIDES (1)", "Utilities"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q\n%s", want, out)
		}
	}
}

func TestCLIErrorHandlerExitCodes(t *testing.T) {
	var buf bytes.Buffer
	h := &CLIErrorHandler{logger: NewCLIErrorHandler().logger, out: &buf}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", errors.UsageError(errors.CodeMissingFlag, "output", ""), 2},
		{"parse", errors.ParseError(errors.CodeUnreadableDocument, "june.pdf", nil), 3},
		{"configuration", errors.ConfigurationError(errors.CodeInvalidConfig, "year", 12, nil), 4},
		{"storage", errors.StorageError(errors.CodeSnapshotNotFound, "2025-06", nil), 5},
		{"cobra usage", stderrors.New(`unknown flag: --bogus`), 2},
		{"generic", stderrors.New("boom"), 1},
		{"summary", errors.NewErrorSummary([]*errors.LedgerError{
			errors.ParseError(errors.CodeUnreadableDocument, "a.pdf", nil),
			errors.StorageError(errors.CodeStoreWrite, "aliases", nil),
		}), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			if got := h.HandleError(tt.err); got != tt.want {
				t.Errorf("HandleError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"memory":                          "memory",
		"ledger.db":                       "ledger.db",
		"mongodb://localhost:27017":       "mongodb://localhost:27017",
		"mongodb://user:pw@db:27017/?x=1": "mongodb://***@db:27017/?x=1",
	}
	for in, want := range tests {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}
