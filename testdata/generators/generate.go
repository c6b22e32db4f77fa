// Command generate writes synthetic statement text exports for manual runs of
// ledger parse. Every file reconciles to zero and passes the daily balance
// check, so a FAIL in the summary points at the extractor.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"statement-ledger/internal/statementgen"

	"github.com/shopspring/decimal"
)

// fixture is one named statement shape
type fixture struct {
	name        string
	count       int
	rowsPerPage int
	month       time.Month
}

var fixtures = []fixture{
	{"small", 20, 60, time.June},
	{"multipage", 200, 35, time.July},
	{"large", 2000, 45, time.August},
}

func main() {
	var (
		outputDir = flag.String("output-dir", "../generated", "output directory for generated statements")
		year      = flag.Int("year", 2024, "statement year")
		only      = flag.String("fixture", "all", "fixture to write: small, multipage, large or all")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "random seed for reproducible generation")
		opening   = flag.Float64("opening-balance", 300000, "opening balance")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	written := 0
	for _, f := range fixtures {
		if *only != "all" && *only != f.name {
			continue
		}
		gen := statementgen.NewGenerator(*year, f.month, f.count, *seed)
		gen.RowsPerPage = f.rowsPerPage
		gen.OpeningBalance = decimal.NewFromFloat(*opening)

		stmt, err := gen.Generate()
		if err != nil {
			log.Fatalf("Failed to generate %s: %v", f.name, err)
		}
		path := filepath.Join(*outputDir, fmt.Sprintf("statement_%s.txt", f.name))
		if err := os.WriteFile(path, []byte(stmt.Text()), 0o644); err != nil {
			log.Fatalf("Failed to write %s: %v", path, err)
		}
		fmt.Printf("%-10s %5d rows %3d pages income %s expense %s -> %s\n",
			f.name, len(stmt.Rows), len(stmt.Pages),
			statementgen.FormatAmount(stmt.Income), statementgen.FormatAmount(stmt.Expense), path)
		written++
	}

	if written == 0 {
		log.Fatalf("Unknown fixture: %s", *only)
	}
	fmt.Printf("\nParse with: ledger parse <file> --output out.json --year %d\n", *year)
}
