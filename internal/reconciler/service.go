package reconciler

import (
	"fmt"
	"sort"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/rules"
	"statement-ledger/pkg/logger"
)

// Service runs the statement pipeline: extract, resolve, reconcile, verify
type Service struct {
	extractor *parsers.Extractor
	config    *ReconcileConfig
	year      int
	logger    logger.Logger
}

// NewService creates a pipeline service. Nil configs use the defaults.
func NewService(extractorConfig *parsers.ExtractorConfig, config *ReconcileConfig) (*Service, error) {
	if extractorConfig == nil {
		extractorConfig = parsers.DefaultExtractorConfig()
	}
	if config == nil {
		config = DefaultReconcileConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	extractor, err := parsers.NewExtractor(extractorConfig)
	if err != nil {
		return nil, err
	}
	return &Service{
		extractor: extractor,
		config:    config,
		year:      extractorConfig.Year,
		logger:    logger.WithComponent("pipeline"),
	}, nil
}

// Year is the reference year used to resolve statement dates
func (s *Service) Year() int {
	return s.year
}

// Request is one statement to process
type Request struct {
	Pages   []string
	Sources []string
	// Declared holds values given by the caller; they win over values read
	// from the statement text.
	Declared models.DeclaredInputs
	Rules    *rules.Snapshot
}

// Outcome is the verified ledger for one statement
type Outcome struct {
	Rows           []models.Transaction         `json:"rows"`
	Reconciliation *models.ReconciliationResult `json:"reconciliation"`
	Balance        *BalanceCheck                `json:"balanceCheck,omitempty"`
	Declared       models.DeclaredInputs        `json:"declared"`
	Diagnostics    []parsers.Diagnostic         `json:"diagnostics"`
	Stats          *parsers.ParseStats          `json:"stats,omitempty"`
}

// Process runs the full pipeline over the request's pages
func (s *Service) Process(req *Request) (*Outcome, error) {
	if req == nil || len(req.Pages) == 0 {
		return nil, fmt.Errorf("no statement pages to process")
	}

	extracted := s.extractor.Extract(req.Pages)
	declared := req.Declared.Merge(extracted.Declared)
	if declared.Year == 0 {
		declared.Year = s.year
	}

	outcome := s.Evaluate(extracted.Transactions(), declared, req.Rules)
	outcome.Diagnostics = extracted.Diagnostics
	outcome.Stats = extracted.Stats

	s.logger.WithFields(logger.Fields{
		"sources":     len(req.Sources),
		"rows":        len(outcome.Rows),
		"diagnostics": len(outcome.Diagnostics),
	}).Info("Processed statement")

	return outcome, nil
}

// Evaluate resolves, reconciles and verifies rows that were already extracted
func (s *Service) Evaluate(rows []models.Transaction, declared models.DeclaredInputs, snapshot *rules.Snapshot) *Outcome {
	if snapshot == nil {
		snapshot = rules.NewSnapshot(nil, nil, nil)
	}
	resolved := snapshot.Apply(rows)
	reconciled, result := Reconcile(resolved, declared.ExpectedIncome, declared.ExpectedExpense, s.config)

	outcome := &Outcome{
		Rows:           reconciled,
		Reconciliation: result,
		Declared:       declared,
		Diagnostics:    []parsers.Diagnostic{},
	}
	if declared.OpeningBalance != nil {
		outcome.Balance = VerifyDailyBalances(reconciled, *declared.OpeningBalance, declared.DailyBalances)
	}
	return outcome
}

// StatementID names a statement by the YYYY-MM most of its dated rows fall
// in. Ties go to the earlier month. It returns "" when no row has a date.
func StatementID(rows []models.Transaction) string {
	counts := make(map[string]int)
	for _, row := range rows {
		if row.Date.IsZero() {
			continue
		}
		counts[row.Date.Format("2006-01")]++
	}

	months := make([]string, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Strings(months)

	best := ""
	for _, m := range months {
		if best == "" || counts[m] > counts[best] {
			best = m
		}
	}
	return best
}
