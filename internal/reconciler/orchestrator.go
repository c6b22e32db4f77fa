// Package reconciler turns extracted statement rows into a verified ledger.
//
// Reconcile compares computed totals with the totals a statement declares and
// explains overstatements by excluding internal transfers and, failing that,
// the smallest set of rows whose sum matches the gap. VerifyDailyBalances rolls
// an opening balance forward and finds the first day that disagrees with the
// statement's own balance table.
//
// The Service runs the whole pipeline for one statement. The Orchestrator
// wraps it with the rule store: it loads a rule snapshot once per pass,
// saves statement snapshots, re-parses them when extraction changes, and
// persists user corrections together with the rules learned from them.
package reconciler

import (
	"context"
	"errors"
	"time"

	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/rules"
	"statement-ledger/internal/storage"
	ledgererrors "statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"
)

// Orchestrator runs pipeline operations against a rule and snapshot store
type Orchestrator struct {
	service *Service
	store   storage.Repository
	logger  logger.Logger
}

// NewOrchestrator creates an orchestrator. A nil store keeps state in memory
// for the life of the process.
func NewOrchestrator(service *Service, store storage.Repository) (*Orchestrator, error) {
	if service == nil {
		return nil, ledgererrors.InternalError(ledgererrors.CodeUnexpectedError, "orchestrator setup", errors.New("service is required")).
			WithSuggestion("Provide a valid Service instance")
	}
	if store == nil {
		store = storage.NewMemory()
	}
	return &Orchestrator{
		service: service,
		store:   store,
		logger:  logger.WithComponent("orchestrator"),
	}, nil
}

// Store returns the underlying repository
func (o *Orchestrator) Store() storage.Repository {
	return o.store
}

// LoadRules reads the rule collections and builds a snapshot for one pass
func (o *Orchestrator) LoadRules(ctx context.Context, extraAliases ...models.AliasRule) (*rules.Snapshot, error) {
	aliases, err := o.store.LoadAliases(ctx)
	if err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.AliasesCollection, err)
	}
	categoryRules, err := o.store.LoadCategoryRules(ctx)
	if err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.CategoryRulesCollection, err)
	}
	overrides, err := o.store.LoadOverrides(ctx)
	if err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.OverridesCollection, err)
	}
	// configured aliases come after stored ones, so stored rules match first
	return rules.NewSnapshot(append(aliases, extraAliases...), categoryRules, overrides), nil
}

// ParseRequest is a statement to parse and optionally persist
type ParseRequest struct {
	Pages       []string
	Sources     []string
	Declared    models.DeclaredInputs
	StatementID string
	Aliases     []models.AliasRule
	Persist     bool
}

// Parse runs the pipeline with the stored rules. When Persist is set the
// result is saved as a statement snapshot and its id returned.
func (o *Orchestrator) Parse(ctx context.Context, req *ParseRequest) (*Outcome, string, error) {
	snapshot, err := o.LoadRules(ctx, req.Aliases...)
	if err != nil {
		return nil, "", err
	}

	outcome, err := o.service.Process(&Request{
		Pages:    req.Pages,
		Sources:  req.Sources,
		Declared: req.Declared,
		Rules:    snapshot,
	})
	if err != nil {
		return nil, "", ledgererrors.ParseError(ledgererrors.CodeUnreadableDocument, firstSource(req.Sources), err)
	}

	id := req.StatementID
	if id == "" {
		id = StatementID(outcome.Rows)
	}
	if !req.Persist {
		return outcome, id, nil
	}
	if id == "" {
		o.logger.Warn("No dated rows and no statement id, snapshot not saved")
		return outcome, "", nil
	}

	if err := o.saveSnapshot(ctx, id, req.Sources, req.Pages, outcome); err != nil {
		return outcome, id, err
	}
	return outcome, id, nil
}

// Reparse re-runs a stored statement with the current rules. Extraction is
// repeated only when the stored snapshot came from an older extractor or
// force is set; otherwise the stored rows are re-resolved and re-verified.
// The second return value reports whether extraction ran. Configured aliases
// must be the ones the statement was parsed with, or their merchants are lost.
func (o *Orchestrator) Reparse(ctx context.Context, id string, force bool, aliases ...models.AliasRule) (*Outcome, bool, error) {
	stored, err := o.loadSnapshot(ctx, id)
	if err != nil {
		return nil, false, err
	}
	snapshot, err := o.LoadRules(ctx, aliases...)
	if err != nil {
		return nil, false, err
	}

	if stored.ExtractorVersion == parsers.ExtractorVersion && !force {
		o.logger.WithField("statement", id).Info("Snapshot is current, re-evaluating stored rows")
		outcome := o.service.Evaluate(stored.Rows, stored.Declared, snapshot)
		return outcome, false, o.saveSnapshot(ctx, id, stored.Sources, stored.Pages, outcome)
	}

	o.logger.WithFields(logger.Fields{
		"statement":      id,
		"stored_version": stored.ExtractorVersion,
		"version":        parsers.ExtractorVersion,
	}).Info("Re-extracting statement")

	outcome, err := o.service.Process(&Request{
		Pages:    stored.Pages,
		Sources:  stored.Sources,
		Declared: stored.Declared,
		Rules:    snapshot,
	})
	if err != nil {
		return nil, false, ledgererrors.ParseError(ledgererrors.CodeUnreadableDocument, id, err)
	}
	return outcome, true, o.saveSnapshot(ctx, id, stored.Sources, stored.Pages, outcome)
}

// Correct records a category decision for one row of a stored statement,
// persists the override and learned rules, and re-evaluates the statement.
func (o *Orchestrator) Correct(ctx context.Context, id, rowID, category string, aliases ...models.AliasRule) (*Outcome, *rules.Correction, error) {
	stored, err := o.loadSnapshot(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	snapshot, err := o.LoadRules(ctx, aliases...)
	if err != nil {
		return nil, nil, err
	}

	correction, err := snapshot.Correct(stored.Rows, rowID, category)
	if err != nil {
		return nil, nil, ledgererrors.UsageError(ledgererrors.CodeInvalidFlag, "row", rowID).WithContext("statement", id)
	}

	overrides, err := o.store.LoadOverrides(ctx)
	if err != nil {
		return nil, nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.OverridesCollection, err)
	}
	if err := o.store.SaveOverrides(ctx, rules.MergeOverrides(overrides, correction.Override)); err != nil {
		return nil, nil, ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.OverridesCollection, err)
	}

	if len(correction.Learned) > 0 {
		existing, err := o.store.LoadCategoryRules(ctx)
		if err != nil {
			return nil, nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.CategoryRulesCollection, err)
		}
		if err := o.store.SaveCategoryRules(ctx, rules.MergeCategoryRules(existing, correction.Learned)); err != nil {
			return nil, nil, ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.CategoryRulesCollection, err)
		}
	}

	outcome := o.service.Evaluate(correction.Rows, stored.Declared, correction.Snapshot)
	if err := o.saveSnapshot(ctx, id, stored.Sources, stored.Pages, outcome); err != nil {
		return nil, nil, err
	}

	o.logger.WithFields(logger.Fields{
		"statement": id,
		"row":       rowID,
		"category":  category,
		"learned":   len(correction.Learned),
	}).Info("Recorded category correction")

	return outcome, correction, nil
}

// RuleSet is the portable form of the rule store
type RuleSet struct {
	Aliases       []models.AliasRule    `json:"aliases" yaml:"aliases"`
	CategoryRules []models.CategoryRule `json:"categoryRules" yaml:"category_rules"`
	Overrides     []models.Override     `json:"overrides" yaml:"overrides"`
}

// ExportRules reads every rule collection
func (o *Orchestrator) ExportRules(ctx context.Context) (*RuleSet, error) {
	set := &RuleSet{}
	var err error
	if set.Aliases, err = o.store.LoadAliases(ctx); err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.AliasesCollection, err)
	}
	if set.CategoryRules, err = o.store.LoadCategoryRules(ctx); err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.CategoryRulesCollection, err)
	}
	if set.Overrides, err = o.store.LoadOverrides(ctx); err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.OverridesCollection, err)
	}
	return set, nil
}

// ImportRules merges a rule set into the store. Invalid alias rules are
// skipped and returned. With replace set, existing collections are dropped.
func (o *Orchestrator) ImportRules(ctx context.Context, set *RuleSet, replace bool) ([]models.AliasRule, error) {
	current := &RuleSet{}
	if !replace {
		var err error
		if current, err = o.ExportRules(ctx); err != nil {
			return nil, err
		}
	}

	var rejected []models.AliasRule
	aliases := current.Aliases
	for _, a := range set.Aliases {
		if err := a.Validate(); err != nil {
			rejected = append(rejected, a)
			continue
		}
		aliases = append(aliases, a)
	}

	overrides := current.Overrides
	for _, ov := range set.Overrides {
		overrides = rules.MergeOverrides(overrides, ov)
	}

	if err := o.store.SaveAliases(ctx, aliases); err != nil {
		return rejected, ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.AliasesCollection, err)
	}
	if err := o.store.SaveCategoryRules(ctx, rules.MergeCategoryRules(current.CategoryRules, set.CategoryRules)); err != nil {
		return rejected, ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.CategoryRulesCollection, err)
	}
	if err := o.store.SaveOverrides(ctx, overrides); err != nil {
		return rejected, ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.OverridesCollection, err)
	}
	return rejected, nil
}

// AddAlias appends one alias rule to the store
func (o *Orchestrator) AddAlias(ctx context.Context, rule models.AliasRule) error {
	if err := rule.Validate(); err != nil {
		return ledgererrors.UsageError(ledgererrors.CodeInvalidFlag, "alias", rule.Pattern).WithContext("reason", err.Error())
	}
	aliases, err := o.store.LoadAliases(ctx)
	if err != nil {
		return ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, storage.AliasesCollection, err)
	}
	if err := o.store.SaveAliases(ctx, append(aliases, rule)); err != nil {
		return ledgererrors.StorageError(ledgererrors.CodeStoreWrite, storage.AliasesCollection, err)
	}
	return nil
}

func (o *Orchestrator) loadSnapshot(ctx context.Context, id string) (*models.StatementSnapshot, error) {
	stored, err := o.store.LoadSnapshot(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ledgererrors.StorageError(ledgererrors.CodeSnapshotNotFound, id, nil)
	}
	if err != nil {
		return nil, ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, id, err)
	}
	return stored, nil
}

func (o *Orchestrator) saveSnapshot(ctx context.Context, id string, sources, pages []string, outcome *Outcome) error {
	snap := &models.StatementSnapshot{
		ID:               id,
		ExtractorVersion: parsers.ExtractorVersion,
		Sources:          sources,
		Pages:            pages,
		Rows:             outcome.Rows,
		Declared:         outcome.Declared,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := o.store.SaveSnapshot(ctx, snap); err != nil {
		return ledgererrors.StorageError(ledgererrors.CodeStoreWrite, "snapshot "+id, err)
	}
	o.logger.WithFields(logger.Fields{"statement": id, "rows": len(outcome.Rows)}).Debug("Saved statement snapshot")
	return nil
}

func firstSource(sources []string) string {
	if len(sources) == 0 {
		return "statement"
	}
	return sources[0]
}
