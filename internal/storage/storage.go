// Package storage persists the rule collections and statement snapshots.
//
// Every backend stores a collection as one JSON blob under a fixed name, and
// each snapshot as one JSON blob under its statement id. A blob that no longer
// decodes is treated as an empty collection and logged, so a damaged store
// never stops a parse.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"statement-ledger/internal/models"
	"statement-ledger/pkg/logger"
)

// Collection names shared by every backend
const (
	AliasesCollection       = "aliases"
	CategoryRulesCollection = "category_rules"
	OverridesCollection     = "overrides"
)

// ErrNotFound is returned when a snapshot does not exist
var ErrNotFound = errors.New("not found")

// Repository is the persistence boundary of the ledger
type Repository interface {
	LoadAliases(ctx context.Context) ([]models.AliasRule, error)
	SaveAliases(ctx context.Context, aliases []models.AliasRule) error
	LoadCategoryRules(ctx context.Context) ([]models.CategoryRule, error)
	SaveCategoryRules(ctx context.Context, rules []models.CategoryRule) error
	LoadOverrides(ctx context.Context) ([]models.Override, error)
	SaveOverrides(ctx context.Context, overrides []models.Override) error

	LoadSnapshot(ctx context.Context, id string) (*models.StatementSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.StatementSnapshot) error
	ListSnapshots(ctx context.Context) ([]string, error)

	Close() error
}

// DecodeCollection decodes a stored collection. A nil blob is an empty
// collection; a corrupt one is logged and also treated as empty.
func DecodeCollection[T any](name string, blob []byte) []T {
	if len(blob) == 0 {
		return nil
	}
	var items []T
	if err := json.Unmarshal(blob, &items); err != nil {
		logger.WithComponent("storage").WithError(err).WithField("collection", name).
			Warn("Stored collection is corrupt, starting from empty")
		return nil
	}
	return items
}

// DecodeSnapshot decodes a stored snapshot. A corrupt blob is logged and
// reported as ErrNotFound.
func DecodeSnapshot(id string, blob []byte) (*models.StatementSnapshot, error) {
	var snap models.StatementSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		logger.WithComponent("storage").WithError(err).WithField("snapshot", id).
			Warn("Stored snapshot is corrupt, ignoring it")
		return nil, ErrNotFound
	}
	return &snap, nil
}

// Encode serializes a collection or snapshot for storage
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Memory is an in-process Repository used by tests and by the API when no
// store is configured.
type Memory struct {
	mu          sync.RWMutex
	collections map[string][]byte
	snapshots   map[string][]byte
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]byte),
		snapshots:   make(map[string][]byte),
	}
}

func (m *Memory) load(name string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collections[name]
}

func (m *Memory) save(name string, v interface{}) error {
	blob, err := Encode(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = blob
	return nil
}

// PutRaw stores a raw blob under a collection name
func (m *Memory) PutRaw(name string, blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = blob
}

func (m *Memory) LoadAliases(ctx context.Context) ([]models.AliasRule, error) {
	return DecodeCollection[models.AliasRule](AliasesCollection, m.load(AliasesCollection)), nil
}

func (m *Memory) SaveAliases(ctx context.Context, aliases []models.AliasRule) error {
	return m.save(AliasesCollection, aliases)
}

func (m *Memory) LoadCategoryRules(ctx context.Context) ([]models.CategoryRule, error) {
	return DecodeCollection[models.CategoryRule](CategoryRulesCollection, m.load(CategoryRulesCollection)), nil
}

func (m *Memory) SaveCategoryRules(ctx context.Context, rules []models.CategoryRule) error {
	return m.save(CategoryRulesCollection, rules)
}

func (m *Memory) LoadOverrides(ctx context.Context) ([]models.Override, error) {
	return DecodeCollection[models.Override](OverridesCollection, m.load(OverridesCollection)), nil
}

func (m *Memory) SaveOverrides(ctx context.Context, overrides []models.Override) error {
	return m.save(OverridesCollection, overrides)
}

func (m *Memory) LoadSnapshot(ctx context.Context, id string) (*models.StatementSnapshot, error) {
	m.mu.RLock()
	blob, ok := m.snapshots[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return DecodeSnapshot(id, blob)
}

func (m *Memory) SaveSnapshot(ctx context.Context, snapshot *models.StatementSnapshot) error {
	blob, err := Encode(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.ID] = blob
	return nil
}

func (m *Memory) ListSnapshots(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.snapshots))
	for id := range m.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
