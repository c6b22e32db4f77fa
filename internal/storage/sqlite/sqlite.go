// Package sqlite stores ledger state in a local SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"statement-ledger/internal/models"
	"statement-ledger/internal/storage"
	"statement-ledger/pkg/logger"

	_ "github.com/mattn/go-sqlite3"
)

var tableCreators = []string{
	`CREATE TABLE IF NOT EXISTS ledger_state (
		name TEXT PRIMARY KEY,
		blob TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,

	`CREATE TABLE IF NOT EXISTS statement_snapshots (
		id TEXT PRIMARY KEY,
		extractor_version INTEGER NOT NULL,
		blob TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`,
}

// Store is a storage.Repository backed by SQLite
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens or creates the database at path and makes sure the tables exist
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger.WithComponent("sqlite")}
	if err := s.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.WithField("path", path).Debug("Opened sqlite store")
	return s, nil
}

func (s *Store) initTables() error {
	for _, stmt := range tableCreators {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context, name string) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM ledger_state WHERE name = ?`, name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return []byte(blob), nil
}

func (s *Store) save(ctx context.Context, name string, v interface{}) error {
	blob, err := storage.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ledger_state (name, blob, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(name) DO UPDATE SET blob = excluded.blob, updated_at = CURRENT_TIMESTAMP`,
		name, string(blob))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// SetRaw stores a raw blob under a collection name
func (s *Store) SetRaw(ctx context.Context, name, blob string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ledger_state (name, blob) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET blob = excluded.blob`, name, blob)
	return err
}

func (s *Store) LoadAliases(ctx context.Context) ([]models.AliasRule, error) {
	blob, err := s.load(ctx, storage.AliasesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.AliasRule](storage.AliasesCollection, blob), nil
}

func (s *Store) SaveAliases(ctx context.Context, aliases []models.AliasRule) error {
	return s.save(ctx, storage.AliasesCollection, aliases)
}

func (s *Store) LoadCategoryRules(ctx context.Context) ([]models.CategoryRule, error) {
	blob, err := s.load(ctx, storage.CategoryRulesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.CategoryRule](storage.CategoryRulesCollection, blob), nil
}

func (s *Store) SaveCategoryRules(ctx context.Context, rules []models.CategoryRule) error {
	return s.save(ctx, storage.CategoryRulesCollection, rules)
}

func (s *Store) LoadOverrides(ctx context.Context) ([]models.Override, error) {
	blob, err := s.load(ctx, storage.OverridesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.Override](storage.OverridesCollection, blob), nil
}

func (s *Store) SaveOverrides(ctx context.Context, overrides []models.Override) error {
	return s.save(ctx, storage.OverridesCollection, overrides)
}

// LoadSnapshot returns storage.ErrNotFound when no snapshot has the id
func (s *Store) LoadSnapshot(ctx context.Context, id string) (*models.StatementSnapshot, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM statement_snapshots WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}
	return storage.DecodeSnapshot(id, []byte(blob))
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.StatementSnapshot) error {
	blob, err := storage.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snapshot.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO statement_snapshots (id, extractor_version, blob, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET extractor_version = excluded.extractor_version, blob = excluded.blob, updated_at = CURRENT_TIMESTAMP`,
		snapshot.ID, snapshot.ExtractorVersion, string(blob))
	if err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM statement_snapshots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

var _ storage.Repository = (*Store)(nil)
