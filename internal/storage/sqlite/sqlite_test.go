package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"statement-ledger/internal/models"
	"statement-ledger/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreCollections(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rules, err := s.LoadCategoryRules(ctx)
	if err != nil || len(rules) != 0 {
		t.Fatalf("Expected empty rules on a new store, got %v, %v", rules, err)
	}

	want := []models.CategoryRule{{Key: "alias:food lion", Category: "Groceries", Source: models.SourceMerchant}}
	if err := s.SaveCategoryRules(ctx, want); err != nil {
		t.Fatalf("SaveCategoryRules failed: %v", err)
	}
	want[0].Category = "Food"
	if err := s.SaveCategoryRules(ctx, want); err != nil {
		t.Fatalf("Second SaveCategoryRules failed: %v", err)
	}

	got, err := s.LoadCategoryRules(ctx)
	if err != nil {
		t.Fatalf("LoadCategoryRules failed: %v", err)
	}
	if len(got) != 1 || got[0].Category != "Food" {
		t.Errorf("Expected the latest save to win, got %v", got)
	}
}

func TestStoreCorruptBlob(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.SetRaw(ctx, storage.AliasesCollection, "{{{"); err != nil {
		t.Fatalf("SetRaw failed: %v", err)
	}
	aliases, err := s.LoadAliases(ctx)
	if err != nil {
		t.Fatalf("Corrupt blob should not be an error: %v", err)
	}
	if len(aliases) != 0 {
		t.Errorf("Expected empty aliases, got %v", aliases)
	}
}

func TestStoreSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.LoadSnapshot(ctx, "2025-06"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	snap := &models.StatementSnapshot{ID: "2025-06", ExtractorVersion: 2, Pages: []string{"page one"}}
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	snap.ExtractorVersion = 3
	if err := s.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot update failed: %v", err)
	}

	got, err := s.LoadSnapshot(ctx, "2025-06")
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if got.ExtractorVersion != 3 || len(got.Pages) != 1 {
		t.Errorf("Unexpected snapshot %+v", got)
	}

	ids, err := s.ListSnapshots(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "2025-06" {
		t.Errorf("Unexpected ids %v, %v", ids, err)
	}
}
