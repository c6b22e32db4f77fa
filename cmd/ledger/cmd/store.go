package cmd

import (
	"context"
	"strings"

	"statement-ledger/cmd/ledger/config"
	"statement-ledger/internal/reconciler"
	"statement-ledger/internal/storage"
	"statement-ledger/internal/storage/mongo"
	"statement-ledger/internal/storage/sqlite"
	"statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"
)

// openStore picks a repository from the --store location
func openStore(ctx context.Context, location string) (storage.Repository, error) {
	log := logger.WithComponent("store").WithField("store", redact(location))

	switch {
	case location == "" || location == config.MemoryStore:
		log.Debug("Using in-memory store")
		return storage.NewMemory(), nil
	case strings.HasPrefix(location, "mongodb://"), strings.HasPrefix(location, "mongodb+srv://"):
		store, err := mongo.Open(ctx, location)
		if err != nil {
			return nil, errors.StorageError(errors.CodeStoreUnavailable, redact(location), err)
		}
		log.Debug("Connected to MongoDB store")
		return store, nil
	default:
		store, err := sqlite.Open(location)
		if err != nil {
			return nil, errors.StorageError(errors.CodeStoreUnavailable, location, err)
		}
		log.Debug("Opened SQLite store")
		return store, nil
	}
}

// newOrchestrator wires the pipeline service to the configured store. The
// caller closes the returned store.
func newOrchestrator(ctx context.Context) (*reconciler.Orchestrator, storage.Repository, error) {
	store, err := openStore(ctx, settings.Store)
	if err != nil {
		return nil, nil, err
	}

	service, err := reconciler.NewService(settings.ExtractorConfig(), settings.ReconcileConfig())
	if err != nil {
		store.Close()
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconcile", settings.Reconcile, err)
	}

	orchestrator, err := reconciler.NewOrchestrator(service, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return orchestrator, store, nil
}

// redact hides credentials in a connection URI
func redact(location string) string {
	scheme, rest, ok := strings.Cut(location, "://")
	if !ok {
		return location
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return location
}
