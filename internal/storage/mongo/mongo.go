// Package mongo stores ledger state in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"statement-ledger/internal/models"
	"statement-ledger/internal/storage"
	"statement-ledger/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	dbName = "ledger"

	StateCollection     = "ledger_state"
	SnapshotsCollection = "statement_snapshots"
)

// ---- Abstractions for Testability ----

// SingleResult is the part of *mongo.SingleResult the store uses
type SingleResult interface {
	Decode(v interface{}) error
}

// DataStore defines the collection operations the store needs.
type DataStore interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	Distinct(ctx context.Context, fieldName string, filter interface{}, opts ...*options.DistinctOptions) ([]interface{}, error)
}

// CollectionProvider defines the interface for obtaining a collection.
type CollectionProvider interface {
	Collection(name string) DataStore
}

// MongoCollection adapts *mongo.Collection to DataStore.
type MongoCollection struct {
	*mongo.Collection
}

// FindOne finds a single document.
func (c *MongoCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) SingleResult {
	return c.Collection.FindOne(ctx, filter, opts...)
}

// ReplaceOne replaces or upserts a single document.
func (c *MongoCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	result, err := c.Collection.ReplaceOne(ctx, filter, replacement, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to perform ReplaceOne: %w", err)
	}
	return result, nil
}

// MongoProvider adapts *mongo.Client to CollectionProvider.
type MongoProvider struct {
	client *mongo.Client
}

// NewMongoProvider creates a new MongoProvider.
func NewMongoProvider(client *mongo.Client) *MongoProvider {
	return &MongoProvider{client: client}
}

// Collection returns a DataStore for the given collection name.
func (p *MongoProvider) Collection(name string) DataStore {
	return &MongoCollection{p.client.Database(dbName).Collection(name)}
}

// ConnectToMongoDB establishes a connection to MongoDB.
func ConnectToMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	log := logger.WithComponent("mongo")
	log.Debug("Attempting to connect to MongoDB")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("Successfully established connection to MongoDB")
	return client, nil
}

// stateDocument holds one JSON-encoded collection or snapshot. Amounts are
// decimals, which have no BSON codec, so documents carry the same JSON blob
// every other backend stores.
type stateDocument struct {
	ID               string    `bson:"_id"`
	Blob             string    `bson:"blob"`
	ExtractorVersion int       `bson:"extractorVersion,omitempty"`
	UpdatedAt        time.Time `bson:"updatedAt"`
}

// Store is a storage.Repository backed by MongoDB
type Store struct {
	provider CollectionProvider
	client   *mongo.Client
}

// NewStore creates a store over any collection provider
func NewStore(provider CollectionProvider) *Store {
	return &Store{provider: provider}
}

// Open connects to uri and returns a store that disconnects on Close
func Open(ctx context.Context, uri string) (*Store, error) {
	client, err := ConnectToMongoDB(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &Store{provider: NewMongoProvider(client), client: client}, nil
}

func (s *Store) find(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var doc stateDocument
	err := s.provider.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", collection, id, err)
	}
	return []byte(doc.Blob), true, nil
}

func (s *Store) put(ctx context.Context, collection string, doc stateDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	_, err := s.provider.Collection(collection).ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *Store) loadState(ctx context.Context, name string) ([]byte, error) {
	blob, _, err := s.find(ctx, StateCollection, name)
	return blob, err
}

func (s *Store) saveState(ctx context.Context, name string, v interface{}) error {
	blob, err := storage.Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.put(ctx, StateCollection, stateDocument{ID: name, Blob: string(blob)})
}

func (s *Store) LoadAliases(ctx context.Context) ([]models.AliasRule, error) {
	blob, err := s.loadState(ctx, storage.AliasesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.AliasRule](storage.AliasesCollection, blob), nil
}

func (s *Store) SaveAliases(ctx context.Context, aliases []models.AliasRule) error {
	return s.saveState(ctx, storage.AliasesCollection, aliases)
}

func (s *Store) LoadCategoryRules(ctx context.Context) ([]models.CategoryRule, error) {
	blob, err := s.loadState(ctx, storage.CategoryRulesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.CategoryRule](storage.CategoryRulesCollection, blob), nil
}

func (s *Store) SaveCategoryRules(ctx context.Context, rules []models.CategoryRule) error {
	return s.saveState(ctx, storage.CategoryRulesCollection, rules)
}

func (s *Store) LoadOverrides(ctx context.Context) ([]models.Override, error) {
	blob, err := s.loadState(ctx, storage.OverridesCollection)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCollection[models.Override](storage.OverridesCollection, blob), nil
}

func (s *Store) SaveOverrides(ctx context.Context, overrides []models.Override) error {
	return s.saveState(ctx, storage.OverridesCollection, overrides)
}

func (s *Store) LoadSnapshot(ctx context.Context, id string) (*models.StatementSnapshot, error) {
	blob, ok, err := s.find(ctx, SnapshotsCollection, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.DecodeSnapshot(id, blob)
}

func (s *Store) SaveSnapshot(ctx context.Context, snapshot *models.StatementSnapshot) error {
	blob, err := storage.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snapshot.ID, err)
	}
	return s.put(ctx, SnapshotsCollection, stateDocument{
		ID:               snapshot.ID,
		Blob:             string(blob),
		ExtractorVersion: snapshot.ExtractorVersion,
	})
}

func (s *Store) ListSnapshots(ctx context.Context) ([]string, error) {
	values, err := s.provider.Collection(SnapshotsCollection).Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close disconnects the client when the store owns one
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

var _ storage.Repository = (*Store)(nil)
