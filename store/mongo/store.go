// Package mongo implements the payable store on MongoDB. Runs are stored as
// structured documents rather than opaque snapshots so deployments can query
// fields, decisions and postings directly.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	payable "github.com/xraph/payable"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	payablestore "github.com/xraph/payable/store"
	"github.com/xraph/payable/types"
)

// Collection name constants.
const (
	colRuns          = "payable_runs"
	colVendorAmounts = "payable_vendor_amounts"
	colAuditRecords  = "payable_audit_records"
)

// compile-time interface check
var _ payablestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB and returns a store. The client is owned by the
// store and released by Close.
func New(uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("payable/mongo: connect: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Database returns the underlying database handle for direct access.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all payable collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colRuns: {
			{Keys: bson.D{{Key: "vendor_id", Value: 1}}},
			{Keys: bson.D{{Key: "state", Value: 1}}},
			{Keys: bson.D{{Key: "decision", Value: 1}}},
			{Keys: bson.D{{Key: "started_at", Value: 1}}},
		},
		colVendorAmounts: {
			{Keys: bson.D{{Key: "vendor_id", Value: 1}, {Key: "recorded_at", Value: 1}}},
		},
		colAuditRecords: {
			{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("payable/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Run store ====================

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	_, err := s.db.Collection(colRuns).InsertOne(ctx, toRunModel(r))
	if mongo.IsDuplicateKeyError(err) {
		return payable.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("payable/mongo: create run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*run.Run, error) {
	var m runModel
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": runID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, payable.ErrRunNotFound
		}
		return nil, fmt.Errorf("payable/mongo: get run: %w", err)
	}
	return fromRunModel(&m)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	filter := bson.M{}
	if opts.VendorID != "" {
		filter["vendor_id"] = opts.VendorID
	}
	if opts.State != "" {
		filter["state"] = string(opts.State)
	}
	if opts.Decision != "" {
		filter["decision"] = string(opts.Decision)
	}
	started := bson.M{}
	if !opts.Start.IsZero() {
		started["$gte"] = opts.Start
	}
	if !opts.End.IsZero() {
		started["$lte"] = opts.End
	}
	if len(started) > 0 {
		filter["started_at"] = started
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colRuns).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("payable/mongo: list runs: %w", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck // read-only cursor

	var result []*run.Run
	for cursor.Next(ctx) {
		var m runModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		r, err := fromRunModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, cursor.Err()
}

func (s *Store) FinishRun(ctx context.Context, r *run.Run) error {
	// Upsert: archiving may land before or after CreateRun depending on
	// worker timing.
	_, err := s.db.Collection(colRuns).ReplaceOne(ctx,
		bson.M{"_id": r.ID.String()},
		toRunModel(r),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("payable/mongo: finish run: %w", err)
	}
	return nil
}

// ==================== Vendor history ====================

func (s *Store) RecordAmount(ctx context.Context, vendorID string, amount types.Money, at time.Time) error {
	if vendorID == "" {
		return payable.ErrUnknownVendor
	}
	_, err := s.db.Collection(colVendorAmounts).InsertOne(ctx, vendorAmountModel{
		VendorID:   vendorID,
		Amount:     toMoneyModel(amount),
		RecordedAt: at,
	})
	if err != nil {
		return fmt.Errorf("payable/mongo: record amount: %w", err)
	}
	return nil
}

func (s *Store) VendorHistory(ctx context.Context, vendorID string, limit int) ([]types.Money, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	if limit > 0 {
		findOpts = findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(colVendorAmounts).Find(ctx, bson.M{"vendor_id": vendorID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("payable/mongo: vendor history: %w", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck // read-only cursor

	var amounts []types.Money
	for cursor.Next(ctx) {
		var m vendorAmountModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		amounts = append(amounts, fromMoneyModel(m.Amount))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	if len(amounts) == 0 {
		return nil, payable.ErrNoVendorHistory
	}

	// Query is newest-first; callers expect oldest-first.
	for i, j := 0, len(amounts)-1; i < j; i, j = i+1, j-1 {
		amounts[i], amounts[j] = amounts[j], amounts[i]
	}
	return amounts, nil
}

// ==================== Audit trail ====================

func (s *Store) AppendAudit(ctx context.Context, rec *run.AuditRecord) error {
	_, err := s.db.Collection(colAuditRecords).InsertOne(ctx, toAuditModel(rec))
	if err != nil {
		return fmt.Errorf("payable/mongo: append audit: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, runID id.RunID) ([]*run.AuditRecord, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(colAuditRecords).Find(ctx, bson.M{"run_id": runID.String()}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("payable/mongo: list audit: %w", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck // read-only cursor

	var result []*run.AuditRecord
	for cursor.Next(ctx) {
		var m auditModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		rec, err := fromAuditModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, cursor.Err()
}

// ==================== Helpers ====================

// isNoDocuments checks for the driver's no-documents sentinel.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
