package store

import (
	"context"
	"time"

	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
)

// Store is the unified storage interface for all Payable entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Run methods
	CreateRun(ctx context.Context, r *run.Run) error
	GetRun(ctx context.Context, runID id.RunID) (*run.Run, error)
	ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error)
	// FinishRun upserts the terminal snapshot of a completed run, keyed by
	// run ID.
	FinishRun(ctx context.Context, r *run.Run) error

	// Vendor history methods, used by the risk heuristics
	RecordAmount(ctx context.Context, vendorID string, amount types.Money, at time.Time) error
	VendorHistory(ctx context.Context, vendorID string, limit int) ([]types.Money, error)

	// Audit trail methods
	AppendAudit(ctx context.Context, rec *run.AuditRecord) error
	ListAudit(ctx context.Context, runID id.RunID) ([]*run.AuditRecord, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
