package run

import (
	"context"
	"time"

	"github.com/xraph/payable/id"
)

// Store persists run aggregates and their terminal decisions.
type Store interface {
	Create(ctx context.Context, r *Run) error
	Get(ctx context.Context, runID id.RunID) (*Run, error)
	List(ctx context.Context, opts ListOpts) ([]*Run, error)
	// Finish upserts the terminal snapshot of a completed run.
	Finish(ctx context.Context, r *Run) error
}

// ListOpts filters run listings.
type ListOpts struct {
	VendorID string
	State    State
	Decision Decision
	Start    time.Time
	End      time.Time
	Limit    int
	Offset   int
}
