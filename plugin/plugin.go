// Package plugin provides an extensible plugin system for Payable.
// Plugins can hook into pipeline lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/payable/event"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Pipeline run hooks
// ──────────────────────────────────────────────────

// OnRunStarted is called when a pipeline run begins.
type OnRunStarted interface {
	Plugin
	OnRunStarted(ctx context.Context, r *run.Run) error
}

// OnStageStarted is called when a pipeline stage begins.
type OnStageStarted interface {
	Plugin
	OnStageStarted(ctx context.Context, r *run.Run, stage run.Stage) error
}

// OnStageCompleted is called when a pipeline stage finishes, whether it
// passed its gate or not.
type OnStageCompleted interface {
	Plugin
	OnStageCompleted(ctx context.Context, r *run.Run, stage run.Stage) error
}

// OnFieldExtracted is called once per field as the extractor materializes it.
type OnFieldExtracted interface {
	Plugin
	OnFieldExtracted(ctx context.Context, r *run.Run, f extract.Field) error
}

// OnGateRejected is called when a stage gate terminates the run.
type OnGateRejected interface {
	Plugin
	OnGateRejected(ctx context.Context, r *run.Run, stage run.Stage, reason string) error
}

// OnRunCompleted is called when a run reaches a terminal decision.
type OnRunCompleted interface {
	Plugin
	OnRunCompleted(ctx context.Context, r *run.Run) error
}

// OnRunError is called when a run stops on an unexpected failure.
type OnRunError interface {
	Plugin
	OnRunError(ctx context.Context, r *run.Run, err error) error
}

// OnRunsArchived is called when the archive worker flushes a batch of
// completed runs to the store.
type OnRunsArchived interface {
	Plugin
	OnRunsArchived(ctx context.Context, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Progress sinks
// ──────────────────────────────────────────────────

// ProgressSink receives progress events. Delivery is best-effort: errors are
// logged and the pipeline continues.
type ProgressSink interface {
	Plugin
	SendEvent(evt event.Event) error
}

// ──────────────────────────────────────────────────
// Rate sources
// ──────────────────────────────────────────────────

// RateSource resolves tax rates per jurisdiction, overriding the static rate
// table. The first source to answer wins.
type RateSource interface {
	Plugin
	TaxRate(ctx context.Context, jurisdiction string) (int64, bool)
}

// ──────────────────────────────────────────────────
// Risk signals
// ──────────────────────────────────────────────────

// RiskSignal contributes custom anomaly signals to the risk stage. Returned
// signals are merged with the built-in heuristics under the same category
// weights.
type RiskSignal interface {
	Plugin
	AssessRisk(ctx context.Context, r *run.Run, current types.Money, prior []types.Money) []risk.Signal
}

// ──────────────────────────────────────────────────
// Account mappers
// ──────────────────────────────────────────────────

// AccountMapper overrides the chart of accounts per vendor. The first mapper
// to answer wins.
type AccountMapper interface {
	Plugin
	MapAccounts(ctx context.Context, vendorID string, fields []extract.Field) (posting.Chart, bool)
}
