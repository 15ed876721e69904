package extension

import (
	"time"

	payable "github.com/xraph/payable"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/plugin"
	"github.com/xraph/payable/store"
)

// Option configures the Payable Forge extension.
type Option func(*Extension)

// WithStore sets the store for the pipeline engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a payable.Option through to the underlying engine.
func WithEngineOption(opt payable.Option) Option {
	return func(e *Extension) {
		e.payableOpts = append(e.payableOpts, opt)
	}
}

// WithPlugin registers a pipeline plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.payableOpts = append(e.payableOpts, payable.WithPlugin(p))
	}
}

// WithProvider sets the document-analysis provider used by the extraction
// stage.
func WithProvider(p extract.Provider) Option {
	return func(e *Extension) {
		e.payableOpts = append(e.payableOpts, payable.WithProvider(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithArchiveBatchSize sets the number of terminal runs to buffer before flushing.
func WithArchiveBatchSize(size int) Option {
	return func(e *Extension) { e.config.ArchiveBatchSize = size }
}

// WithArchiveFlushInterval sets how frequently the archive buffer is flushed.
func WithArchiveFlushInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.ArchiveFlushInterval = d }
}

// WithGateThreshold sets the risk score above which a run is rejected.
func WithGateThreshold(threshold int) Option {
	return func(e *Extension) { e.config.GateThreshold = threshold }
}

// WithHistoryLimit bounds how many prior vendor amounts the risk stage reads.
func WithHistoryLimit(limit int) Option {
	return func(e *Extension) { e.config.HistoryLimit = limit }
}

// WithFullAudit runs every analysis stage even after a gate fails.
func WithFullAudit() Option {
	return func(e *Extension) { e.config.FullAudit = true }
}

// WithParallelAnalysis runs the analysis stages concurrently.
func WithParallelAnalysis() Option {
	return func(e *Extension) { e.config.ParallelAnalysis = true }
}
