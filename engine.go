package payable

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/payable/comply"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/plugin"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/store"
	"github.com/xraph/payable/types"
	"github.com/xraph/payable/validate"
)

// Engine is the invoice-processing pipeline.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	provider  extract.Provider
	extractor *extract.Extractor
	validator *validate.Validator
	checker   *comply.Checker
	scorer    *risk.Scorer
	coder     *posting.Coder

	// Pipeline configuration
	gateThreshold int
	fullAudit     bool
	parallel      bool
	historyLimit  int
	currency      string

	// Background workers
	archiveBuffer chan *run.Run
	stopChan      chan struct{}
	wg            sync.WaitGroup

	mu     sync.Mutex
	closed bool

	archiveBatchSize     int
	archiveFlushInterval time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:                s,
		plugins:              plugin.NewRegistry(),
		logger:               slog.Default(),
		gateThreshold:        50,
		historyLimit:         100,
		currency:             "usd",
		archiveBuffer:        make(chan *run.Run, 1024),
		stopChan:             make(chan struct{}),
		archiveBatchSize:     32,
		archiveFlushInterval: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.validator == nil {
		e.validator = validate.New(validate.DefaultConfig())
	}
	if e.checker == nil {
		e.checker = comply.New(comply.DefaultConfig())
	}
	if e.scorer == nil {
		e.scorer = risk.New(risk.DefaultConfig())
	}
	if e.coder == nil {
		e.coder = posting.New(posting.DefaultChart())
	}
	e.extractor = extract.NewExtractor(e.provider, e.logger)

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithProvider sets the document-analysis provider used by the extraction
// stage.
func WithProvider(p extract.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithValidator configures the validation stage.
func WithValidator(cfg validate.Config) Option {
	return func(e *Engine) {
		e.validator = validate.New(cfg)
	}
}

// WithComplianceConfig configures the compliance stage.
func WithComplianceConfig(cfg comply.Config) Option {
	return func(e *Engine) {
		e.checker = comply.New(cfg)
		if cfg.Currency != "" {
			e.currency = cfg.Currency
		}
	}
}

// WithRiskConfig configures the risk stage.
func WithRiskConfig(cfg risk.Config) Option {
	return func(e *Engine) {
		e.scorer = risk.New(cfg)
	}
}

// WithChart sets the chart of accounts for the ledger coding stage.
func WithChart(chart posting.Chart) Option {
	return func(e *Engine) {
		e.coder = posting.New(chart)
	}
}

// WithGateThreshold sets the risk score above which a run is rejected.
func WithGateThreshold(threshold int) Option {
	return func(e *Engine) {
		e.gateThreshold = threshold
	}
}

// WithFullAudit runs every analysis stage even after a gate fails, deciding
// the outcome over the collected results. The decision matches early-exit
// mode; only the amount of recorded evidence differs.
func WithFullAudit() Option {
	return func(e *Engine) {
		e.fullAudit = true
	}
}

// WithParallelAnalysis runs validation, compliance and risk concurrently over
// the immutable field snapshot. Gates still apply in the fixed order, so
// decisions match sequential mode.
func WithParallelAnalysis() Option {
	return func(e *Engine) {
		e.parallel = true
	}
}

// WithArchiveConfig configures the archive worker's batching.
func WithArchiveConfig(batchSize int, flushInterval time.Duration) Option {
	return func(e *Engine) {
		e.archiveBatchSize = batchSize
		e.archiveFlushInterval = flushInterval
	}
}

// WithHistoryLimit bounds how many prior vendor amounts the risk stage reads.
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		e.historyLimit = limit
	}
}

// Start migrates the store and begins background workers.
func (e *Engine) Start(ctx context.Context) error {
	// Migrate database
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	e.plugins.EmitInit(ctx, e)

	// Start archive flush worker
	e.wg.Add(1)
	go e.archiveWorker(ctx)

	e.logger.Info("payable engine started",
		"gate_threshold", e.gateThreshold,
		"full_audit", e.fullAudit,
		"parallel_analysis", e.parallel,
		"archive_batch_size", e.archiveBatchSize,
		"archive_flush_interval", e.archiveFlushInterval,
	)

	return nil
}

// Stop drains the archive worker and shuts down the Engine.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// isClosed reports whether Stop has been called.
func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// ──────────────────────────────────────────────────
// Run queries
// ──────────────────────────────────────────────────

// GetRun retrieves a run by ID.
func (e *Engine) GetRun(ctx context.Context, runID id.RunID) (*run.Run, error) {
	return e.store.GetRun(ctx, runID)
}

// ListRuns lists runs matching the filter.
func (e *Engine) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	return e.store.ListRuns(ctx, opts)
}

// AuditTrail returns the audit records for a run, oldest first.
func (e *Engine) AuditTrail(ctx context.Context, runID id.RunID) ([]*run.AuditRecord, error) {
	return e.store.ListAudit(ctx, runID)
}

// VendorHistory returns the recorded invoice amounts for a vendor, oldest
// first.
func (e *Engine) VendorHistory(ctx context.Context, vendorID string, limit int) ([]types.Money, error) {
	return e.store.VendorHistory(ctx, vendorID, limit)
}

// ──────────────────────────────────────────────────
// Archive worker
// ──────────────────────────────────────────────────

// archive enqueues a terminal run for persistence. Archiving is best-effort:
// a full buffer is logged, never surfaced to Process callers.
func (e *Engine) archive(rn *run.Run) {
	select {
	case e.archiveBuffer <- rn:
	default:
		e.logger.Warn("archive buffer full, dropping run snapshot",
			"run_id", rn.ID.String(),
		)
	}
}

// archiveWorker flushes terminal runs to the store.
func (e *Engine) archiveWorker(ctx context.Context) {
	defer e.wg.Done()

	batch := make([]*run.Run, 0, e.archiveBatchSize)
	ticker := time.NewTicker(e.archiveFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			// Drain whatever is queued, then final flush
			for {
				select {
				case rn := <-e.archiveBuffer:
					batch = append(batch, rn)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				e.flushArchiveBatch(ctx, batch)
			}
			return

		case rn := <-e.archiveBuffer:
			batch = append(batch, rn)
			if len(batch) >= e.archiveBatchSize {
				e.flushArchiveBatch(ctx, batch)
				batch = make([]*run.Run, 0, e.archiveBatchSize)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				e.flushArchiveBatch(ctx, batch)
				batch = make([]*run.Run, 0, e.archiveBatchSize)
			}
		}
	}
}

func (e *Engine) flushArchiveBatch(ctx context.Context, batch []*run.Run) {
	start := time.Now()

	flushed := 0
	for _, rn := range batch {
		if err := e.store.FinishRun(ctx, rn); err != nil {
			e.logger.Error("failed to archive run",
				"run_id", rn.ID.String(),
				"error", err,
			)
			continue
		}
		flushed++

		// Approved amounts feed the vendor history the risk heuristics read.
		if rn.Decision == run.DecisionApproved && rn.VendorID != "" {
			if total, ok := e.runTotal(rn); ok {
				if err := e.store.RecordAmount(ctx, rn.VendorID, total, rn.StartedAt); err != nil {
					e.logger.Warn("failed to record vendor amount",
						"run_id", rn.ID.String(),
						"vendor_id", rn.VendorID,
						"error", err,
					)
				}
			}
		}
	}

	elapsed := time.Since(start)
	e.plugins.EmitRunsArchived(ctx, flushed, elapsed)

	e.logger.Debug("flushed archive batch",
		"batch_size", len(batch),
		"flushed", flushed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// runTotal parses the invoice total from the run's field snapshot.
func (e *Engine) runTotal(rn *run.Run) (types.Money, bool) {
	for _, f := range rn.Fields {
		if !containsFold(f.Name, "total") {
			continue
		}
		m, err := types.ParseMajor(f.Value, e.currency)
		if err != nil {
			return types.Money{}, false
		}
		return m, true
	}
	return types.Money{}, false
}
