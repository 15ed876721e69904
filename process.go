package payable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xraph/payable/comply"
	"github.com/xraph/payable/event"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/run"
	"github.com/xraph/payable/types"
	"github.com/xraph/payable/validate"
)

// ProcessOption configures a single Process invocation.
type ProcessOption func(*processOptions)

type processOptions struct {
	jurisdiction string
}

// WithJurisdiction sets the tax jurisdiction for the compliance stage.
func WithJurisdiction(code string) ProcessOption {
	return func(o *processOptions) {
		o.jurisdiction = code
	}
}

// Process runs the full pipeline over one document:
// EXTRACTING → VALIDATING → CHECKING_COMPLIANCE → SCORING_RISK →
// CODING_LEDGER → APPROVED, with REJECTED reachable from each of the three
// gates. The returned run carries the terminal decision; a gate rejection is
// a normal outcome, not an error. An unexpected stage failure returns the
// partial run together with the error, and the run has no decision.
func (e *Engine) Process(ctx context.Context, ref extract.DocumentRef, opts ...ProcessOption) (*run.Run, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}
	if ref.IsZero() {
		return nil, ErrDocumentEmpty
	}

	var po processOptions
	for _, opt := range opts {
		opt(&po)
	}

	if ref.ID.IsNil() {
		ref.ID = id.NewDocumentID()
	}

	rn := run.New(ref)
	if err := e.store.CreateRun(ctx, rn); err != nil {
		e.logger.Warn("failed to persist run start",
			"run_id", rn.ID.String(),
			"error", err,
		)
	}
	e.plugins.EmitRunStarted(ctx, rn)

	// EXTRACTING
	e.enterStage(ctx, rn, run.StateExtracting, run.StageExtraction)
	rn.Fields = e.extractor.Extract(ctx, ref, func(f extract.Field) {
		e.plugins.EmitFieldExtracted(ctx, rn, f)
		e.emit(ctx, rn, event.TypeFieldExtracted, map[string]any{
			"field_id":   f.ID.String(),
			"name":       f.Name,
			"value":      f.Value,
			"confidence": f.Confidence,
		})
	})
	e.completeStage(ctx, rn, run.StageExtraction)

	rate := e.resolveRate(ctx, po.jurisdiction)
	signals := e.collectSignals(ctx, rn)

	var rejected bool
	if e.parallel || e.fullAudit {
		rejected = e.analyzeAll(ctx, rn, rate, signals)
	} else {
		rejected = e.analyzeEarlyExit(ctx, rn, rate, signals)
	}
	if rejected {
		e.finish(ctx, rn)
		return rn, nil
	}

	// CODING_LEDGER
	e.enterStage(ctx, rn, run.StateCodingLedger, run.StageLedger)
	set, err := e.codePostings(ctx, rn)
	if err != nil {
		return rn, e.fail(ctx, rn, run.StageLedger, err)
	}
	rn.Postings = set
	e.completeStage(ctx, rn, run.StageLedger)

	rn.Approve()
	e.finish(ctx, rn)
	return rn, nil
}

// analyzeEarlyExit runs the three analysis stages sequentially, stopping at
// the first failing gate. Reports whether the run was rejected.
func (e *Engine) analyzeEarlyExit(ctx context.Context, rn *run.Run, rate int64, signals []risk.Signal) bool {
	// VALIDATING
	e.enterStage(ctx, rn, run.StateValidating, run.StageValidation)
	v := e.validator.Check(rn.Fields)
	rn.Validation = &v
	if !v.Valid {
		e.rejectAt(ctx, rn, run.StageValidation, validationReason(v))
		return true
	}
	e.completeStage(ctx, rn, run.StageValidation)

	// CHECKING_COMPLIANCE
	e.enterStage(ctx, rn, run.StateCheckingCompliance, run.StageCompliance)
	c := e.checker.CheckAtRate(rn.Fields, rate)
	rn.Compliance = &c
	if !c.Compliant {
		e.rejectAt(ctx, rn, run.StageCompliance, complianceReason(c))
		return true
	}
	e.completeStage(ctx, rn, run.StageCompliance)

	// SCORING_RISK
	e.enterStage(ctx, rn, run.StateScoringRisk, run.StageRisk)
	a := e.scorer.Score(rn.Fields, signals...)
	rn.Risk = &a
	if a.Score > e.gateThreshold {
		e.rejectAt(ctx, rn, run.StageRisk, riskReason(a, e.gateThreshold))
		return true
	}
	e.completeStage(ctx, rn, run.StageRisk)

	return false
}

// analyzeAll runs the three analysis stages unconditionally, concurrently
// when parallel mode is on, and applies the gates as a post-processing step
// in the fixed order validation, compliance, risk. Decisions are identical to
// early-exit mode; only the amount of collected evidence differs.
func (e *Engine) analyzeAll(ctx context.Context, rn *run.Run, rate int64, signals []risk.Signal) bool {
	if e.parallel {
		e.enterStage(ctx, rn, run.StateValidating, run.StageValidation)
		e.enterStage(ctx, rn, run.StateCheckingCompliance, run.StageCompliance)
		e.enterStage(ctx, rn, run.StateScoringRisk, run.StageRisk)

		var wg sync.WaitGroup
		var v validate.Result
		var c comply.Result
		var a risk.Assessment

		wg.Add(3)
		go func() {
			defer wg.Done()
			v = e.validator.Check(rn.Fields)
		}()
		go func() {
			defer wg.Done()
			c = e.checker.CheckAtRate(rn.Fields, rate)
		}()
		go func() {
			defer wg.Done()
			a = e.scorer.Score(rn.Fields, signals...)
		}()
		wg.Wait()

		rn.Validation, rn.Compliance, rn.Risk = &v, &c, &a
		e.completeStage(ctx, rn, run.StageValidation)
		e.completeStage(ctx, rn, run.StageCompliance)
		e.completeStage(ctx, rn, run.StageRisk)
	} else {
		e.enterStage(ctx, rn, run.StateValidating, run.StageValidation)
		v := e.validator.Check(rn.Fields)
		rn.Validation = &v
		e.completeStage(ctx, rn, run.StageValidation)

		e.enterStage(ctx, rn, run.StateCheckingCompliance, run.StageCompliance)
		c := e.checker.CheckAtRate(rn.Fields, rate)
		rn.Compliance = &c
		e.completeStage(ctx, rn, run.StageCompliance)

		e.enterStage(ctx, rn, run.StateScoringRisk, run.StageRisk)
		a := e.scorer.Score(rn.Fields, signals...)
		rn.Risk = &a
		e.completeStage(ctx, rn, run.StageRisk)
	}

	// Gate post-processing in fixed order. Stages already ran and reported;
	// the first failing gate still owns the decision, exactly as in
	// early-exit mode.
	if !rn.Validation.Valid {
		e.rejectGate(ctx, rn, run.StageValidation, validationReason(*rn.Validation))
		return true
	}
	if !rn.Compliance.Compliant {
		e.rejectGate(ctx, rn, run.StageCompliance, complianceReason(*rn.Compliance))
		return true
	}
	if rn.Risk.Score > e.gateThreshold {
		e.rejectGate(ctx, rn, run.StageRisk, riskReason(*rn.Risk, e.gateThreshold))
		return true
	}
	return false
}

// codePostings resolves the chart of accounts and generates postings.
func (e *Engine) codePostings(ctx context.Context, rn *run.Run) (posting.Set, error) {
	for _, m := range e.plugins.GetAccountMappers() {
		if chart, ok := m.MapAccounts(ctx, rn.VendorID, rn.Fields); ok {
			return e.coder.CodeWithChart(rn.Fields, chart)
		}
	}
	return e.coder.Code(rn.Fields)
}

// resolveRate asks registered rate sources before falling back to the static
// rate table.
func (e *Engine) resolveRate(ctx context.Context, jurisdiction string) int64 {
	for _, src := range e.plugins.GetRateSources() {
		if rate, ok := src.TaxRate(ctx, jurisdiction); ok {
			return rate
		}
	}
	return e.checker.RateFor(jurisdiction)
}

// collectSignals gathers history-based and plugin-provided risk signals for
// the run. Missing vendor history is normal for a first invoice.
func (e *Engine) collectSignals(ctx context.Context, rn *run.Run) []risk.Signal {
	total, hasTotal := e.runTotal(rn)
	prior := e.vendorHistory(ctx, rn)

	var signals []risk.Signal
	if hasTotal && len(prior) > 0 {
		signals = e.scorer.AnalyzeHistory(total, prior)
	}
	for _, p := range e.plugins.GetRiskSignals() {
		signals = append(signals, p.AssessRisk(ctx, rn, total, prior)...)
	}
	return signals
}

// ──────────────────────────────────────────────────
// Stage bookkeeping
// ──────────────────────────────────────────────────

func (e *Engine) enterStage(ctx context.Context, rn *run.Run, state run.State, stage run.Stage) {
	rn.State = state
	e.plugins.EmitStageStarted(ctx, rn, stage)
	e.emit(ctx, rn, event.TypeStageActivity, map[string]any{
		"stage":  string(stage),
		"status": "started",
	})
}

func (e *Engine) completeStage(ctx context.Context, rn *run.Run, stage run.Stage) {
	e.plugins.EmitStageCompleted(ctx, rn, stage)
	e.emit(ctx, rn, event.TypeStageActivity, map[string]any{
		"stage":  string(stage),
		"status": "completed",
	})
}

// rejectAt fixes the run's terminal rejection at the failing gate. No later
// stage executes once a gate has rejected. The rejection doubles as the
// stage's completion report.
func (e *Engine) rejectAt(ctx context.Context, rn *run.Run, stage run.Stage, reason string) {
	e.plugins.EmitStageCompleted(ctx, rn, stage)
	e.rejectGate(ctx, rn, stage, reason)
}

// rejectGate records the rejection itself, for gates whose stage has already
// reported completion (full-audit and parallel modes).
func (e *Engine) rejectGate(ctx context.Context, rn *run.Run, stage run.Stage, reason string) {
	rn.Reject(reason)
	e.plugins.EmitGateRejected(ctx, rn, stage, reason)
	e.emit(ctx, rn, event.TypeStageActivity, map[string]any{
		"stage":  string(stage),
		"status": "rejected",
		"reason": reason,
	})
	e.logger.Info("run rejected",
		"run_id", rn.ID.String(),
		"stage", string(stage),
		"reason", reason,
	)
}

// finish emits the terminal summary and hands the run to the archive worker.
func (e *Engine) finish(ctx context.Context, rn *run.Run) {
	e.emit(ctx, rn, event.TypeProcessingComplete, rn.Summary())
	e.plugins.EmitRunCompleted(ctx, rn)
	e.archive(rn)
}

// fail stops the run on an unexpected stage failure. The run keeps its
// partial results but never receives a decision.
func (e *Engine) fail(ctx context.Context, rn *run.Run, stage run.Stage, err error) error {
	stageErr := &StageError{Stage: string(stage), Err: err}
	e.plugins.EmitRunError(ctx, rn, stageErr)
	e.emit(ctx, rn, event.TypeError, map[string]any{
		"stage": string(stage),
		"error": stageErr.Error(),
	})
	e.logger.Error("run failed",
		"run_id", rn.ID.String(),
		"stage", string(stage),
		"error", err,
	)
	return stageErr
}

func (e *Engine) emit(ctx context.Context, rn *run.Run, typ event.Type, data map[string]any) {
	e.plugins.EmitProgress(ctx, event.New(rn.ID, typ, data))
}

// ──────────────────────────────────────────────────
// Reason assembly
// ──────────────────────────────────────────────────

func validationReason(v validate.Result) string {
	return "validation failed: " + strings.Join(v.Errors, "; ")
}

func complianceReason(c comply.Result) string {
	return "compliance failed: " + strings.Join(c.Violations, "; ")
}

func riskReason(a risk.Assessment, threshold int) string {
	reason := fmt.Sprintf("risk score %d exceeds threshold %d", a.Score, threshold)
	if len(a.Flags) > 0 {
		reason += ": " + strings.Join(a.Flags, "; ")
	}
	return reason
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

// vendorHistory loads prior amounts for the run's vendor, tolerating absence.
func (e *Engine) vendorHistory(ctx context.Context, rn *run.Run) []types.Money {
	if rn.VendorID == "" {
		return nil
	}
	prior, err := e.store.VendorHistory(ctx, rn.VendorID, e.historyLimit)
	if err != nil {
		if !errors.Is(err, ErrNoVendorHistory) {
			e.logger.Warn("failed to load vendor history",
				"vendor_id", rn.VendorID,
				"error", err,
			)
		}
		return nil
	}
	return prior
}
