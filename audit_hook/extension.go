// Package audithook bridges pipeline lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import the
// store layer directly. Callers inject a RecorderFunc adapter that bridges to
// the concrete backend at wiring time (see payable.StoreAuditRecorder).
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/payable/id"
	"github.com/xraph/payable/plugin"
	"github.com/xraph/payable/run"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Extension)(nil)
	_ plugin.OnRunStarted     = (*Extension)(nil)
	_ plugin.OnStageCompleted = (*Extension)(nil)
	_ plugin.OnGateRejected   = (*Extension)(nil)
	_ plugin.OnRunCompleted   = (*Extension)(nil)
	_ plugin.OnRunError       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that audit_hook does not import the store
// package directly; callers inject the concrete backend at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors run.AuditRecord but avoids a store dependency.
type AuditEvent struct {
	RunID    id.RunID       `json:"run_id"`
	Stage    run.Stage      `json:"stage,omitempty"`
	Action   string         `json:"action"`
	Outcome  string         `json:"outcome"`
	Severity string         `json:"severity"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges pipeline lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnRunStarted implements plugin.OnRunStarted.
func (e *Extension) OnRunStarted(ctx context.Context, r *run.Run) error {
	return e.record(ctx, ActionRunStarted, SeverityInfo, OutcomeSuccess,
		r.ID, "", nil,
		"document", r.DocumentRef.URI,
		"vendor_id", r.VendorID,
	)
}

// OnStageCompleted implements plugin.OnStageCompleted.
func (e *Extension) OnStageCompleted(ctx context.Context, r *run.Run, stage run.Stage) error {
	return e.record(ctx, ActionStageCompleted, SeverityInfo, OutcomeSuccess,
		r.ID, stage, nil,
		"state", string(r.State),
	)
}

// OnGateRejected implements plugin.OnGateRejected.
func (e *Extension) OnGateRejected(ctx context.Context, r *run.Run, stage run.Stage, reason string) error {
	return e.record(ctx, ActionGateRejected, SeverityWarning, OutcomeRejected,
		r.ID, stage, nil,
		"reason", reason,
	)
}

// OnRunCompleted implements plugin.OnRunCompleted.
func (e *Extension) OnRunCompleted(ctx context.Context, r *run.Run) error {
	outcome := OutcomeSuccess
	severity := SeverityInfo
	if r.Decision == run.DecisionRejected {
		outcome = OutcomeRejected
		severity = SeverityWarning
	}
	return e.record(ctx, ActionRunCompleted, severity, outcome,
		r.ID, "", nil,
		"decision", string(r.Decision),
		"reason", r.Reason,
	)
}

// OnRunError implements plugin.OnRunError.
func (e *Extension) OnRunError(ctx context.Context, r *run.Run, err error) error {
	return e.record(ctx, ActionRunFailed, SeverityCritical, OutcomeFailure,
		r.ID, "", err,
		"state", string(r.State),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	runID id.RunID,
	stage run.Stage,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		RunID:    runID,
		Stage:    stage,
		Action:   action,
		Outcome:  outcome,
		Severity: severity,
		Reason:   reason,
		Metadata: meta,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"run_id", runID,
			"error", recErr,
		)
	}
	return nil
}
