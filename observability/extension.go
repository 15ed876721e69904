// Package observability provides a metrics extension for Payable that records
// pipeline lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/plugin"
	"github.com/xraph/payable/run"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin           = (*MetricsExtension)(nil)
	_ plugin.OnInit           = (*MetricsExtension)(nil)
	_ plugin.OnRunStarted     = (*MetricsExtension)(nil)
	_ plugin.OnStageStarted   = (*MetricsExtension)(nil)
	_ plugin.OnStageCompleted = (*MetricsExtension)(nil)
	_ plugin.OnFieldExtracted = (*MetricsExtension)(nil)
	_ plugin.OnGateRejected   = (*MetricsExtension)(nil)
	_ plugin.OnRunCompleted   = (*MetricsExtension)(nil)
	_ plugin.OnRunError       = (*MetricsExtension)(nil)
	_ plugin.OnRunsArchived   = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records pipeline-wide lifecycle metrics.
// Register it as a Payable plugin to automatically track processing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Run metrics
	RunsStarted  Counter
	RunsApproved Counter
	RunsRejected Counter
	RunsFailed   Counter
	RunDuration  Histogram

	// Stage metrics
	StagesStarted   Counter
	StagesCompleted Counter

	// Extraction metrics
	FieldsExtracted Counter
	FieldConfidence Histogram

	// Gate metrics
	ValidationRejections Counter
	ComplianceRejections Counter
	RiskRejections       Counter

	// Archive metrics
	RunsArchived        Counter
	ArchiveFlushLatency Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Run metrics
		RunsStarted:  factory.Counter("payable.runs.started"),
		RunsApproved: factory.Counter("payable.runs.approved"),
		RunsRejected: factory.Counter("payable.runs.rejected"),
		RunsFailed:   factory.Counter("payable.runs.failed"),
		RunDuration:  factory.Histogram("payable.run.duration_ms"),

		// Stage metrics
		StagesStarted:   factory.Counter("payable.stages.started"),
		StagesCompleted: factory.Counter("payable.stages.completed"),

		// Extraction metrics
		FieldsExtracted: factory.Counter("payable.fields.extracted"),
		FieldConfidence: factory.Histogram("payable.fields.confidence"),

		// Gate metrics
		ValidationRejections: factory.Counter("payable.gate.validation.rejections"),
		ComplianceRejections: factory.Counter("payable.gate.compliance.rejections"),
		RiskRejections:       factory.Counter("payable.gate.risk.rejections"),

		// Archive metrics
		RunsArchived:        factory.Counter("payable.runs.archived"),
		ArchiveFlushLatency: factory.Histogram("payable.archive.flush.latency_ms"),

		// Error metrics
		StoreErrors:  factory.Counter("payable.store.errors"),
		PluginErrors: factory.Counter("payable.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnRunStarted implements plugin.OnRunStarted.
func (m *MetricsExtension) OnRunStarted(_ context.Context, _ *run.Run) error {
	m.RunsStarted.Inc()
	return nil
}

// OnStageStarted implements plugin.OnStageStarted.
func (m *MetricsExtension) OnStageStarted(_ context.Context, _ *run.Run, _ run.Stage) error {
	m.StagesStarted.Inc()
	return nil
}

// OnStageCompleted implements plugin.OnStageCompleted.
func (m *MetricsExtension) OnStageCompleted(_ context.Context, _ *run.Run, _ run.Stage) error {
	m.StagesCompleted.Inc()
	return nil
}

// OnFieldExtracted implements plugin.OnFieldExtracted.
func (m *MetricsExtension) OnFieldExtracted(_ context.Context, _ *run.Run, f extract.Field) error {
	m.FieldsExtracted.Inc()
	m.FieldConfidence.Observe(f.Confidence)
	return nil
}

// OnGateRejected implements plugin.OnGateRejected.
func (m *MetricsExtension) OnGateRejected(_ context.Context, _ *run.Run, stage run.Stage, _ string) error {
	switch stage {
	case run.StageValidation:
		m.ValidationRejections.Inc()
	case run.StageCompliance:
		m.ComplianceRejections.Inc()
	case run.StageRisk:
		m.RiskRejections.Inc()
	}
	return nil
}

// OnRunCompleted implements plugin.OnRunCompleted.
func (m *MetricsExtension) OnRunCompleted(_ context.Context, r *run.Run) error {
	switch r.Decision {
	case run.DecisionApproved:
		m.RunsApproved.Inc()
	case run.DecisionRejected:
		m.RunsRejected.Inc()
	}
	if r.CompletedAt != nil {
		m.RunDuration.Observe(float64(r.CompletedAt.Sub(r.StartedAt).Milliseconds()))
	}
	return nil
}

// OnRunError implements plugin.OnRunError.
func (m *MetricsExtension) OnRunError(_ context.Context, _ *run.Run, _ error) error {
	m.RunsFailed.Inc()
	return nil
}

// OnRunsArchived implements plugin.OnRunsArchived.
func (m *MetricsExtension) OnRunsArchived(_ context.Context, count int, elapsed time.Duration) error {
	m.RunsArchived.Add(float64(count))
	m.ArchiveFlushLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
