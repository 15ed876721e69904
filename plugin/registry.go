package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/payable/event"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/run"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit           []OnInit
	onShutdown       []OnShutdown
	onRunStarted     []OnRunStarted
	onStageStarted   []OnStageStarted
	onStageCompleted []OnStageCompleted
	onFieldExtracted []OnFieldExtracted
	onGateRejected   []OnGateRejected
	onRunCompleted   []OnRunCompleted
	onRunError       []OnRunError
	onRunsArchived   []OnRunsArchived
	progressSinks    []ProgressSink
	rateSources      []RateSource
	riskSignals      []RiskSignal
	accountMappers   []AccountMapper
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnRunStarted); ok {
		r.onRunStarted = append(r.onRunStarted, v)
	}
	if v, ok := p.(OnStageStarted); ok {
		r.onStageStarted = append(r.onStageStarted, v)
	}
	if v, ok := p.(OnStageCompleted); ok {
		r.onStageCompleted = append(r.onStageCompleted, v)
	}
	if v, ok := p.(OnFieldExtracted); ok {
		r.onFieldExtracted = append(r.onFieldExtracted, v)
	}
	if v, ok := p.(OnGateRejected); ok {
		r.onGateRejected = append(r.onGateRejected, v)
	}
	if v, ok := p.(OnRunCompleted); ok {
		r.onRunCompleted = append(r.onRunCompleted, v)
	}
	if v, ok := p.(OnRunError); ok {
		r.onRunError = append(r.onRunError, v)
	}
	if v, ok := p.(OnRunsArchived); ok {
		r.onRunsArchived = append(r.onRunsArchived, v)
	}
	if v, ok := p.(ProgressSink); ok {
		r.progressSinks = append(r.progressSinks, v)
	}
	if v, ok := p.(RateSource); ok {
		r.rateSources = append(r.rateSources, v)
	}
	if v, ok := p.(RiskSignal); ok {
		r.riskSignals = append(r.riskSignals, v)
	}
	if v, ok := p.(AccountMapper); ok {
		r.accountMappers = append(r.accountMappers, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnRunStarted)(nil)).Elem(), "OnRunStarted")
	checkInterface(reflect.TypeOf((*OnStageStarted)(nil)).Elem(), "OnStageStarted")
	checkInterface(reflect.TypeOf((*OnStageCompleted)(nil)).Elem(), "OnStageCompleted")
	checkInterface(reflect.TypeOf((*OnFieldExtracted)(nil)).Elem(), "OnFieldExtracted")
	checkInterface(reflect.TypeOf((*OnGateRejected)(nil)).Elem(), "OnGateRejected")
	checkInterface(reflect.TypeOf((*OnRunCompleted)(nil)).Elem(), "OnRunCompleted")
	checkInterface(reflect.TypeOf((*OnRunError)(nil)).Elem(), "OnRunError")
	checkInterface(reflect.TypeOf((*OnRunsArchived)(nil)).Elem(), "OnRunsArchived")
	checkInterface(reflect.TypeOf((*ProgressSink)(nil)).Elem(), "ProgressSink")
	checkInterface(reflect.TypeOf((*RateSource)(nil)).Elem(), "RateSource")
	checkInterface(reflect.TypeOf((*RiskSignal)(nil)).Elem(), "RiskSignal")
	checkInterface(reflect.TypeOf((*AccountMapper)(nil)).Elem(), "AccountMapper")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRunStarted emits a run started event.
func (r *Registry) EmitRunStarted(ctx context.Context, rn *run.Run) {
	r.mu.RLock()
	plugins := r.onRunStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRunStarted(ctx, rn)
		}); err != nil {
			r.logger.Warn("plugin OnRunStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStageStarted emits a stage started event.
func (r *Registry) EmitStageStarted(ctx context.Context, rn *run.Run, stage run.Stage) {
	r.mu.RLock()
	plugins := r.onStageStarted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStageStarted(ctx, rn, stage)
		}); err != nil {
			r.logger.Warn("plugin OnStageStarted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStageCompleted emits a stage completed event.
func (r *Registry) EmitStageCompleted(ctx context.Context, rn *run.Run, stage run.Stage) {
	r.mu.RLock()
	plugins := r.onStageCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStageCompleted(ctx, rn, stage)
		}); err != nil {
			r.logger.Warn("plugin OnStageCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitFieldExtracted emits one field extracted event.
func (r *Registry) EmitFieldExtracted(ctx context.Context, rn *run.Run, f extract.Field) {
	r.mu.RLock()
	plugins := r.onFieldExtracted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnFieldExtracted(ctx, rn, f)
		}); err != nil {
			r.logger.Warn("plugin OnFieldExtracted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitGateRejected emits a gate rejection event.
func (r *Registry) EmitGateRejected(ctx context.Context, rn *run.Run, stage run.Stage, reason string) {
	r.mu.RLock()
	plugins := r.onGateRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnGateRejected(ctx, rn, stage, reason)
		}); err != nil {
			r.logger.Warn("plugin OnGateRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRunCompleted emits a run completed event.
func (r *Registry) EmitRunCompleted(ctx context.Context, rn *run.Run) {
	r.mu.RLock()
	plugins := r.onRunCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRunCompleted(ctx, rn)
		}); err != nil {
			r.logger.Warn("plugin OnRunCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRunError emits a run error event.
func (r *Registry) EmitRunError(ctx context.Context, rn *run.Run, runErr error) {
	r.mu.RLock()
	plugins := r.onRunError
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRunError(ctx, rn, runErr)
		}); err != nil {
			r.logger.Warn("plugin OnRunError failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRunsArchived emits an archive flush event.
func (r *Registry) EmitRunsArchived(ctx context.Context, count int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onRunsArchived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRunsArchived(ctx, count, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnRunsArchived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitProgress delivers a progress event to all registered sinks.
func (r *Registry) EmitProgress(ctx context.Context, evt event.Event) {
	r.mu.RLock()
	sinks := r.progressSinks
	r.mu.RUnlock()

	for _, p := range sinks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.SendEvent(evt)
		}); err != nil {
			r.logger.Warn("progress sink delivery failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// GetRateSources returns all registered rate sources.
func (r *Registry) GetRateSources() []RateSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RateSource, len(r.rateSources))
	copy(result, r.rateSources)
	return result
}

// GetRiskSignals returns all registered risk signal plugins.
func (r *Registry) GetRiskSignals() []RiskSignal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]RiskSignal, len(r.riskSignals))
	copy(result, r.riskSignals)
	return result
}

// GetAccountMappers returns all registered account mappers.
func (r *Registry) GetAccountMappers() []AccountMapper {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]AccountMapper, len(r.accountMappers))
	copy(result, r.accountMappers)
	return result
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the invoice pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
