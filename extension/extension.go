// Package extension provides the Forge extension adapter for Payable.
//
// It implements the forge.Extension interface to integrate Payable
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.payable" or "payable" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	payable "github.com/xraph/payable"
	"github.com/xraph/payable/store"
	"github.com/xraph/payable/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "payable"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Invoice analysis and ledger coding pipeline"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Payable as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *payable.Engine
	store       store.Store
	payableOpts []payable.Option
}

// New creates a new Payable Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Payable engine.
// This is nil until Register is called.
func (e *Extension) Engine() *payable.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the pipeline engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	// Build engine options from resolved config.
	opts := e.buildEngineOpts()

	e.engine = payable.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*payable.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("payable: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("payable: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs payable.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []payable.Option {
	opts := make([]payable.Option, 0, len(e.payableOpts)+5)

	// Apply config-derived options.
	if e.config.ArchiveBatchSize > 0 || e.config.ArchiveFlushInterval > 0 {
		batchSize := e.config.ArchiveBatchSize
		flushInterval := e.config.ArchiveFlushInterval
		defaults := DefaultConfig()
		if batchSize == 0 {
			batchSize = defaults.ArchiveBatchSize
		}
		if flushInterval == 0 {
			flushInterval = defaults.ArchiveFlushInterval
		}
		opts = append(opts, payable.WithArchiveConfig(batchSize, flushInterval))
	}

	if e.config.GateThreshold > 0 {
		opts = append(opts, payable.WithGateThreshold(e.config.GateThreshold))
	}
	if e.config.HistoryLimit > 0 {
		opts = append(opts, payable.WithHistoryLimit(e.config.HistoryLimit))
	}
	if e.config.FullAudit {
		opts = append(opts, payable.WithFullAudit())
	}
	if e.config.ParallelAnalysis {
		opts = append(opts, payable.WithParallelAnalysis())
	}

	// Append any pass-through engine options.
	opts = append(opts, e.payableOpts...)

	return opts
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("payable: configuration is required but not found in config files; " +
				"ensure 'extensions.payable' or 'payable' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("payable: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("archive_batch_size", e.config.ArchiveBatchSize),
		forge.F("archive_flush_interval", e.config.ArchiveFlushInterval),
		forge.F("gate_threshold", e.config.GateThreshold),
		forge.F("history_limit", e.config.HistoryLimit),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.payable" first (namespaced pattern).
	if cm.IsSet("extensions.payable") {
		if err := cm.Bind("extensions.payable", &cfg); err == nil {
			e.Logger().Debug("payable: loaded config from file",
				forge.F("key", "extensions.payable"),
			)
			return cfg, true
		}
		e.Logger().Warn("payable: failed to bind extensions.payable config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "payable" key.
	if cm.IsSet("payable") {
		if err := cm.Bind("payable", &cfg); err == nil {
			e.Logger().Debug("payable: loaded config from file",
				forge.F("key", "payable"),
			)
			return cfg, true
		}
		e.Logger().Warn("payable: failed to bind payable config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ArchiveBatchSize == 0 {
		cfg.ArchiveBatchSize = defaults.ArchiveBatchSize
	}
	if cfg.ArchiveFlushInterval == 0 {
		cfg.ArchiveFlushInterval = defaults.ArchiveFlushInterval
	}
	if cfg.GateThreshold == 0 {
		cfg.GateThreshold = defaults.GateThreshold
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaults.HistoryLimit
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.FullAudit {
		yamlConfig.FullAudit = true
	}
	if programmaticConfig.ParallelAnalysis {
		yamlConfig.ParallelAnalysis = true
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.ArchiveBatchSize == 0 && programmaticConfig.ArchiveBatchSize != 0 {
		yamlConfig.ArchiveBatchSize = programmaticConfig.ArchiveBatchSize
	}
	if yamlConfig.ArchiveFlushInterval == 0 && programmaticConfig.ArchiveFlushInterval != 0 {
		yamlConfig.ArchiveFlushInterval = programmaticConfig.ArchiveFlushInterval
	}
	if yamlConfig.GateThreshold == 0 && programmaticConfig.GateThreshold != 0 {
		yamlConfig.GateThreshold = programmaticConfig.GateThreshold
	}
	if yamlConfig.HistoryLimit == 0 && programmaticConfig.HistoryLimit != 0 {
		yamlConfig.HistoryLimit = programmaticConfig.HistoryLimit
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
