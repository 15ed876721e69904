package extension

import "time"

// Config holds the Payable extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.payable" or "payable" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ArchiveBatchSize is the number of terminal runs to buffer before
	// flushing to the store (default: 32).
	ArchiveBatchSize int `json:"archive_batch_size" mapstructure:"archive_batch_size" yaml:"archive_batch_size"`

	// ArchiveFlushInterval is how frequently the archive buffer is flushed
	// even if the batch size has not been reached (default: 5s).
	ArchiveFlushInterval time.Duration `json:"archive_flush_interval" mapstructure:"archive_flush_interval" yaml:"archive_flush_interval"`

	// GateThreshold is the risk score above which a run is rejected
	// (default: 50).
	GateThreshold int `json:"gate_threshold" mapstructure:"gate_threshold" yaml:"gate_threshold"`

	// HistoryLimit bounds how many prior vendor amounts the risk stage reads
	// (default: 100).
	HistoryLimit int `json:"history_limit" mapstructure:"history_limit" yaml:"history_limit"`

	// FullAudit runs every analysis stage even after a gate fails, recording
	// complete results before rejecting.
	FullAudit bool `json:"full_audit" mapstructure:"full_audit" yaml:"full_audit"`

	// ParallelAnalysis runs validation, compliance and risk concurrently
	// over the extracted fields.
	ParallelAnalysis bool `json:"parallel_analysis" mapstructure:"parallel_analysis" yaml:"parallel_analysis"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ArchiveBatchSize:     32,
		ArchiveFlushInterval: 5 * time.Second,
		GateThreshold:        50,
		HistoryLimit:         100,
	}
}
