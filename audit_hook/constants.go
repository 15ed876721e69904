package audithook

// Action constants for audit events.
const (
	// Run lifecycle
	ActionRunStarted   = "run.started"
	ActionRunCompleted = "run.completed"
	ActionRunFailed    = "run.failed"

	// Stage lifecycle
	ActionStageCompleted = "stage.completed"
	ActionGateRejected   = "gate.rejected"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)
