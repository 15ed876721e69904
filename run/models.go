package run

import (
	"time"

	"github.com/xraph/payable/comply"
	"github.com/xraph/payable/extract"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/posting"
	"github.com/xraph/payable/risk"
	"github.com/xraph/payable/validate"
)

// State is the pipeline stage a run is currently in, or its terminal outcome.
type State string

const (
	StateExtracting         State = "EXTRACTING"
	StateValidating         State = "VALIDATING"
	StateCheckingCompliance State = "CHECKING_COMPLIANCE"
	StateScoringRisk        State = "SCORING_RISK"
	StateCodingLedger       State = "CODING_LEDGER"
	StateApproved           State = "APPROVED"
	StateRejected           State = "REJECTED"
)

// Terminal reports whether the state is an end state. Terminal runs are never
// re-entered.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateRejected
}

// Decision is the terminal verdict of a run. Empty until the run terminates.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Stage names a pipeline stage for events, hooks and audit records.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageValidation Stage = "validation"
	StageCompliance Stage = "compliance"
	StageRisk       Stage = "risk"
	StageLedger     Stage = "ledger"
)

// Run is the aggregate for one pipeline invocation. Each Process call creates
// its own Run; no state is shared across concurrent runs.
type Run struct {
	ID          id.RunID            `json:"id"`
	DocumentRef extract.DocumentRef `json:"document_ref"`
	VendorID    string              `json:"vendor_id,omitempty"`
	State       State               `json:"state"`
	Fields      []extract.Field     `json:"fields,omitempty"`
	Validation  *validate.Result    `json:"validation,omitempty"`
	Compliance  *comply.Result      `json:"compliance,omitempty"`
	Risk        *risk.Assessment    `json:"risk,omitempty"`
	Postings    posting.Set         `json:"postings,omitempty"`
	Decision    Decision            `json:"decision,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// New creates a run in the extracting state.
func New(ref extract.DocumentRef) *Run {
	return &Run{
		ID:          id.NewRunID(),
		DocumentRef: ref,
		VendorID:    ref.VendorID,
		State:       StateExtracting,
		StartedAt:   time.Now().UTC(),
	}
}

// Approve fixes the run's terminal decision as approved.
func (r *Run) Approve() {
	now := time.Now().UTC()
	r.State = StateApproved
	r.Decision = DecisionApproved
	r.CompletedAt = &now
}

// Reject fixes the run's terminal decision as rejected with the failing
// stage's reason. Once set, the decision never changes.
func (r *Run) Reject(reason string) {
	now := time.Now().UTC()
	r.State = StateRejected
	r.Decision = DecisionRejected
	r.Reason = reason
	r.CompletedAt = &now
}

// Summary is the aggregate carried by the terminal progress event.
func (r *Run) Summary() map[string]any {
	s := map[string]any{
		"run_id":           r.ID.String(),
		"decision":         string(r.Decision),
		"fields_extracted": len(r.Fields),
		"ledger_entries":   len(r.Postings),
	}
	if r.Validation != nil {
		s["valid"] = r.Validation.Valid
	}
	if r.Compliance != nil {
		s["compliant"] = r.Compliance.Compliant
	}
	if r.Risk != nil {
		s["risk_score"] = r.Risk.Score
		s["risk_level"] = string(r.Risk.Level)
	}
	if r.Reason != "" {
		s["reason"] = r.Reason
	}
	return s
}
