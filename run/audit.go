package run

import (
	"time"

	"github.com/xraph/payable/id"
)

// AuditRecord is one immutable line of the processing audit trail.
type AuditRecord struct {
	ID        id.AuditID     `json:"id"`
	RunID     id.RunID       `json:"run_id"`
	Stage     Stage          `json:"stage,omitempty"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewAuditRecord stamps a record with a fresh ID and the current time.
func NewAuditRecord(runID id.RunID, stage Stage, action, outcome string, detail map[string]any) *AuditRecord {
	return &AuditRecord{
		ID:        id.NewAuditID(),
		RunID:     runID,
		Stage:     stage,
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
}
