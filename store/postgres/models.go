package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/payable/run"
)

// runModel is the row shape for payable_runs. The full run aggregate is kept
// as a JSONB snapshot; the flat columns exist for filtering and indexing.
type runModel struct {
	ID          string
	VendorID    string
	State       string
	Decision    string
	Reason      string
	Snapshot    []byte
	StartedAt   time.Time
	CompletedAt *time.Time
}

func toRunModel(r *run.Run) (*runModel, error) {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return &runModel{
		ID:          r.ID.String(),
		VendorID:    r.VendorID,
		State:       string(r.State),
		Decision:    string(r.Decision),
		Reason:      r.Reason,
		Snapshot:    snapshot,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}, nil
}

func fromRunModel(m *runModel) (*run.Run, error) {
	r := new(run.Run)
	if err := json.Unmarshal(m.Snapshot, r); err != nil {
		return nil, err
	}
	return r, nil
}

// auditModel is the row shape for payable_audit_records.
type auditModel struct {
	ID        string
	RunID     string
	Stage     string
	Action    string
	Outcome   string
	Detail    []byte
	CreatedAt time.Time
}

func toAuditModel(rec *run.AuditRecord) (*auditModel, error) {
	detail := []byte("{}")
	if rec.Detail != nil {
		var err error
		detail, err = json.Marshal(rec.Detail)
		if err != nil {
			return nil, err
		}
	}
	return &auditModel{
		ID:        rec.ID.String(),
		RunID:     rec.RunID.String(),
		Stage:     string(rec.Stage),
		Action:    rec.Action,
		Outcome:   rec.Outcome,
		Detail:    detail,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func fromAuditModel(m *auditModel) (*run.AuditRecord, error) {
	rec := &run.AuditRecord{
		Stage:     run.Stage(m.Stage),
		Action:    m.Action,
		Outcome:   m.Outcome,
		CreatedAt: m.CreatedAt,
	}
	if err := rec.ID.UnmarshalText([]byte(m.ID)); err != nil {
		return nil, err
	}
	if err := rec.RunID.UnmarshalText([]byte(m.RunID)); err != nil {
		return nil, err
	}
	if len(m.Detail) > 0 {
		if err := json.Unmarshal(m.Detail, &rec.Detail); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
