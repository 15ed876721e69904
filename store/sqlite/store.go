// Package sqlite implements the payable store on an embedded SQLite
// database. It is suitable for single-process deployments and local
// development; use the postgres store for anything multi-node.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "modernc.org/sqlite"

	payable "github.com/xraph/payable"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	payablestore "github.com/xraph/payable/store"
	"github.com/xraph/payable/types"
)

// compile-time interface check
var _ payablestore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via database/sql.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path. Use ":memory:"
// for an ephemeral store.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("payable/sqlite: open: %w", err)
	}
	// SQLite supports one writer; serializing through a single connection
	// avoids SQLITE_BUSY under concurrent archive flushes.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes. Each migration runs in its
// own transaction and is recorded, so Migrate is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS payable_schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`)
	if err != nil {
		return fmt.Errorf("payable/sqlite: migration table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM payable_schema_migrations`)
	if err != nil {
		return fmt.Errorf("payable/sqlite: read migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close() //nolint:errcheck // already failing
			return fmt.Errorf("payable/sqlite: read migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close() //nolint:errcheck // read-only query
	if err := rows.Err(); err != nil {
		return fmt.Errorf("payable/sqlite: read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("payable/sqlite: migration %s failed: %w", m.name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payable_schema_migrations (version, name) VALUES (?, ?)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Run store ====================

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO payable_runs (id, vendor_id, state, decision, reason, snapshot, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.VendorID, string(r.State), string(r.Decision), r.Reason,
		string(snapshot), r.StartedAt, r.CompletedAt,
	)
	if isUniqueViolation(err) {
		return payable.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*run.Run, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM payable_runs WHERE id = ?`, runID.String(),
	).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payable.ErrRunNotFound
		}
		return nil, err
	}
	return decodeRun(snapshot)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var conds []string
	var args []any

	if opts.VendorID != "" {
		conds = append(conds, "vendor_id = ?")
		args = append(args, opts.VendorID)
	}
	if opts.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, string(opts.State))
	}
	if opts.Decision != "" {
		conds = append(conds, "decision = ?")
		args = append(args, string(opts.Decision))
	}
	if !opts.Start.IsZero() {
		conds = append(conds, "started_at >= ?")
		args = append(args, opts.Start)
	}
	if !opts.End.IsZero() {
		conds = append(conds, "started_at <= ?")
		args = append(args, opts.End)
	}

	q := `SELECT snapshot FROM payable_runs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY started_at ASC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			q += " LIMIT -1"
		}
		q += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var result []*run.Run
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, err
		}
		r, err := decodeRun(snapshot)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) FinishRun(ctx context.Context, r *run.Run) error {
	snapshot, err := json.Marshal(r)
	if err != nil {
		return err
	}
	// Upsert: archiving may land before or after CreateRun depending on
	// worker timing.
	_, err = s.db.ExecContext(ctx, `
INSERT INTO payable_runs (id, vendor_id, state, decision, reason, snapshot, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    state        = excluded.state,
    decision     = excluded.decision,
    reason       = excluded.reason,
    snapshot     = excluded.snapshot,
    completed_at = excluded.completed_at`,
		r.ID.String(), r.VendorID, string(r.State), string(r.Decision), r.Reason,
		string(snapshot), r.StartedAt, r.CompletedAt,
	)
	return err
}

// ==================== Vendor history ====================

func (s *Store) RecordAmount(ctx context.Context, vendorID string, amount types.Money, at time.Time) error {
	if vendorID == "" {
		return payable.ErrUnknownVendor
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO payable_vendor_amounts (vendor_id, amount_cents, currency, recorded_at)
VALUES (?, ?, ?, ?)`,
		vendorID, amount.Amount, amount.Currency, at,
	)
	return err
}

func (s *Store) VendorHistory(ctx context.Context, vendorID string, limit int) ([]types.Money, error) {
	q := `
SELECT amount_cents, currency FROM payable_vendor_amounts
WHERE vendor_id = ? ORDER BY recorded_at DESC, id DESC`
	args := []any{vendorID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var amounts []types.Money
	for rows.Next() {
		var m types.Money
		if err := rows.Scan(&m.Amount, &m.Currency); err != nil {
			return nil, err
		}
		amounts = append(amounts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(amounts) == 0 {
		return nil, payable.ErrNoVendorHistory
	}

	// Query is newest-first; callers expect oldest-first.
	for i, j := 0, len(amounts)-1; i < j; i, j = i+1, j-1 {
		amounts[i], amounts[j] = amounts[j], amounts[i]
	}
	return amounts, nil
}

// ==================== Audit trail ====================

func (s *Store) AppendAudit(ctx context.Context, rec *run.AuditRecord) error {
	detail := []byte("{}")
	if rec.Detail != nil {
		var err error
		detail, err = json.Marshal(rec.Detail)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO payable_audit_records (id, run_id, stage, action, outcome, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.RunID.String(), string(rec.Stage), rec.Action, rec.Outcome,
		string(detail), rec.CreatedAt,
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, runID id.RunID) ([]*run.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, stage, action, outcome, detail, created_at
FROM payable_audit_records WHERE run_id = ?
ORDER BY created_at ASC, id ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only query

	var result []*run.AuditRecord
	for rows.Next() {
		var (
			rawID, rawRunID, stage, action, outcome, detail string
			createdAt                                       time.Time
		)
		if err := rows.Scan(&rawID, &rawRunID, &stage, &action, &outcome, &detail, &createdAt); err != nil {
			return nil, err
		}
		rec := &run.AuditRecord{
			Stage:     run.Stage(stage),
			Action:    action,
			Outcome:   outcome,
			CreatedAt: createdAt,
		}
		if err := rec.ID.UnmarshalText([]byte(rawID)); err != nil {
			return nil, err
		}
		if err := rec.RunID.UnmarshalText([]byte(rawRunID)); err != nil {
			return nil, err
		}
		if detail != "" {
			if err := json.Unmarshal([]byte(detail), &rec.Detail); err != nil {
				return nil, err
			}
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ==================== Helpers ====================

func decodeRun(snapshot string) (*run.Run, error) {
	r := new(run.Run)
	if err := json.Unmarshal([]byte(snapshot), r); err != nil {
		return nil, err
	}
	return r, nil
}

// isUniqueViolation checks for a SQLite constraint violation on insert.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	// 19 = SQLITE_CONSTRAINT, 1555/2067 = primary-key/unique extended codes.
	switch serr.Code() {
	case 19, 1555, 2067:
		return true
	}
	return false
}
