package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	payable "github.com/xraph/payable"
	"github.com/xraph/payable/id"
	"github.com/xraph/payable/run"
	payablestore "github.com/xraph/payable/store"
	"github.com/xraph/payable/types"
)

// compile-time interface check
var _ payablestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via pgx.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a store. The pool is owned by the
// store and released by Close.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("payable/postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool. The caller keeps ownership of the pool;
// Close still closes it.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgx pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes. Each migration runs in its
// own transaction and is recorded, so Migrate is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS payable_schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	if err != nil {
		return fmt.Errorf("payable/postgres: migration table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, `SELECT version FROM payable_schema_migrations`)
	if err != nil {
		return fmt.Errorf("payable/postgres: read migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("payable/postgres: read migrations: %w", err)
		}
		applied[v] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("payable/postgres: read migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("payable/postgres: migration %s failed: %w", m.name, err)
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, m.up); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO payable_schema_migrations (version, name) VALUES ($1, $2)`,
		m.version, m.name,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ==================== Run store ====================

func (s *Store) CreateRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO payable_runs (id, vendor_id, state, decision, reason, snapshot, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.VendorID, m.State, m.Decision, m.Reason, m.Snapshot, m.StartedAt, m.CompletedAt,
	)
	if isUniqueViolation(err) {
		return payable.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*run.Run, error) {
	m := new(runModel)
	err := s.pool.QueryRow(ctx, `
SELECT id, vendor_id, state, decision, reason, snapshot, started_at, completed_at
FROM payable_runs WHERE id = $1`,
		runID.String(),
	).Scan(&m.ID, &m.VendorID, &m.State, &m.Decision, &m.Reason, &m.Snapshot, &m.StartedAt, &m.CompletedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, payable.ErrRunNotFound
		}
		return nil, err
	}
	return fromRunModel(m)
}

func (s *Store) ListRuns(ctx context.Context, opts run.ListOpts) ([]*run.Run, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if opts.VendorID != "" {
		add("vendor_id = $%d", opts.VendorID)
	}
	if opts.State != "" {
		add("state = $%d", string(opts.State))
	}
	if opts.Decision != "" {
		add("decision = $%d", string(opts.Decision))
	}
	if !opts.Start.IsZero() {
		add("started_at >= $%d", opts.Start)
	}
	if !opts.End.IsZero() {
		add("started_at <= $%d", opts.End)
	}

	q := `SELECT snapshot FROM payable_runs`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY started_at ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*run.Run
	for rows.Next() {
		m := new(runModel)
		if err := rows.Scan(&m.Snapshot); err != nil {
			return nil, err
		}
		r, err := fromRunModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) FinishRun(ctx context.Context, r *run.Run) error {
	m, err := toRunModel(r)
	if err != nil {
		return err
	}
	// Upsert: archiving may land before or after CreateRun depending on
	// worker timing.
	_, err = s.pool.Exec(ctx, `
INSERT INTO payable_runs (id, vendor_id, state, decision, reason, snapshot, started_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    state        = EXCLUDED.state,
    decision     = EXCLUDED.decision,
    reason       = EXCLUDED.reason,
    snapshot     = EXCLUDED.snapshot,
    completed_at = EXCLUDED.completed_at`,
		m.ID, m.VendorID, m.State, m.Decision, m.Reason, m.Snapshot, m.StartedAt, m.CompletedAt,
	)
	return err
}

// ==================== Vendor history ====================

func (s *Store) RecordAmount(ctx context.Context, vendorID string, amount types.Money, at time.Time) error {
	if vendorID == "" {
		return payable.ErrUnknownVendor
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO payable_vendor_amounts (vendor_id, amount_cents, currency, recorded_at)
VALUES ($1, $2, $3, $4)`,
		vendorID, amount.Amount, amount.Currency, at,
	)
	return err
}

func (s *Store) VendorHistory(ctx context.Context, vendorID string, limit int) ([]types.Money, error) {
	q := `
SELECT amount_cents, currency FROM payable_vendor_amounts
WHERE vendor_id = $1 ORDER BY recorded_at DESC, id DESC`
	args := []any{vendorID}
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT $2"
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	m, err := toAuditModel(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO payable_audit_records (id, run_id, stage, action, outcome, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.RunID, m.Stage, m.Action, m.Outcome, m.Detail, m.CreatedAt,
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, runID id.RunID) ([]*run.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, run_id, stage, action, outcome, detail, created_at
FROM payable_audit_records WHERE run_id = $1
ORDER BY created_at ASC, id ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*run.AuditRecord
	for rows.Next() {
		m := new(auditModel)
		if err := rows.Scan(&m.ID, &m.RunID, &m.Stage, &m.Action, &m.Outcome, &m.Detail, &m.CreatedAt); err != nil {
			return nil, err
		}
		rec, err := fromAuditModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ==================== Helpers ====================

// isNoRows checks for the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation checks for a unique-constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
