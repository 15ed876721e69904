package sqlite

// migration is a single ordered schema change. Applied versions are recorded
// in payable_schema_migrations so re-running Migrate is a no-op.
type migration struct {
	version string
	name    string
	up      string
}

var migrations = []migration{
	{
		version: "20250101000001",
		name:    "create_payable_runs",
		up: `
CREATE TABLE IF NOT EXISTS payable_runs (
    id           TEXT PRIMARY KEY,
    vendor_id    TEXT NOT NULL DEFAULT '',
    state        TEXT NOT NULL DEFAULT '',
    decision     TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL DEFAULT '',
    snapshot     TEXT NOT NULL,
    started_at   TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_payable_runs_vendor ON payable_runs (vendor_id);
CREATE INDEX IF NOT EXISTS idx_payable_runs_state ON payable_runs (state);
CREATE INDEX IF NOT EXISTS idx_payable_runs_decision ON payable_runs (decision);
CREATE INDEX IF NOT EXISTS idx_payable_runs_started ON payable_runs (started_at);
`,
	},
	{
		version: "20250101000002",
		name:    "create_payable_vendor_amounts",
		up: `
CREATE TABLE IF NOT EXISTS payable_vendor_amounts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    vendor_id    TEXT NOT NULL,
    amount_cents INTEGER NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    recorded_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payable_vendor_amounts ON payable_vendor_amounts (vendor_id, recorded_at);
`,
	},
	{
		version: "20250101000003",
		name:    "create_payable_audit_records",
		up: `
CREATE TABLE IF NOT EXISTS payable_audit_records (
    id         TEXT PRIMARY KEY,
    run_id     TEXT NOT NULL,
    stage      TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL DEFAULT '',
    outcome    TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payable_audit_run ON payable_audit_records (run_id, created_at);
`,
	},
}
