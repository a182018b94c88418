package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaSweeps = `
CREATE TABLE IF NOT EXISTS sweeps (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    digest TEXT NOT NULL,
    total_scanned INTEGER NOT NULL,
    found_count INTEGER NOT NULL,
    total_exposure REAL NOT NULL,
    summary TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sweeps_tenant ON sweeps(tenant_id);
CREATE INDEX IF NOT EXISTS idx_sweeps_digest ON sweeps(tenant_id, digest);
CREATE INDEX IF NOT EXISTS idx_sweeps_created ON sweeps(tenant_id, created_at);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    sweep_id TEXT NOT NULL,
    display_id TEXT NOT NULL,
    amount TEXT NOT NULL,
    score INTEGER NOT NULL,
    artifact TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_tenant ON alerts(tenant_id);
CREATE INDEX IF NOT EXISTS idx_alerts_sweep ON alerts(tenant_id, sweep_id);
CREATE INDEX IF NOT EXISTS idx_alerts_score ON alerts(tenant_id, score);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSweeps,
		schemaAlerts,
	}
}
