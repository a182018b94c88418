// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const defaultListLimit = 100

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSweep stores a sweep run with tenant isolation. The summary is stored
// as a JSON document; the scalar columns exist for listing without decoding.
func (r *SQLRepository) SaveSweep(ctx context.Context, tenantID string, sweep *domain.Sweep) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	summary, err := json.Marshal(sweep.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	query := `
		INSERT INTO sweeps (
			id, tenant_id, digest, total_scanned, found_count,
			total_exposure, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		sweep.ID, tenantID, sweep.Digest,
		sweep.Summary.TotalScanned, sweep.Summary.FoundCount,
		sweep.Summary.TotalExposure,
		string(summary), sweep.CreatedAt,
	)
	return err
}

// GetSweep retrieves a sweep by ID with tenant isolation.
func (r *SQLRepository) GetSweep(ctx context.Context, tenantID string, sweepID string) (*domain.Sweep, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, digest, summary, created_at
		FROM sweeps
		WHERE tenant_id = ? AND id = ?
	`

	var sweep domain.Sweep
	var summary string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, sweepID).Scan(
		&sweep.ID, &sweep.TenantID, &sweep.Digest, &summary, &sweep.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(summary), &sweep.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse sweep summary: %w", err)
	}

	return &sweep, nil
}

// ListSweeps retrieves the most recent sweeps for a tenant.
func (r *SQLRepository) ListSweeps(ctx context.Context, tenantID string, limit int) ([]*domain.Sweep, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, tenant_id, digest, summary, created_at
		FROM sweeps
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sweeps []*domain.Sweep
	for rows.Next() {
		var sweep domain.Sweep
		var summary string

		if err := rows.Scan(
			&sweep.ID, &sweep.TenantID, &sweep.Digest, &summary, &sweep.CreatedAt,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(summary), &sweep.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse summary for sweep %s: %w", sweep.ID, err)
		}
		sweeps = append(sweeps, &sweep)
	}

	return sweeps, rows.Err()
}

// SaveAlert stores a high-risk alert with tenant isolation.
func (r *SQLRepository) SaveAlert(ctx context.Context, tenantID string, alert *domain.Alert) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO alerts (
			id, tenant_id, sweep_id, display_id, amount, score, artifact, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		alert.ID, tenantID, alert.SweepID,
		alert.DisplayID, alert.Amount, alert.Score, alert.Artifact,
		alert.CreatedAt,
	)
	return err
}

// ListAlerts retrieves the most recent alerts for a tenant, highest score
// first within each sweep.
func (r *SQLRepository) ListAlerts(ctx context.Context, tenantID string, limit int) ([]*domain.Alert, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, tenant_id, sweep_id, display_id, amount, score, artifact, created_at
		FROM alerts
		WHERE tenant_id = ?
		ORDER BY created_at DESC, score DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		var alert domain.Alert

		if err := rows.Scan(
			&alert.ID, &alert.TenantID, &alert.SweepID,
			&alert.DisplayID, &alert.Amount, &alert.Score, &alert.Artifact,
			&alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, &alert)
	}

	return alerts, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
