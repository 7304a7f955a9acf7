package repository

import (
	"context"
	"database/sql"

	"github.com/basel-ax/skycutout/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS cutout_outcomes (
		name       TEXT PRIMARY KEY,
		run_id     TEXT NOT NULL,
		status     TEXT NOT NULL,
		kind       TEXT NOT NULL DEFAULT '',
		message    TEXT NOT NULL DEFAULT '',
		path       TEXT NOT NULL DEFAULT '',
		width      INTEGER NOT NULL DEFAULT 0,
		height     INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

// OutcomeRepository defines the interface for the cutout outcome ledger
type OutcomeRepository interface {
	EnsureSchema(ctx context.Context) error
	Save(ctx context.Context, rec domain.OutcomeRecord) error
	Get(ctx context.Context, name string) (*domain.OutcomeRecord, error)
	ListFailed(ctx context.Context) ([]domain.OutcomeRecord, error)
}

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db *sql.DB
}

// NewPostgresOutcomeRepository creates a new PostgreSQL outcome repository
func NewPostgresOutcomeRepository(db *sql.DB) *PostgresOutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// EnsureSchema creates the ledger table if it does not exist
func (r *PostgresOutcomeRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save upserts the latest outcome of an object
func (r *PostgresOutcomeRepository) Save(ctx context.Context, rec domain.OutcomeRecord) error {
	query := `
		INSERT INTO cutout_outcomes (name, run_id, status, kind, message, path, width, height, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE
		SET run_id = EXCLUDED.run_id,
			status = EXCLUDED.status,
			kind = EXCLUDED.kind,
			message = EXCLUDED.message,
			path = EXCLUDED.path,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.Name,
		rec.RunID,
		string(rec.Status),
		string(rec.Kind),
		rec.Message,
		rec.Path,
		rec.Width,
		rec.Height,
		rec.UpdatedAt,
	)
	return err
}

// Get retrieves the latest outcome of an object, or nil when none was recorded
func (r *PostgresOutcomeRepository) Get(ctx context.Context, name string) (*domain.OutcomeRecord, error) {
	query := `
		SELECT name, run_id, status, kind, message, path, width, height, updated_at
		FROM cutout_outcomes
		WHERE name = $1
	`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// ListFailed retrieves every object whose latest outcome is a failure
func (r *PostgresOutcomeRepository) ListFailed(ctx context.Context) ([]domain.OutcomeRecord, error) {
	query := `
		SELECT name, run_id, status, kind, message, path, width, height, updated_at
		FROM cutout_outcomes
		WHERE status = $1
		ORDER BY updated_at ASC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, string(domain.StatusFailed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.OutcomeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*domain.OutcomeRecord, error) {
	var rec domain.OutcomeRecord
	var status, kind string
	err := row.Scan(
		&rec.Name,
		&rec.RunID,
		&status,
		&kind,
		&rec.Message,
		&rec.Path,
		&rec.Width,
		&rec.Height,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	rec.Kind = domain.FailureKind(kind)
	return &rec, nil
}
