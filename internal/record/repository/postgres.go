package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskdesk/core/internal/record/domain"
)

// PostgresRepository implements RemoteRepository against the remote Postgres
// replica. Remote rows have no surrogate ID and no sync-tracking columns.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a remote record repository using the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const remoteColumns = `stable_key, title, description, completed, priority, created_at, updated_at`

func (r *PostgresRepository) GetByStableKey(ctx context.Context, stableKey string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+remoteColumns+` FROM records WHERE stable_key = $1`, stableKey)
	rec, err := scanRemoteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+remoteColumns+` FROM records ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRemoteRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO records (stable_key, title, description, completed, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.StableKey, rec.Title, rec.Description, rec.Completed, string(rec.Priority),
		rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET title = $1, description = $2, completed = $3, priority = $4, updated_at = $5
		 WHERE stable_key = $6`,
		rec.Title, rec.Description, rec.Completed, string(rec.Priority), rec.UpdatedAt,
		rec.StableKey)
	return err
}

func (r *PostgresRepository) DeleteByStableKey(ctx context.Context, stableKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE stable_key = $1`, stableKey)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanRemoteRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var priority string
	err := row.Scan(&rec.StableKey, &rec.Title, &rec.Description, &rec.Completed,
		&priority, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Priority = domain.Priority(priority)
	return &rec, nil
}
