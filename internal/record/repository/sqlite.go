package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskdesk/core/internal/record/domain"
)

// SQLiteRepository implements LocalRepository against the local SQLite
// replica opened by internal/db.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a record repository backed by the given SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const localColumns = `id, stable_key, title, description, completed, priority, created_at, updated_at, sync_status, synced_at, is_deleted`

func (r *SQLiteRepository) GetByStableKey(ctx context.Context, stableKey string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+localColumns+` FROM records WHERE stable_key = ?`, stableKey)
	rec, err := scanLocalRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]*domain.Record, error) {
	return r.list(ctx,
		`SELECT `+localColumns+` FROM records
		 WHERE sync_status IN (?, ?) ORDER BY updated_at ASC`,
		string(domain.SyncStatusPending), string(domain.SyncStatusError))
}

func (r *SQLiteRepository) ListAll(ctx context.Context) ([]*domain.Record, error) {
	return r.list(ctx, `SELECT `+localColumns+` FROM records ORDER BY created_at ASC`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanLocalRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Create(ctx context.Context, rec *domain.Record) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO records (stable_key, title, description, completed, priority,
		                      created_at, updated_at, sync_status, synced_at, is_deleted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.StableKey, rec.Title, rec.Description, rec.Completed, string(rec.Priority),
		rec.CreatedAt, rec.UpdatedAt, string(rec.SyncStatus), timePtrToNull(rec.SyncedAt), rec.IsDeleted)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET title = ?, description = ?, completed = ?, priority = ?,
		        updated_at = ?, sync_status = ?, synced_at = ?, is_deleted = ?
		 WHERE stable_key = ?`,
		rec.Title, rec.Description, rec.Completed, string(rec.Priority),
		rec.UpdatedAt, string(rec.SyncStatus), timePtrToNull(rec.SyncedAt), rec.IsDeleted,
		rec.StableKey)
	return err
}

func (r *SQLiteRepository) SetSyncStatus(ctx context.Context, stableKey string, status domain.SyncStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ? WHERE stable_key = ?`, string(status), stableKey)
	return err
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, stableKey string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE records SET sync_status = ?, synced_at = ? WHERE stable_key = ?`,
		string(domain.SyncStatusSynced), at, stableKey)
	return err
}

func (r *SQLiteRepository) HardDelete(ctx context.Context, stableKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE stable_key = ?`, stableKey)
	return err
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sync_status, COUNT(*) FROM records GROUP BY sync_status`)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()
	var counts StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, err
		}
		switch domain.SyncStatus(status) {
		case domain.SyncStatusPending:
			counts.Pending = n
		case domain.SyncStatusSynced:
			counts.Synced = n
		case domain.SyncStatusError:
			counts.Errored = n
		}
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocalRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var priority, status string
	var syncedAt sql.NullTime
	err := row.Scan(&rec.ID, &rec.StableKey, &rec.Title, &rec.Description, &rec.Completed,
		&priority, &rec.CreatedAt, &rec.UpdatedAt, &status, &syncedAt, &rec.IsDeleted)
	if err != nil {
		return nil, err
	}
	rec.Priority = domain.Priority(priority)
	rec.SyncStatus = domain.SyncStatus(status)
	if syncedAt.Valid {
		t := syncedAt.Time
		rec.SyncedAt = &t
	}
	return &rec, nil
}

func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
