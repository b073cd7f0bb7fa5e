package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskdesk/core/internal/session/domain"
)

// SQLiteRepository implements Repository against the local session store,
// used when the remote store is unreachable or not configured.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a session repository backed by the given SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) GetByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = ? AND device_id = ? AND is_active ORDER BY created_at DESC LIMIT 1`,
		userID, deviceID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, device_id, device_name, created_at, last_active_at, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, s.DeviceID, s.DeviceName, s.CreatedAt, s.LastActiveAt, s.ExpiresAt, s.IsActive)
	return err
}

func (r *SQLiteRepository) Update(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET device_name = ?, last_active_at = ?, expires_at = ?, is_active = ?
		 WHERE session_id = ?`,
		s.DeviceName, s.LastActiveAt, s.ExpiresAt, s.IsActive, s.SessionID)
	return err
}

func (r *SQLiteRepository) Deactivate(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE session_id = ?`, sessionID)
	return err
}

func (r *SQLiteRepository) DeactivateAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ?`, userID)
	return err
}

func (r *SQLiteRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE session_id = ?`, at, sessionID)
	return err
}

func (r *SQLiteRepository) DeleteExpiredOrInactive(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE is_active = 0 OR expires_at <= ?`, now)
	return err
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
