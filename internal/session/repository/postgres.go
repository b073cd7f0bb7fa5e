package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskdesk/core/internal/session/domain"
)

// PostgresRepository implements Repository against the remote session store.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `session_id, user_id, device_id, device_name, created_at, last_active_at, expires_at, is_active`

func (r *PostgresRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) GetByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND device_id = $2 AND is_active ORDER BY created_at DESC LIMIT 1`,
		userID, deviceID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at ASC`, userID)
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

func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, device_id, device_name, created_at, last_active_at, expires_at, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.SessionID, s.UserID, s.DeviceID, s.DeviceName, s.CreatedAt, s.LastActiveAt, s.ExpiresAt, s.IsActive)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET device_name = $1, last_active_at = $2, expires_at = $3, is_active = $4
		 WHERE session_id = $5`,
		s.DeviceName, s.LastActiveAt, s.ExpiresAt, s.IsActive, s.SessionID)
	return err
}

func (r *PostgresRepository) Deactivate(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE session_id = $1`, sessionID)
	return err
}

func (r *PostgresRepository) DeactivateAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE user_id = $1`, userID)
	return err
}

func (r *PostgresRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = $1 WHERE session_id = $2`, at, sessionID)
	return err
}

func (r *PostgresRepository) DeleteExpiredOrInactive(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE NOT is_active OR expires_at <= $1`, now)
	return err
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func scanSession(row interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.SessionID, &s.UserID, &s.DeviceID, &s.DeviceName,
		&s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt, &s.IsActive)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
