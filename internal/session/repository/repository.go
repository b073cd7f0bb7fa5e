package repository

import (
	"context"
	"time"

	"taskdesk/core/internal/session/domain"
)

// Repository defines persistence for sessions. Both the local SQLite replica
// and the remote Postgres store implement it; the registry picks whichever is
// reachable, remote preferred. Lookups return (nil, nil) for missing rows.
type Repository interface {
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// GetByUserAndDevice returns the active session for the pair, or nil.
	GetByUserAndDevice(ctx context.Context, userID, deviceID string) (*domain.Session, error)
	// ListByUser returns all sessions for the user ordered by created_at ascending.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Update overwrites the mutable fields of the row matching s.SessionID.
	Update(ctx context.Context, s *domain.Session) error
	// Deactivate sets is_active false; deactivating an already-inactive or
	// missing session succeeds trivially.
	Deactivate(ctx context.Context, sessionID string) error
	DeactivateAllByUser(ctx context.Context, userID string) error
	// Touch refreshes last_active_at without extending expires_at.
	Touch(ctx context.Context, sessionID string, at time.Time) error
	// DeleteExpiredOrInactive hard-deletes rows that are expired or inactive.
	DeleteExpiredOrInactive(ctx context.Context, now time.Time) error
	Ping(ctx context.Context) error
}
