package repository

import (
	"context"
	"time"

	"taskdesk/core/internal/record/domain"
)

// StatusCounts aggregates local rows by sync status for the status surface.
type StatusCounts struct {
	Pending int
	Synced  int
	Errored int
}

// LocalRepository persists the local replica. Lookup methods return (nil, nil)
// for missing rows; errors are reserved for storage failures.
type LocalRepository interface {
	GetByStableKey(ctx context.Context, stableKey string) (*domain.Record, error)
	// ListPending returns rows awaiting a push: status pending or error,
	// soft-deleted rows included, ordered by updated_at ascending.
	ListPending(ctx context.Context) ([]*domain.Record, error)
	// ListAll returns every row, soft-deleted ones included.
	ListAll(ctx context.Context) ([]*domain.Record, error)
	Create(ctx context.Context, r *domain.Record) error
	// Update overwrites all mutable fields of the row matching r.StableKey,
	// sync-tracking fields included.
	Update(ctx context.Context, r *domain.Record) error
	SetSyncStatus(ctx context.Context, stableKey string, status domain.SyncStatus) error
	// MarkSynced sets status synced and records the reconciliation time.
	MarkSynced(ctx context.Context, stableKey string, at time.Time) error
	HardDelete(ctx context.Context, stableKey string) error
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// RemoteRepository persists the remote replica. The remote side has no
// sync-tracking columns and no deleted rows, only absence.
type RemoteRepository interface {
	GetByStableKey(ctx context.Context, stableKey string) (*domain.Record, error)
	ListAll(ctx context.Context) ([]*domain.Record, error)
	Create(ctx context.Context, r *domain.Record) error
	Update(ctx context.Context, r *domain.Record) error
	// DeleteByStableKey removes the row if present; deleting an absent row
	// succeeds, so pushing a deletion is idempotent.
	DeleteByStableKey(ctx context.Context, stableKey string) error
	Ping(ctx context.Context) error
}
