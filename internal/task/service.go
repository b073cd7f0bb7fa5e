// Package task implements the local task operations the host application
// drives. Every mutation writes the local replica and leaves the row pending
// so the next push pass propagates it.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"taskdesk/core/internal/record/domain"
	"taskdesk/core/internal/record/repository"
)

// ErrNotFound means no visible task matches the stable key.
var ErrNotFound = errors.New("task not found")

// Update carries the optional fields of an edit; nil means unchanged.
type Update struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *domain.Priority
}

// Service is the local task CRUD surface.
type Service struct {
	local repository.LocalRepository
	now   func() time.Time
}

// NewService returns a task service over the local replica.
func NewService(local repository.LocalRepository) *Service {
	return &Service{
		local: local,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a task with a fresh stable key, marked pending.
func (s *Service) Create(ctx context.Context, title, description string, priority domain.Priority) (*domain.Record, error) {
	now := s.now()
	rec := &domain.Record{
		StableKey:   uuid.New().String(),
		Title:       title,
		Description: description,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
		SyncStatus:  domain.SyncStatusPending,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.local.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Edit applies the given field changes, bumps UpdatedAt, and marks the row
// pending again.
func (s *Service) Edit(ctx context.Context, stableKey string, upd Update) (*domain.Record, error) {
	rec, err := s.get(ctx, stableKey)
	if err != nil {
		return nil, err
	}
	if upd.Title != nil {
		rec.Title = *upd.Title
	}
	if upd.Description != nil {
		rec.Description = *upd.Description
	}
	if upd.Completed != nil {
		rec.Completed = *upd.Completed
	}
	if upd.Priority != nil {
		rec.Priority = *upd.Priority
	}
	rec.UpdatedAt = s.now()
	rec.SyncStatus = domain.SyncStatusPending
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.local.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Complete marks the task completed.
func (s *Service) Complete(ctx context.Context, stableKey string) (*domain.Record, error) {
	done := true
	return s.Edit(ctx, stableKey, Update{Completed: &done})
}

// Delete removes a task. A row that never reached the remote side is
// hard-deleted immediately; otherwise it is soft-deleted and marked pending
// so the deletion intent propagates on the next push.
func (s *Service) Delete(ctx context.Context, stableKey string) error {
	rec, err := s.get(ctx, stableKey)
	if err != nil {
		return err
	}
	if rec.SyncedAt == nil {
		return s.local.HardDelete(ctx, stableKey)
	}
	rec.IsDeleted = true
	rec.UpdatedAt = s.now()
	rec.SyncStatus = domain.SyncStatusPending
	return s.local.Update(ctx, rec)
}

// List returns all visible (not soft-deleted) tasks.
func (s *Service) List(ctx context.Context) ([]*domain.Record, error) {
	all, err := s.local.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	visible := all[:0]
	for _, r := range all {
		if !r.IsDeleted {
			visible = append(visible, r)
		}
	}
	return visible, nil
}

func (s *Service) get(ctx context.Context, stableKey string) (*domain.Record, error) {
	rec, err := s.local.GetByStableKey(ctx, stableKey)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.IsDeleted {
		return nil, ErrNotFound
	}
	return rec, nil
}
