package domain

import (
	"errors"
	"time"
	"unicode/utf8"
)

// SyncStatus tracks where a local record sits in the reconciliation lifecycle.
// Remote rows carry no status; the field exists only on the local replica.
type SyncStatus string

const (
	// SyncStatusPending marks a row with unconfirmed local changes.
	SyncStatusPending SyncStatus = "pending"
	// SyncStatusSynced marks a row whose content matches the last confirmed push or pull.
	SyncStatusSynced SyncStatus = "synced"
	// SyncStatusError marks a row whose last push attempt failed; retried like pending.
	SyncStatusError SyncStatus = "error"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Record is one task. ID is the local surrogate key and never crosses replicas;
// StableKey is assigned at creation and is the only key used to correlate a
// local row with its remote counterpart.
type Record struct {
	ID          int64
	StableKey   string
	Title       string
	Description string
	Completed   bool
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Local-replica-only fields. SyncedAt is nil until the first confirmed
	// reconciliation. A row with IsDeleted set exists only to carry the
	// deletion intent to the remote side; it is hard-deleted once confirmed.
	SyncStatus SyncStatus
	SyncedAt   *time.Time
	IsDeleted  bool
}

// NeedsPush reports whether the row should be selected by a push pass.
// Error rows are retried exactly like pending rows.
func (r *Record) NeedsPush() bool {
	return r.SyncStatus == SyncStatusPending || r.SyncStatus == SyncStatusError
}

// Validate validates the record for persistence. Returns an error describing
// the first validation failure. An empty priority defaults to medium.
func (r *Record) Validate() error {
	if r.StableKey == "" {
		return errors.New("stable key is required")
	}
	n := utf8.RuneCountInString(r.Title)
	if n == 0 {
		return errors.New("title is required")
	}
	if n > 255 {
		return errors.New("title must be at most 255 characters")
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	switch r.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
	default:
		return errors.New("priority must be low, medium, or high")
	}
	return nil
}

// Clone returns a copy of the record so callers can mutate it without
// aliasing repository-held state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.SyncedAt != nil {
		t := *r.SyncedAt
		c.SyncedAt = &t
	}
	return &c
}
