// Package registry enforces the per-identity cap on concurrently active
// sessions across devices, over whichever session store replica is reachable.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskdesk/core/internal/session/domain"
	"taskdesk/core/internal/session/repository"
	"taskdesk/core/internal/telemetry"
)

// Sentinel errors; the command layer maps them to result kinds.
var (
	// ErrStoreNotInitialized means no session store is available at all.
	ErrStoreNotInitialized = errors.New("session store not initialized")
	// ErrSessionInvalid means validation failed (expired or inactive); the
	// caller must clear local session state and re-authenticate. Local
	// teardown has already happened when this error is returned.
	ErrSessionInvalid = errors.New("session invalid")
)

// CapacityError reports that the per-user cap is reached. It carries the
// eviction candidates so the caller can offer the user a choice.
type CapacityError struct {
	Active int
	Max    int
	Oldest []*domain.Session
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("session capacity exceeded: %d/%d active", e.Active, e.Max)
}

// Connectivity is the reachability view the registry needs.
type Connectivity interface {
	Online() bool
}

// DeviceProvider supplies the deterministic identity of the current device.
// Satisfied by *device.Identity.
type DeviceProvider interface {
	ID() string
	Name() string
}

// CapacityCheck is the result of CanCreate.
type CapacityCheck struct {
	Allowed        bool
	ActiveSessions int
	MaxSessions    int
	// Oldest holds the (count - max + 1) oldest live sessions by CreatedAt
	// when not allowed: the minimum eviction set to free one slot.
	Oldest []*domain.Session
}

// CreateResult is the result of Create.
type CreateResult struct {
	Session *domain.Session
	// Reused is true when the current device already held an active session
	// and that row was updated in place; no capacity slot was consumed.
	Reused bool
	// Evicted counts sessions deactivated to make room (forceCreate only).
	Evicted int
}

// Registry issues, validates, and evicts sessions, preferring the remote
// store when reachable and falling back to the local one otherwise.
//
// The capacity check and the subsequent create are not wrapped in a
// cross-replica transaction: two devices racing near the cap boundary can
// transiently exceed it by one. Accepted tradeoff, not silently corrected.
type Registry struct {
	remote repository.Repository // nil when no remote endpoint is configured
	local  repository.Repository
	conn   Connectivity
	dev    DeviceProvider
	sink   *telemetry.Sink

	maxSessions int
	defaultTTL  time.Duration
	now         func() time.Time
}

// NewRegistry returns a Registry. remote may be nil; sink may be nil.
func NewRegistry(remote, local repository.Repository, conn Connectivity, dev DeviceProvider, sink *telemetry.Sink, maxSessions int, defaultTTL time.Duration) *Registry {
	return &Registry{
		remote:      remote,
		local:       local,
		conn:        conn,
		dev:         dev,
		sink:        sink,
		maxSessions: maxSessions,
		defaultTTL:  defaultTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// store returns the session store to use for this call: remote when
// configured and reachable, local otherwise.
func (r *Registry) store() (repository.Repository, error) {
	if r.remote != nil && r.conn != nil && r.conn.Online() {
		return r.remote, nil
	}
	if r.local == nil {
		return nil, ErrStoreNotInitialized
	}
	return r.local, nil
}

// CanCreate counts the user's live sessions after lazy cleanup and reports
// whether a new one fits under the cap. When it does not, Oldest carries the
// minimum eviction set; nothing is evicted here.
func (r *Registry) CanCreate(ctx context.Context, userID string) (*CapacityCheck, error) {
	store, err := r.store()
	if err != nil {
		return nil, err
	}
	return r.canCreate(ctx, store, userID)
}

func (r *Registry) canCreate(ctx context.Context, store repository.Repository, userID string) (*CapacityCheck, error) {
	now := r.now()
	if err := store.DeleteExpiredOrInactive(ctx, now); err != nil {
		return nil, err
	}
	live, err := r.listLive(ctx, store, userID, now)
	if err != nil {
		return nil, err
	}
	check := &CapacityCheck{
		ActiveSessions: len(live),
		MaxSessions:    r.maxSessions,
	}
	if len(live) < r.maxSessions {
		check.Allowed = true
		return check, nil
	}
	check.Oldest = live[:len(live)-r.maxSessions+1]
	return check, nil
}

func (r *Registry) listLive(ctx context.Context, store repository.Repository, userID string, now time.Time) ([]*domain.Session, error) {
	all, err := store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, s := range all {
		if s.Live(now) {
			live = append(live, s)
		}
	}
	return live, nil
}

// Create issues a session for the identity the authentication layer supplied.
// A repeat login from the current device updates the existing row in place
// without consuming a capacity slot. At the cap, forceCreate deactivates
// exactly the minimum number of oldest sessions to free one slot; otherwise
// a *CapacityError carrying the eviction candidates is returned.
func (r *Registry) Create(ctx context.Context, userID, label string, expiresAt time.Time, forceCreate bool) (*CreateResult, error) {
	store, err := r.store()
	if err != nil {
		return nil, err
	}
	now := r.now()
	if expiresAt.IsZero() {
		expiresAt = now.Add(r.defaultTTL)
	}
	deviceID := r.dev.ID()
	if label == "" {
		label = r.dev.Name()
	}

	existing, err := store.GetByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Live(now) {
		upd := existing.Clone()
		upd.DeviceName = label
		upd.LastActiveAt = now
		upd.ExpiresAt = expiresAt
		if err := store.Update(ctx, upd); err != nil {
			return nil, err
		}
		r.sink.SessionEvent(ctx, "reused", userID, deviceID, upd.SessionID)
		return &CreateResult{Session: upd, Reused: true}, nil
	}

	check, err := r.canCreate(ctx, store, userID)
	if err != nil {
		return nil, err
	}
	evicted := 0
	if !check.Allowed {
		if !forceCreate {
			return nil, &CapacityError{Active: check.ActiveSessions, Max: check.MaxSessions, Oldest: check.Oldest}
		}
		for _, old := range check.Oldest {
			if err := store.Deactivate(ctx, old.SessionID); err != nil {
				return nil, err
			}
			r.sink.SessionEvent(ctx, "evicted", userID, old.DeviceID, old.SessionID)
			evicted++
		}
	}

	sess := &domain.Session{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		DeviceID:     deviceID,
		DeviceName:   label,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    expiresAt,
		IsActive:     true,
	}
	if err := store.Create(ctx, sess); err != nil {
		return nil, err
	}
	r.sink.SessionEvent(ctx, "created", userID, deviceID, sess.SessionID)
	return &CreateResult{Session: sess, Evicted: evicted}, nil
}

// Validate checks that the session is active and unexpired, refreshing
// LastActiveAt on success. On failure it deactivates the row on the chosen
// store and, when that store is remote, on the local fallback as well, so no
// stale local state survives a visible failure; then ErrSessionInvalid.
func (r *Registry) Validate(ctx context.Context, sessionID string) error {
	store, err := r.store()
	if err != nil {
		return err
	}
	now := r.now()
	if err := store.DeleteExpiredOrInactive(ctx, now); err != nil {
		return err
	}
	sess, err := store.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Live(now) {
		r.teardown(ctx, store, sessionID)
		r.sink.SessionEvent(ctx, "invalid", "", "", sessionID)
		return ErrSessionInvalid
	}
	return store.Touch(ctx, sessionID, now)
}

func (r *Registry) teardown(ctx context.Context, store repository.Repository, sessionID string) {
	_ = store.Deactivate(ctx, sessionID)
	if store != r.local && r.local != nil {
		_ = r.local.Deactivate(ctx, sessionID)
	}
}

// End deactivates the session. Ending an already-inactive or unknown session
// succeeds trivially.
func (r *Registry) End(ctx context.Context, sessionID string) error {
	store, err := r.store()
	if err != nil {
		return err
	}
	if err := store.Deactivate(ctx, sessionID); err != nil {
		return err
	}
	if store != r.local && r.local != nil {
		_ = r.local.Deactivate(ctx, sessionID)
	}
	r.sink.SessionEvent(ctx, "ended", "", "", sessionID)
	return nil
}

// EndCurrentDevice deactivates the current device's active session for the
// user, if any.
func (r *Registry) EndCurrentDevice(ctx context.Context, userID string) error {
	store, err := r.store()
	if err != nil {
		return err
	}
	sess, err := store.GetByUserAndDevice(ctx, userID, r.dev.ID())
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	return r.End(ctx, sess.SessionID)
}

// EndAllForUser deactivates every session for the user on the chosen store
// and on the local fallback.
func (r *Registry) EndAllForUser(ctx context.Context, userID string) error {
	store, err := r.store()
	if err != nil {
		return err
	}
	if err := store.DeactivateAllByUser(ctx, userID); err != nil {
		return err
	}
	if store != r.local && r.local != nil {
		_ = r.local.DeactivateAllByUser(ctx, userID)
	}
	r.sink.SessionEvent(ctx, "ended_all", userID, "", "")
	return nil
}

// ListActive returns the user's live sessions after lazy cleanup, ordered by
// CreatedAt ascending.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]*domain.Session, error) {
	store, err := r.store()
	if err != nil {
		return nil, err
	}
	now := r.now()
	if err := store.DeleteExpiredOrInactive(ctx, now); err != nil {
		return nil, err
	}
	return r.listLive(ctx, store, userID, now)
}
