// Package sync reconciles the local and remote record replicas: push pending
// local changes up, pull remote changes down, last-write-wins by updated_at.
package sync

import (
	"context"
	"sync/atomic"
	"time"

	"taskdesk/core/internal/record/domain"
	"taskdesk/core/internal/record/repository"
	"taskdesk/core/internal/telemetry"
)

// Connectivity is the reachability view the engine needs.
type Connectivity interface {
	Online() bool
}

// Engine owns the pending/synced/error lifecycle of local records. One Engine
// is constructed at startup and injected wherever sync is triggered; the
// in-flight guard lives here, never in package state.
//
// Push processes rows strictly sequentially to keep remote write ordering
// deterministic and per-row failure isolation simple. There is no
// cancellation once a pass has started beyond what ctx enforces on store calls.
type Engine struct {
	local   repository.LocalRepository
	remote  repository.RemoteRepository // nil when no remote endpoint is configured
	conn    Connectivity
	sink    *telemetry.Sink
	now     func() time.Time
	pushing atomic.Bool
}

// NewEngine returns an Engine over the two replicas. remote may be nil, which
// pins every push/pull to a not-connected result. sink may be nil.
func NewEngine(local repository.LocalRepository, remote repository.RemoteRepository, conn Connectivity, sink *telemetry.Sink) *Engine {
	return &Engine{
		local:  local,
		remote: remote,
		conn:   conn,
		sink:   sink,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) checkStores() error {
	if e.local == nil {
		return ErrStoreNotInitialized
	}
	if e.remote == nil || e.conn == nil || !e.conn.Online() {
		return ErrNotConnected
	}
	return nil
}

// PushPending pushes every local row with status pending or error to the
// remote replica. Single-flight: a concurrent PushPending or FullSync is
// rejected with ErrAlreadyInProgress and no side effects. If the remote store
// is unreachable the whole call short-circuits before touching any row.
func (e *Engine) PushPending(ctx context.Context) (PushResult, error) {
	if !e.pushing.CompareAndSwap(false, true) {
		return PushResult{}, ErrAlreadyInProgress
	}
	defer e.pushing.Store(false)
	return e.push(ctx)
}

func (e *Engine) push(ctx context.Context) (PushResult, error) {
	start := e.now()
	ctx, span := e.sink.Start(ctx, "sync.push")
	defer span.End()

	if err := e.checkStores(); err != nil {
		return PushResult{}, err
	}
	rows, err := e.local.ListPending(ctx)
	if err != nil {
		return PushResult{}, err
	}

	res := PushResult{TotalPending: len(rows)}
	for _, rec := range rows {
		synced, err := e.pushOne(ctx, rec)
		if err != nil {
			// One bad row never aborts the batch: mark it and move on.
			res.Errors++
			_ = e.local.SetSyncStatus(ctx, rec.StableKey, domain.SyncStatusError)
			continue
		}
		if synced {
			res.Synced++
		}
	}
	e.sink.SyncPass(ctx, "push", e.now().Sub(start), res.Synced, res.Errors, 0, nil)
	return res, nil
}

// pushOne reconciles a single pending row. Returns whether the row reached a
// confirmed state (synced or deletion completed); false with nil error means
// the remote copy won the timestamp comparison and the row stays pending.
func (e *Engine) pushOne(ctx context.Context, rec *domain.Record) (bool, error) {
	if rec.IsDeleted {
		return true, e.pushDelete(ctx, rec)
	}
	remote, err := e.remote.GetByStableKey(ctx, rec.StableKey)
	if err != nil {
		return false, err
	}
	now := e.now()
	if remote == nil {
		if err := e.remote.Create(ctx, rec); err != nil {
			return false, err
		}
		return true, e.local.MarkSynced(ctx, rec.StableKey, now)
	}
	if rec.UpdatedAt.After(remote.UpdatedAt) {
		if err := e.remote.Update(ctx, rec); err != nil {
			return false, err
		}
		return true, e.local.MarkSynced(ctx, rec.StableKey, now)
	}
	// Remote copy is newer or tied: ties favor the remote side so a later
	// pull converges the replicas. The row stays pending for that pull.
	return false, nil
}

// pushDelete is the terminal transition of the soft-delete lifecycle: remove
// the remote row (absence counts as success), then hard-delete the local row.
// The row never returns to pending.
func (e *Engine) pushDelete(ctx context.Context, rec *domain.Record) error {
	if err := e.remote.DeleteByStableKey(ctx, rec.StableKey); err != nil {
		return err
	}
	return e.local.HardDelete(ctx, rec.StableKey)
}

// PullRemote brings remote rows into the local replica. Unknown stable keys
// become local rows marked synced; known rows are overwritten only when the
// local row is synced (never clobbering unconfirmed local edits) and the
// remote copy is strictly newer. Not single-flight guarded: its write set is
// disjoint from rows a concurrent push mutates.
func (e *Engine) PullRemote(ctx context.Context) (PullResult, error) {
	start := e.now()
	ctx, span := e.sink.Start(ctx, "sync.pull")
	defer span.End()

	if err := e.checkStores(); err != nil {
		return PullResult{}, err
	}
	remoteRows, err := e.remote.ListAll(ctx)
	if err != nil {
		return PullResult{}, err
	}

	var res PullResult
	for _, rr := range remoteRows {
		local, err := e.local.GetByStableKey(ctx, rr.StableKey)
		if err != nil {
			return res, err
		}
		now := e.now()
		if local == nil {
			rec := rr.Clone()
			rec.SyncStatus = domain.SyncStatusSynced
			rec.SyncedAt = &now
			if err := e.local.Create(ctx, rec); err != nil {
				return res, err
			}
			res.Pulled++
			continue
		}
		if local.SyncStatus != domain.SyncStatusSynced || !rr.UpdatedAt.After(local.UpdatedAt) {
			continue
		}
		upd := local.Clone()
		upd.Title = rr.Title
		upd.Description = rr.Description
		upd.Completed = rr.Completed
		upd.Priority = rr.Priority
		upd.UpdatedAt = rr.UpdatedAt
		upd.SyncStatus = domain.SyncStatusSynced
		upd.SyncedAt = &now
		if err := e.local.Update(ctx, upd); err != nil {
			return res, err
		}
		res.Pulled++
	}
	e.sink.SyncPass(ctx, "pull", e.now().Sub(start), 0, 0, res.Pulled, nil)
	return res, nil
}

// FullSync runs a push then a pull under one single-flight slot. Success
// requires both legs to succeed.
func (e *Engine) FullSync(ctx context.Context) (FullSyncResult, error) {
	if !e.pushing.CompareAndSwap(false, true) {
		return FullSyncResult{}, ErrAlreadyInProgress
	}
	defer e.pushing.Store(false)

	ctx, span := e.sink.Start(ctx, "sync.full")
	defer span.End()

	var res FullSyncResult
	push, err := e.push(ctx)
	if err != nil {
		return res, err
	}
	res.Push = push
	pull, err := e.PullRemote(ctx)
	if err != nil {
		return res, err
	}
	res.Pull = pull
	return res, nil
}

// Status reports local replica counts and remote reachability.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	if e.local == nil {
		return Status{}, ErrStoreNotInitialized
	}
	counts, err := e.local.CountByStatus(ctx)
	if err != nil {
		return Status{}, err
	}
	connected := e.remote != nil && e.conn != nil && e.conn.Online()
	return Status{
		Pending:         counts.Pending,
		Synced:          counts.Synced,
		Errors:          counts.Errored,
		RemoteConnected: connected,
	}, nil
}
