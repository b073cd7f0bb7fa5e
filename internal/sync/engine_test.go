package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"taskdesk/core/internal/record/domain"
	"taskdesk/core/internal/record/repository"
)

type memLocalRepo struct {
	mu     sync.Mutex
	byKey  map[string]*domain.Record
	nextID int64
}

func newMemLocalRepo() *memLocalRepo {
	return &memLocalRepo{byKey: map[string]*domain.Record{}}
}

func (r *memLocalRepo) GetByStableKey(ctx context.Context, key string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[key].Clone(), nil
}

func (r *memLocalRepo) ListPending(ctx context.Context) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for _, rec := range r.byKey {
		if rec.NeedsPush() {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (r *memLocalRepo) ListAll(ctx context.Context) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for _, rec := range r.byKey {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memLocalRepo) Create(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := rec.Clone()
	c.ID = r.nextID
	r.byKey[rec.StableKey] = c
	return nil
}

func (r *memLocalRepo) Update(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byKey[rec.StableKey]; ok {
		c := rec.Clone()
		c.ID = cur.ID
		r.byKey[rec.StableKey] = c
	}
	return nil
}

func (r *memLocalRepo) SetSyncStatus(ctx context.Context, key string, status domain.SyncStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byKey[key]; ok {
		rec.SyncStatus = status
	}
	return nil
}

func (r *memLocalRepo) MarkSynced(ctx context.Context, key string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byKey[key]; ok {
		rec.SyncStatus = domain.SyncStatusSynced
		t := at
		rec.SyncedAt = &t
	}
	return nil
}

func (r *memLocalRepo) HardDelete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, key)
	return nil
}

func (r *memLocalRepo) CountByStatus(ctx context.Context) (repository.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c repository.StatusCounts
	for _, rec := range r.byKey {
		switch rec.SyncStatus {
		case domain.SyncStatusPending:
			c.Pending++
		case domain.SyncStatusSynced:
			c.Synced++
		case domain.SyncStatusError:
			c.Errored++
		}
	}
	return c, nil
}

type memRemoteRepo struct {
	mu       sync.Mutex
	byKey    map[string]*domain.Record
	failKeys map[string]bool
	gate     chan struct{} // when set, GetByStableKey blocks until closed
}

func newMemRemoteRepo() *memRemoteRepo {
	return &memRemoteRepo{byKey: map[string]*domain.Record{}, failKeys: map[string]bool{}}
}

func (r *memRemoteRepo) GetByStableKey(ctx context.Context, key string) (*domain.Record, error) {
	r.mu.Lock()
	gate := r.gate
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[key] {
		return nil, fmt.Errorf("remote failure for %s", key)
	}
	return r.byKey[key].Clone(), nil
}

func (r *memRemoteRepo) ListAll(ctx context.Context) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Record
	for _, rec := range r.byKey {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StableKey < out[j].StableKey })
	return out, nil
}

func (r *memRemoteRepo) Create(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[rec.StableKey] {
		return fmt.Errorf("remote failure for %s", rec.StableKey)
	}
	c := rec.Clone()
	c.ID = 0
	c.SyncStatus = ""
	c.SyncedAt = nil
	c.IsDeleted = false
	r.byKey[rec.StableKey] = c
	return nil
}

func (r *memRemoteRepo) Update(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[rec.StableKey] {
		return fmt.Errorf("remote failure for %s", rec.StableKey)
	}
	if cur, ok := r.byKey[rec.StableKey]; ok {
		cur.Title = rec.Title
		cur.Description = rec.Description
		cur.Completed = rec.Completed
		cur.Priority = rec.Priority
		cur.UpdatedAt = rec.UpdatedAt
	}
	return nil
}

func (r *memRemoteRepo) DeleteByStableKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[key] {
		return fmt.Errorf("remote failure for %s", key)
	}
	delete(r.byKey, key)
	return nil
}

func (r *memRemoteRepo) Ping(ctx context.Context) error { return nil }

type connStub struct{ online bool }

func (c connStub) Online() bool { return c.online }

func newTestEngine(t *testing.T) (*Engine, *memLocalRepo, *memRemoteRepo) {
	t.Helper()
	local := newMemLocalRepo()
	remote := newMemRemoteRepo()
	return NewEngine(local, remote, connStub{online: true}, nil), local, remote
}

func at(min int) time.Time {
	return time.Date(2026, 8, 1, 9, min, 0, 0, time.UTC)
}

func pendingRecord(key, title string, updated time.Time) *domain.Record {
	return &domain.Record{
		StableKey:  key,
		Title:      title,
		Priority:   domain.PriorityMedium,
		CreatedAt:  updated,
		UpdatedAt:  updated,
		SyncStatus: domain.SyncStatusPending,
	}
}

func TestPushPending_EmptyBatchIsNoop(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	res, err := engine.PushPending(context.Background())
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if res.Synced != 0 || res.Errors != 0 || res.TotalPending != 0 {
		t.Errorf("got %+v, want all zero", res)
	}
}

func TestPushPending_CreatesMissingRemote(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "buy milk", at(0)))

	res, err := engine.PushPending(ctx)
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if res.Synced != 1 || res.Errors != 0 || res.TotalPending != 1 {
		t.Errorf("got %+v", res)
	}
	if remote.byKey["u1"] == nil {
		t.Fatal("remote row not created")
	}
	got := local.byKey["u1"]
	if got.SyncStatus != domain.SyncStatusSynced || got.SyncedAt == nil {
		t.Errorf("local row not marked synced: %+v", got)
	}
}

func TestPushPending_LocalNewerWins(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	rec := pendingRecord("u1", "edited locally", at(10))
	_ = local.Create(ctx, rec)
	remote.byKey["u1"] = pendingRecord("u1", "old remote", at(5))

	res, err := engine.PushPending(ctx)
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if res.Synced != 1 {
		t.Errorf("synced = %d, want 1", res.Synced)
	}
	if remote.byKey["u1"].Title != "edited locally" {
		t.Errorf("remote not overwritten: %q", remote.byKey["u1"].Title)
	}
	if local.byKey["u1"].SyncStatus != domain.SyncStatusSynced {
		t.Errorf("local status = %s, want synced", local.byKey["u1"].SyncStatus)
	}
}

func TestPushPending_RemoteNewerOrEqualStaysPending(t *testing.T) {
	for name, remoteTime := range map[string]time.Time{"newer": at(20), "equal": at(10)} {
		t.Run(name, func(t *testing.T) {
			engine, local, remote := newTestEngine(t)
			ctx := context.Background()
			_ = local.Create(ctx, pendingRecord("u1", "local edit", at(10)))
			remote.byKey["u1"] = pendingRecord("u1", "remote edit", remoteTime)

			res, err := engine.PushPending(ctx)
			if err != nil {
				t.Fatalf("PushPending: %v", err)
			}
			if res.Synced != 0 || res.Errors != 0 {
				t.Errorf("got %+v, want no synced/errors", res)
			}
			if local.byKey["u1"].SyncStatus != domain.SyncStatusPending {
				t.Errorf("local status = %s, want pending", local.byKey["u1"].SyncStatus)
			}
			if remote.byKey["u1"].Title != "remote edit" {
				t.Errorf("remote mutated: %q", remote.byKey["u1"].Title)
			}
		})
	}
}

func TestPushPending_DeletionIsTerminal(t *testing.T) {
	for name, remoteExists := range map[string]bool{"remote_present": true, "remote_absent": false} {
		t.Run(name, func(t *testing.T) {
			engine, local, remote := newTestEngine(t)
			ctx := context.Background()
			rec := pendingRecord("u1", "doomed", at(0))
			rec.IsDeleted = true
			_ = local.Create(ctx, rec)
			if remoteExists {
				remote.byKey["u1"] = pendingRecord("u1", "doomed", at(0))
			}

			res, err := engine.PushPending(ctx)
			if err != nil {
				t.Fatalf("PushPending: %v", err)
			}
			if res.Synced != 1 {
				t.Errorf("synced = %d, want 1", res.Synced)
			}
			if _, ok := local.byKey["u1"]; ok {
				t.Error("local row still exists")
			}
			if _, ok := remote.byKey["u1"]; ok {
				t.Error("remote row still exists")
			}
		})
	}
}

func TestPushPending_PartialFailureIsolation(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "first", at(1)))
	_ = local.Create(ctx, pendingRecord("u2", "second", at(2)))
	_ = local.Create(ctx, pendingRecord("u3", "third", at(3)))
	remote.failKeys["u2"] = true

	res, err := engine.PushPending(ctx)
	if err != nil {
		t.Fatalf("PushPending: %v", err)
	}
	if res.Synced != 2 || res.Errors != 1 || res.TotalPending != 3 {
		t.Errorf("got %+v, want synced 2, errors 1, total 3", res)
	}
	if local.byKey["u2"].SyncStatus != domain.SyncStatusError {
		t.Errorf("failed row status = %s, want error", local.byKey["u2"].SyncStatus)
	}
	for _, key := range []string{"u1", "u3"} {
		if local.byKey[key].SyncStatus != domain.SyncStatusSynced {
			t.Errorf("%s status = %s, want synced", key, local.byKey[key].SyncStatus)
		}
	}

	// Error rows are retried exactly like pending rows on the next pass.
	remote.failKeys = map[string]bool{}
	res, err = engine.PushPending(ctx)
	if err != nil {
		t.Fatalf("retry PushPending: %v", err)
	}
	if res.Synced != 1 || res.Errors != 0 || res.TotalPending != 1 {
		t.Errorf("retry got %+v", res)
	}
	if local.byKey["u2"].SyncStatus != domain.SyncStatusSynced {
		t.Errorf("retried row status = %s, want synced", local.byKey["u2"].SyncStatus)
	}
}

func TestPushPending_SingleFlight(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "slow", at(0)))

	gate := make(chan struct{})
	remote.mu.Lock()
	remote.gate = gate
	remote.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := engine.PushPending(ctx); err != nil {
			t.Errorf("background PushPending: %v", err)
		}
	}()

	// Wait until the background push holds the in-flight slot.
	for !engine.pushing.Load() {
		time.Sleep(time.Millisecond)
	}

	if _, err := engine.PushPending(ctx); !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("concurrent push: got %v, want ErrAlreadyInProgress", err)
	}
	if _, err := engine.FullSync(ctx); !errors.Is(err, ErrAlreadyInProgress) {
		t.Errorf("concurrent full sync: got %v, want ErrAlreadyInProgress", err)
	}

	close(gate)
	<-done

	if local.byKey["u1"].SyncStatus != domain.SyncStatusSynced {
		t.Errorf("row status = %s, want synced", local.byKey["u1"].SyncStatus)
	}
}

func TestPushPending_NotConnected(t *testing.T) {
	local := newMemLocalRepo()
	remote := newMemRemoteRepo()
	engine := NewEngine(local, remote, connStub{online: false}, nil)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "stuck", at(0)))

	if _, err := engine.PushPending(ctx); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
	if local.byKey["u1"].SyncStatus != domain.SyncStatusPending {
		t.Error("row mutated by a not-connected push")
	}
}

func TestPushPending_NilRemoteNotConnected(t *testing.T) {
	local := newMemLocalRepo()
	engine := NewEngine(local, nil, connStub{online: true}, nil)

	if _, err := engine.PushPending(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestPullRemote_CreatesLocalRows(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	remote.byKey["u9"] = pendingRecord("u9", "from remote", at(0))

	res, err := engine.PullRemote(ctx)
	if err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if res.Pulled != 1 {
		t.Errorf("pulled = %d, want 1", res.Pulled)
	}
	got := local.byKey["u9"]
	if got == nil {
		t.Fatal("local row not created")
	}
	if got.SyncStatus != domain.SyncStatusSynced || got.SyncedAt == nil {
		t.Errorf("pulled row not marked synced: %+v", got)
	}
}

func TestPullRemote_NeverClobbersPending(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "unconfirmed edit", at(0)))
	remote.byKey["u1"] = pendingRecord("u1", "newer remote", at(30))

	res, err := engine.PullRemote(ctx)
	if err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if res.Pulled != 0 {
		t.Errorf("pulled = %d, want 0", res.Pulled)
	}
	if local.byKey["u1"].Title != "unconfirmed edit" {
		t.Errorf("pending row clobbered: %q", local.byKey["u1"].Title)
	}
}

func TestPullRemote_OverwritesSyncedWhenRemoteNewer(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()
	rec := pendingRecord("u1", "stale local", at(0))
	rec.SyncStatus = domain.SyncStatusSynced
	_ = local.Create(ctx, rec)
	remote.byKey["u1"] = pendingRecord("u1", "fresh remote", at(30))

	res, err := engine.PullRemote(ctx)
	if err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if res.Pulled != 1 {
		t.Errorf("pulled = %d, want 1", res.Pulled)
	}
	got := local.byKey["u1"]
	if got.Title != "fresh remote" || got.SyncedAt == nil {
		t.Errorf("synced row not refreshed: %+v", got)
	}

	// Equal timestamps do not count as newer; nothing to pull.
	res, err = engine.PullRemote(ctx)
	if err != nil {
		t.Fatalf("second PullRemote: %v", err)
	}
	if res.Pulled != 0 {
		t.Errorf("second pull = %d, want 0", res.Pulled)
	}
}

func TestFullSync_Scenario(t *testing.T) {
	engine, local, remote := newTestEngine(t)
	ctx := context.Background()

	// Local A newer than remote A; push must overwrite remote and mark synced.
	_ = local.Create(ctx, pendingRecord("a", "A local", at(60)))
	remote.byKey["a"] = pendingRecord("a", "A remote", at(0))
	// Local B soft-deleted, remote B absent; deletion completes with no remote mutation.
	b := pendingRecord("b", "B", at(10))
	b.IsDeleted = true
	_ = local.Create(ctx, b)
	// Remote-only C; pull creates it locally, marked synced.
	remote.byKey["c"] = pendingRecord("c", "C remote", at(20))

	res, err := engine.FullSync(ctx)
	if err != nil {
		t.Fatalf("FullSync: %v", err)
	}
	if res.Push.Synced != 2 || res.Push.Errors != 0 || res.Push.TotalPending != 2 {
		t.Errorf("push: %+v", res.Push)
	}
	if res.Pull.Pulled != 1 {
		t.Errorf("pulled = %d, want 1", res.Pull.Pulled)
	}
	if remote.byKey["a"].Title != "A local" {
		t.Errorf("remote A = %q", remote.byKey["a"].Title)
	}
	if local.byKey["a"].SyncStatus != domain.SyncStatusSynced {
		t.Error("local A not synced")
	}
	if _, ok := local.byKey["b"]; ok {
		t.Error("local B still exists")
	}
	if _, ok := remote.byKey["b"]; ok {
		t.Error("remote B exists")
	}
	if got := local.byKey["c"]; got == nil || got.SyncStatus != domain.SyncStatusSynced {
		t.Errorf("local C = %+v", got)
	}
}

func TestStatus(t *testing.T) {
	engine, local, _ := newTestEngine(t)
	ctx := context.Background()
	_ = local.Create(ctx, pendingRecord("u1", "pending row", at(1)))
	synced := pendingRecord("u2", "synced row", at(2))
	synced.SyncStatus = domain.SyncStatusSynced
	_ = local.Create(ctx, synced)
	errored := pendingRecord("u3", "errored row", at(3))
	errored.SyncStatus = domain.SyncStatusError
	_ = local.Create(ctx, errored)

	st, err := engine.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	want := Status{Pending: 1, Synced: 1, Errors: 1, RemoteConnected: true}
	if st != want {
		t.Errorf("Status = %+v, want %+v", st, want)
	}
}
