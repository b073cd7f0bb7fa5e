// Package command exposes the sync and session operations to the host
// application as a plain request/response surface. Every response carries
// Success plus a Kind drawn from the error taxonomy, so callers branch on a
// tag instead of unwrapping errors.
package command

import (
	"context"
	"errors"
	"time"

	sessiondomain "taskdesk/core/internal/session/domain"
	"taskdesk/core/internal/session/registry"
	syncengine "taskdesk/core/internal/sync"
)

// Kind tags a response with its outcome.
type Kind string

const (
	KindOK                  Kind = "ok"
	KindNotConnected        Kind = "not_connected"
	KindAlreadyInProgress   Kind = "already_in_progress"
	KindStoreNotInitialized Kind = "store_not_initialized"
	KindCapacityExceeded    Kind = "capacity_exceeded"
	KindSessionInvalid      Kind = "session_invalid"
	KindInternal            Kind = "internal"
)

// Result is the shared head of every response.
type Result struct {
	Success bool
	Kind    Kind
	Detail  string // human-readable context for non-ok kinds
}

func ok() Result { return Result{Success: true, Kind: KindOK} }

func fail(err error) Result {
	kind := KindInternal
	switch {
	case errors.Is(err, syncengine.ErrNotConnected):
		kind = KindNotConnected
	case errors.Is(err, syncengine.ErrAlreadyInProgress):
		kind = KindAlreadyInProgress
	case errors.Is(err, syncengine.ErrStoreNotInitialized),
		errors.Is(err, registry.ErrStoreNotInitialized):
		kind = KindStoreNotInitialized
	case errors.Is(err, registry.ErrSessionInvalid):
		kind = KindSessionInvalid
	}
	var capErr *registry.CapacityError
	if errors.As(err, &capErr) {
		kind = KindCapacityExceeded
	}
	return Result{Kind: kind, Detail: err.Error()}
}

// SessionInfo is the session shape exposed across the command boundary.
type SessionInfo struct {
	SessionID    string
	UserID       string
	DeviceID     string
	DeviceName   string
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
}

func toSessionInfo(s *sessiondomain.Session) SessionInfo {
	return SessionInfo{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		DeviceID:     s.DeviceID,
		DeviceName:   s.DeviceName,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func toSessionInfos(list []*sessiondomain.Session) []SessionInfo {
	out := make([]SessionInfo, len(list))
	for i, s := range list {
		out[i] = toSessionInfo(s)
	}
	return out
}

type PushResponse struct {
	Result
	Synced       int
	Errors       int
	TotalPending int
}

type PullResponse struct {
	Result
	Pulled int
}

type FullSyncResponse struct {
	Result
	Synced       int
	Errors       int
	TotalPending int
	Pulled       int
}

type StatusResponse struct {
	Result
	Pending         int
	Synced          int
	Errors          int
	RemoteConnected bool
}

type CanCreateResponse struct {
	Result
	Allowed        bool
	ActiveSessions int
	MaxSessions    int
	Oldest         []SessionInfo
}

type CreateSessionResponse struct {
	Result
	Session SessionInfo
	Reused  bool
	Evicted int
	// Oldest carries eviction candidates when Kind is capacity_exceeded.
	Oldest []SessionInfo
}

type ValidateResponse struct {
	Result
	Valid bool
}

type EndResponse struct {
	Result
}

type ListActiveResponse struct {
	Result
	Sessions []SessionInfo
}

// Service is the command surface over the sync engine and session registry.
type Service struct {
	engine   *syncengine.Engine
	registry *registry.Registry
}

// NewService returns the command surface.
func NewService(engine *syncengine.Engine, reg *registry.Registry) *Service {
	return &Service{engine: engine, registry: reg}
}

// SyncPush runs a push pass.
func (s *Service) SyncPush(ctx context.Context) PushResponse {
	res, err := s.engine.PushPending(ctx)
	if err != nil {
		return PushResponse{Result: fail(err)}
	}
	return PushResponse{Result: ok(), Synced: res.Synced, Errors: res.Errors, TotalPending: res.TotalPending}
}

// SyncPull runs a pull pass.
func (s *Service) SyncPull(ctx context.Context) PullResponse {
	res, err := s.engine.PullRemote(ctx)
	if err != nil {
		return PullResponse{Result: fail(err)}
	}
	return PullResponse{Result: ok(), Pulled: res.Pulled}
}

// SyncFull runs push then pull; success requires both legs.
func (s *Service) SyncFull(ctx context.Context) FullSyncResponse {
	res, err := s.engine.FullSync(ctx)
	if err != nil {
		return FullSyncResponse{Result: fail(err)}
	}
	return FullSyncResponse{
		Result:       ok(),
		Synced:       res.Push.Synced,
		Errors:       res.Push.Errors,
		TotalPending: res.Push.TotalPending,
		Pulled:       res.Pull.Pulled,
	}
}

// SyncStatus reports local replica counts and remote reachability.
func (s *Service) SyncStatus(ctx context.Context) StatusResponse {
	st, err := s.engine.Status(ctx)
	if err != nil {
		return StatusResponse{Result: fail(err)}
	}
	return StatusResponse{
		Result:          ok(),
		Pending:         st.Pending,
		Synced:          st.Synced,
		Errors:          st.Errors,
		RemoteConnected: st.RemoteConnected,
	}
}

// SessionCanCreate reports whether a new session fits under the cap.
func (s *Service) SessionCanCreate(ctx context.Context, userID string) CanCreateResponse {
	check, err := s.registry.CanCreate(ctx, userID)
	if err != nil {
		return CanCreateResponse{Result: fail(err)}
	}
	return CanCreateResponse{
		Result:         ok(),
		Allowed:        check.Allowed,
		ActiveSessions: check.ActiveSessions,
		MaxSessions:    check.MaxSessions,
		Oldest:         toSessionInfos(check.Oldest),
	}
}

// SessionCreate issues a session for an authenticated identity.
func (s *Service) SessionCreate(ctx context.Context, userID, label string, expiresAt time.Time, forceCreate bool) CreateSessionResponse {
	res, err := s.registry.Create(ctx, userID, label, expiresAt, forceCreate)
	if err != nil {
		resp := CreateSessionResponse{Result: fail(err)}
		var capErr *registry.CapacityError
		if errors.As(err, &capErr) {
			resp.Oldest = toSessionInfos(capErr.Oldest)
		}
		return resp
	}
	return CreateSessionResponse{
		Result:  ok(),
		Session: toSessionInfo(res.Session),
		Reused:  res.Reused,
		Evicted: res.Evicted,
	}
}

// SessionValidate checks a session, refreshing its activity marker on success.
func (s *Service) SessionValidate(ctx context.Context, sessionID string) ValidateResponse {
	if err := s.registry.Validate(ctx, sessionID); err != nil {
		return ValidateResponse{Result: fail(err)}
	}
	return ValidateResponse{Result: ok(), Valid: true}
}

// SessionEnd deactivates one session; idempotent.
func (s *Service) SessionEnd(ctx context.Context, sessionID string) EndResponse {
	if err := s.registry.End(ctx, sessionID); err != nil {
		return EndResponse{Result: fail(err)}
	}
	return EndResponse{Result: ok()}
}

// SessionEndAllForUser deactivates every session for the user.
func (s *Service) SessionEndAllForUser(ctx context.Context, userID string) EndResponse {
	if err := s.registry.EndAllForUser(ctx, userID); err != nil {
		return EndResponse{Result: fail(err)}
	}
	return EndResponse{Result: ok()}
}

// SessionListActive lists the user's live sessions.
func (s *Service) SessionListActive(ctx context.Context, userID string) ListActiveResponse {
	list, err := s.registry.ListActive(ctx, userID)
	if err != nil {
		return ListActiveResponse{Result: fail(err)}
	}
	return ListActiveResponse{Result: ok(), Sessions: toSessionInfos(list)}
}
