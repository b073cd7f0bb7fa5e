package domain

import "time"

// Session is one device's active login for one identity. A device holds at
// most one active session per user; a repeat login from the same device
// updates the existing row instead of creating a new one.
type Session struct {
	SessionID    string
	UserID       string
	DeviceID     string
	DeviceName   string // display label, not used for identity
	CreatedAt    time.Time
	LastActiveAt time.Time
	ExpiresAt    time.Time
	IsActive     bool
}

// Live reports whether the session counts against the concurrency cap at now.
func (s *Session) Live(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}

// Clone returns a copy so callers can mutate without aliasing store state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
