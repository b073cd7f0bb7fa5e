package sync

import "errors"

// Sentinel errors for sync operations; the command layer maps them to result kinds.
var (
	// ErrNotConnected means the remote store is unreachable or not configured.
	// The operation aborted before mutating any row; retryable.
	ErrNotConnected = errors.New("remote store not connected")
	// ErrAlreadyInProgress is the single-flight rejection. Not a failure: no
	// partial work happened, the caller should back off and retry later.
	ErrAlreadyInProgress = errors.New("sync already in progress")
	// ErrStoreNotInitialized means a store handle was requested before setup
	// completed. Fatal to the calling operation, not to the process.
	ErrStoreNotInitialized = errors.New("store not initialized")
)

// PushResult reports one push pass. Synced counts rows confirmed on the
// remote side (creates, overwrites, and deletions); Errors counts rows whose
// failure was isolated; TotalPending is the selected batch size. Rows that
// lost a timestamp comparison stay pending and appear in none of the first two.
type PushResult struct {
	Synced       int
	Errors       int
	TotalPending int
}

// PullResult reports one pull pass.
type PullResult struct {
	Pulled int
}

// FullSyncResult aggregates both legs of a full sync.
type FullSyncResult struct {
	Push PushResult
	Pull PullResult
}

// Status is the observable sync state of the local replica.
type Status struct {
	Pending         int
	Synced          int
	Errors          int
	RemoteConnected bool
}
