// Package connectivity tracks whether the remote store is reachable and
// signals offline-to-online transitions so the host can trigger a sync.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Prober checks reachability of the remote store.
type Prober interface {
	Ping(ctx context.Context) error
}

// Monitor probes the remote store with a fixed timeout and exposes the
// current online state plus an edge-triggered reconnect signal. The probe is
// the only bounded wait in the system; sync operations themselves rely on the
// store transport's own timeouts.
type Monitor struct {
	prober   Prober // nil when no remote endpoint is configured
	timeout  time.Duration
	interval time.Duration

	online atomic.Bool

	mu          sync.Mutex
	onReconnect []func()
}

// New returns a Monitor. A nil prober pins the monitor offline, which is how
// a missing remote endpoint degrades the system to local-only operation.
func New(prober Prober, timeout, interval time.Duration) *Monitor {
	return &Monitor{prober: prober, timeout: timeout, interval: interval}
}

// Online reports the result of the most recent probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnReconnect registers fn to run whenever a probe observes an
// offline-to-online transition. Callbacks run on the probing goroutine.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnect = append(m.onReconnect, fn)
}

// Probe checks reachability once and updates the online state, firing
// reconnect callbacks on an offline-to-online edge. Returns the new state.
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.prober == nil {
		m.online.Store(false)
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	ok := m.prober.Ping(probeCtx) == nil

	was := m.online.Swap(ok)
	if ok && !was {
		m.mu.Lock()
		fns := make([]func(), len(m.onReconnect))
		copy(fns, m.onReconnect)
		m.mu.Unlock()
		for _, fn := range fns {
			fn()
		}
	}
	return ok
}

// Run probes immediately and then on every interval tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Probe(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
