// Package monitor watches the brokerage session with a periodic bounded
// probe and drives automatic recovery. Every transition back into Connected
// replays the day's fills and orders, which is how gaps accumulated while
// disconnected get repaired.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"qledger/internal/broker"
	"qledger/internal/logger"
)

// State of the session as seen by the monitor.
type State int

const (
	StateUninitialized State = iota
	StateConnected
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "uninitialized"
	}
}

// Resyncer is the bulk backfill invoked on every recovery into Connected.
type Resyncer interface {
	SyncToday(ctx context.Context) (trades, orders int, err error)
}

// Monitor owns the session health state machine.
type Monitor struct {
	session      broker.Session
	account      string
	resync       Resyncer
	probeTimeout time.Duration

	mu    sync.Mutex
	state State
}

func New(session broker.Session, account string, resync Resyncer, probeTimeout time.Duration) *Monitor {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Monitor{
		session:      session,
		account:      account,
		resync:       resync,
		probeTimeout: probeTimeout,
		state:        StateUninitialized,
	}
}

// State returns the current machine state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CheckConnection runs one probe/recovery cycle and reports the outcome.
// Serialized under the monitor mutex so a manual check cannot interleave
// with the periodic loop.
func (m *Monitor) CheckConnection(ctx context.Context) (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateUninitialized:
		if err := m.initialize(ctx); err != nil {
			logger.Warnf("monitor: initialization failed: %v", err)
			return false, fmt.Sprintf("initialization failed: %v", err)
		}
		return true, "initialized"

	default:
		if err := m.probe(ctx); err == nil {
			m.state = StateConnected
			return true, "connection ok"
		}
		// Probe failed: mark degraded and attempt exactly one reinitialize.
		logger.Warnf("monitor: probe failed, session degraded, attempting recovery")
		m.state = StateDegraded
		if err := m.initialize(ctx); err != nil {
			m.state = StateUninitialized
			logger.Errorf("monitor: recovery failed: %v", err)
			return false, "recovery failed"
		}
		logger.Infof("monitor: session auto-recovered")
		return true, "auto-recovered"
	}
}

// initialize connects, subscribes and backfills; only on full success does
// the machine enter Connected. Caller holds the mutex.
func (m *Monitor) initialize(ctx context.Context) error {
	if err := m.probe(ctx); err != nil {
		return err
	}
	if err := m.session.Subscribe(m.account); err != nil {
		return fmt.Errorf("subscribe account: %w", err)
	}
	m.state = StateConnected
	if m.resync != nil {
		trades, orders, err := m.resync.SyncToday(ctx)
		if err != nil {
			// The session is up; a backfill error is logged, not fatal.
			// The next push or manual sync will repair it.
			logger.Errorf("monitor: backfill after reconnect failed: %v", err)
		} else {
			logger.Infof("monitor: backfill complete (%d trade groups, %d orders)", trades, orders)
		}
	}
	return nil
}

// probe is a bounded round-trip; a hung terminal shows up as a deadline
// error here instead of blocking the loop.
func (m *Monitor) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return m.session.Connect(probeCtx)
}

// Run probes on the given interval until ctx is done.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	// First check runs at startup, not one interval in; the session should
	// be initialized as soon as the process is up.
	if ok, msg := m.CheckConnection(ctx); !ok {
		logger.Warnf("monitor: %s", msg)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, msg := m.CheckConnection(ctx)
			if !ok {
				logger.Warnf("monitor: %s", msg)
			}
		}
	}
}
