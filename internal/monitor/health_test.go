package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qledger/internal/broker"
)

type countingResyncer struct {
	mu    sync.Mutex
	calls int
}

func (r *countingResyncer) SyncToday(ctx context.Context) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return 0, 0, nil
}

func (r *countingResyncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestCheckConnectionInitializes(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	assert.Equal(t, StateUninitialized, m.State())
	ok, msg := m.CheckConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "initialized", msg)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 1, resync.count(), "initialization must backfill once")
}

func TestCheckConnectionStaysUninitializedWhileDown(t *testing.T) {
	session := broker.NewSimSession()
	session.FailNextConnects(2)
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	ok, _ := m.CheckConnection(context.Background())
	assert.False(t, ok)
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, 0, resync.count())
}

func TestCheckConnectionHealthyProbe(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	_, _ = m.CheckConnection(context.Background())
	require.Equal(t, 1, resync.count())

	ok, msg := m.CheckConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "connection ok", msg)
	assert.Equal(t, 1, resync.count(), "a healthy probe must not resync")
}

func TestCheckConnectionAutoRecovers(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	_, _ = m.CheckConnection(context.Background())
	require.Equal(t, StateConnected, m.State())

	// One failing probe: the retry inside the same cycle recovers and
	// triggers exactly one backfill.
	session.FailNextConnects(1)
	ok, msg := m.CheckConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "auto-recovered", msg)
	assert.Equal(t, StateConnected, m.State())
	assert.Equal(t, 2, resync.count())
}

func TestCheckConnectionRecoveryFailure(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	_, _ = m.CheckConnection(context.Background())

	// Probe and the recovery attempt both fail: back to uninitialized,
	// no extra backfill.
	session.FailNextConnects(2)
	ok, msg := m.CheckConnection(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "recovery failed", msg)
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, 1, resync.count())
}

func TestRunInitializesAtStartup(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		// Interval far beyond the test horizon: only the startup check can
		// bring the session up.
		m.Run(ctx, time.Hour)
	}()

	assert.Eventually(t, func() bool { return m.State() == StateConnected },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, resync.count())
	cancel()
	<-done
}

func TestOutageThenRecoveryResyncsOnce(t *testing.T) {
	session := broker.NewSimSession()
	resync := &countingResyncer{}
	m := New(session, "10001", resync, time.Second)

	_, _ = m.CheckConnection(context.Background())
	require.Equal(t, 1, resync.count())

	// Three probe cycles during the outage, then the link comes back. The
	// first cycle burns two connect attempts (probe plus the recovery
	// retry), the following two burn one each.
	session.FailNextConnects(4)
	for i := 0; i < 3; i++ {
		ok, _ := m.CheckConnection(context.Background())
		assert.False(t, ok)
	}
	ok, _ := m.CheckConnection(context.Background())
	assert.True(t, ok)
	assert.Equal(t, 2, resync.count(), "the whole outage must cost one backfill")
}
