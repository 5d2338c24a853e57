package usage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/metrics"
)

// State is a monitor's view of the quota at a point in time. Loading is true
// until the first snapshot arrives from the store. Err holds the last
// subscription or tracking failure, cleared by the next success.
type State struct {
	Snapshot *domain.UsageSnapshot
	Loading  bool
	Err      error
}

// Monitor binds the tracker to one user for the duration of a session. It is
// the single integration point view code talks to: it gates on the plan,
// keeps a live snapshot, and funnels tool attempts through the quota.
//
// Only the free plan is metered. For every other plan the monitor is inert:
// Start is a no-op, State always reports a nil snapshot with Loading false,
// and TrackUsage allows everything without touching the store.
type Monitor struct {
	tracker *Tracker
	logger  *slog.Logger
	userID  string
	metered bool

	mu    sync.Mutex
	state State

	stopOnce sync.Once
	unsub    docstore.Unsubscribe
}

// NewMonitor creates a Monitor for the given user. The plan decides whether
// the user is metered at construction; a plan change takes effect on the
// next session.
func NewMonitor(tracker *Tracker, logger *slog.Logger, user *domain.User) *Monitor {
	m := &Monitor{
		tracker: tracker,
		logger:  logger,
		userID:  user.ID.String(),
		metered: user.IsMetered(),
	}
	if m.metered {
		m.state = State{Loading: true}
	}
	return m
}

// Start opens the live snapshot subscription for metered users. Calling it
// for an unmetered user does nothing and returns nil.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.metered {
		return nil
	}

	unsub, err := m.tracker.SubscribeSnapshot(ctx, m.userID, func(snapshot domain.UsageSnapshot) {
		m.mu.Lock()
		m.state = State{Snapshot: &snapshot}
		m.mu.Unlock()
	})
	if err != nil {
		m.mu.Lock()
		m.state = State{Loading: false, Err: err}
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.unsub = unsub
	m.mu.Unlock()
	return nil
}

// Stop tears down the subscription. Safe to call more than once, and safe
// on a monitor that never started.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		unsub := m.unsub
		m.unsub = nil
		m.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

// State returns the current view of the quota.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// TrackUsage attempts to consume one use for the given tool.
//
// Unmetered users are always allowed and nothing is recorded. For metered
// users the quota is checked first: exhaustion returns (false, nil), which
// is an expected outcome rather than a failure. On success the event is
// recorded and the cached snapshot refreshed so callers observe the spend
// immediately even if the store notification lags.
func (m *Monitor) TrackUsage(ctx context.Context, toolID, toolName string) (bool, error) {
	if !m.metered {
		return true, nil
	}

	allowed, err := m.tracker.CanUseTools(ctx, m.userID)
	if err != nil {
		m.setErr(err)
		return false, err
	}
	if !allowed {
		metrics.QuotaExhausted.Inc()
		m.logger.Info("weekly quota exhausted",
			"user_id", m.userID,
			"tool_id", toolID,
		)
		return false, nil
	}

	if err := m.tracker.TrackUsage(ctx, m.userID, toolID, toolName); err != nil {
		m.setErr(err)
		return false, err
	}

	if err := m.Refresh(ctx); err != nil {
		// The event is recorded; a failed refresh only leaves the cached
		// snapshot one change behind until the subscription catches up.
		m.logger.Warn("usage snapshot refresh failed",
			"user_id", m.userID,
			"error", err,
		)
	}
	return true, nil
}

// Refresh re-reads the snapshot from the store, bypassing the subscription.
// No-op for unmetered users.
func (m *Monitor) Refresh(ctx context.Context) error {
	if !m.metered {
		return nil
	}
	snapshot, err := m.tracker.GetSnapshot(ctx, m.userID)
	if err != nil {
		m.setErr(err)
		return err
	}
	m.mu.Lock()
	m.state = State{Snapshot: &snapshot}
	m.mu.Unlock()
	return nil
}

func (m *Monitor) setErr(err error) {
	m.mu.Lock()
	m.state.Err = err
	m.state.Loading = false
	m.mu.Unlock()
}
