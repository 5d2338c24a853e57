package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachai/server/internal/domain"
)

func freeUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "teacher@example.com",
		Plan:  domain.PlanFree,
	}
}

func plusUser() *domain.User {
	return &domain.User{
		ID:                 uuid.New(),
		Email:              "plus@example.com",
		Plan:               domain.PlanPlus,
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
}

func newTestMonitor(t *testing.T, user *domain.User) (*Monitor, *Tracker) {
	t.Helper()
	tracker, _ := newTestTracker(t, fixedClock(testNow))
	return NewMonitor(tracker, testLogger(), user), tracker
}

func TestMonitorUnmeteredIsInert(t *testing.T) {
	ctx := context.Background()
	monitor, tracker := newTestMonitor(t, plusUser())

	require.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	state := monitor.State()
	assert.Nil(t, state.Snapshot)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)

	// Tool use is always allowed and never recorded.
	for i := 0; i < domain.DefaultWeeklyLimit*2; i++ {
		ok, err := monitor.TrackUsage(ctx, "lesson-planner", "Lesson Planner")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	record, err := tracker.repo.LoadCurrent(ctx, monitor.userID)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestMonitorLifecycle(t *testing.T) {
	ctx := context.Background()
	monitor, _ := newTestMonitor(t, freeUser())

	assert.True(t, monitor.State().Loading)

	require.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	// The synchronous first emit clears Loading before Start returns.
	state := monitor.State()
	assert.False(t, state.Loading)
	require.NotNil(t, state.Snapshot)
	assert.Equal(t, domain.DefaultWeeklyLimit, state.Snapshot.RemainingUses)

	monitor.Stop()
	monitor.Stop() // second call is harmless
}

func TestMonitorTrackUsage(t *testing.T) {
	ctx := context.Background()
	monitor, _ := newTestMonitor(t, freeUser())
	require.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	ok, err := monitor.TrackUsage(ctx, "quiz-builder", "Quiz Builder")
	require.NoError(t, err)
	assert.True(t, ok)

	// TrackUsage refreshes the snapshot itself rather than waiting for the
	// subscription to deliver.
	state := monitor.State()
	require.NotNil(t, state.Snapshot)
	assert.Equal(t, 1, state.Snapshot.CurrentUsage)
	assert.Equal(t, domain.DefaultWeeklyLimit-1, state.Snapshot.RemainingUses)
}

// Exhaustion is an expected outcome, not an error, and nothing further is
// recorded once the quota is spent.
func TestMonitorTrackUsageExhausted(t *testing.T) {
	ctx := context.Background()
	monitor, tracker := newTestMonitor(t, freeUser())
	require.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	for i := 0; i < domain.DefaultWeeklyLimit; i++ {
		ok, err := monitor.TrackUsage(ctx, "lesson-planner", "Lesson Planner")
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := monitor.TrackUsage(ctx, "lesson-planner", "Lesson Planner")
	require.NoError(t, err)
	assert.False(t, ok)

	record, err := tracker.repo.LoadCurrent(ctx, monitor.userID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Len(t, record.Usages, domain.DefaultWeeklyLimit)
}

func TestMonitorTrackUsageFailsClosed(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(&failingStore{}, testLogger())
	tracker := NewTracker(repo, testLogger(), Config{Clock: fixedClock(testNow)})
	monitor := NewMonitor(tracker, testLogger(), freeUser())

	ok, err := monitor.TrackUsage(ctx, "lesson-planner", "Lesson Planner")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, monitor.State().Err)
}

func TestMonitorObservesExternalChanges(t *testing.T) {
	ctx := context.Background()
	monitor, tracker := newTestMonitor(t, freeUser())
	require.NoError(t, monitor.Start(ctx))
	defer monitor.Stop()

	// Another process records a use; the subscription picks it up.
	require.NoError(t, tracker.TrackUsage(ctx, monitor.userID, "rubric-maker", "Rubric Maker"))

	require.Eventually(t, func() bool {
		state := monitor.State()
		return state.Snapshot != nil && state.Snapshot.CurrentUsage == 1
	}, 2*time.Second, 10*time.Millisecond)
}
