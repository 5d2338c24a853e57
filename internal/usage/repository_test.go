package usage

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/domain"
)

var (
	testNow       = time.Date(2025, time.March, 19, 15, 4, 5, 0, time.UTC)  // Wednesday
	testWeekStart = time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)   // Sunday
	priorWeek     = time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)    // previous Sunday
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepository(t *testing.T) (*Repository, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewRepository(store, testLogger()), store
}

func testRecord(userID string, weekStart time.Time, n int) *domain.UsageRecord {
	record := &domain.UsageRecord{
		UserID:        userID,
		WeekStartDate: weekStart,
	}
	for i := 0; i < n; i++ {
		record.Usages = append(record.Usages, domain.UsageEvent{
			ToolID:    "lesson-planner",
			ToolName:  "Lesson Planner",
			Timestamp: weekStart.Add(time.Duration(i) * time.Hour),
		})
	}
	return record
}

func TestRepositoryLoadCurrentAbsent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	record, err := repo.LoadCurrent(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestRepositoryLoadCurrentRequiresUser(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.LoadCurrent(ctx, "")
	assert.Equal(t, domain.EUNAUTHORIZED, domain.ErrorCode(err))
}

func TestRepositoryReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	want := testRecord("u1", testWeekStart, 3)
	require.NoError(t, repo.Replace(ctx, "u1", want))

	got, err := repo.LoadCurrent(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.WeekStartDate.Equal(testWeekStart))
	assert.Len(t, got.Usages, 3)
	assert.Equal(t, "lesson-planner", got.Usages[0].ToolID)
}

// Reads never mutate stored state: loading a stale record repeatedly keeps
// returning it exactly as written.
func TestRepositoryLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	stale := testRecord("u1", priorWeek, 5)
	require.NoError(t, repo.Replace(ctx, "u1", stale))

	for i := 0; i < 3; i++ {
		got, err := repo.LoadCurrent(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.WeekStartDate.Equal(priorWeek))
		assert.Len(t, got.Usages, 5)
	}
}

func TestRepositoryReplaceRejectsForeignRecord(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	err := repo.Replace(ctx, "u1", testRecord("u2", testWeekStart, 1))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	err = repo.Replace(ctx, "u1", nil)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestRepositoryLoadMalformedDocument(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t)

	require.NoError(t, store.Set(ctx, docKey("u1"), json.RawMessage(`{"userId":"u1"}`)))

	_, err := repo.LoadCurrent(ctx, "u1")
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestRepositorySubscribe(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	var seen []*domain.UsageRecord
	unsub, err := repo.Subscribe(ctx, "u1", func(record *domain.UsageRecord) {
		seen = append(seen, record)
	})
	require.NoError(t, err)
	defer unsub()

	// Fires once immediately with absent state.
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	require.NoError(t, repo.Replace(ctx, "u1", testRecord("u1", testWeekStart, 2)))
	require.Len(t, seen, 2)
	require.NotNil(t, seen[1])
	assert.Len(t, seen[1].Usages, 2)

	unsub()
	require.NoError(t, repo.Replace(ctx, "u1", testRecord("u1", testWeekStart, 3)))
	assert.Len(t, seen, 2)
}

// A document that fails decoding is delivered as absent, not as an error and
// not as corrupt state.
func TestRepositorySubscribeMalformedDocument(t *testing.T) {
	ctx := context.Background()
	repo, store := newTestRepository(t)

	var seen []*domain.UsageRecord
	unsub, err := repo.Subscribe(ctx, "u1", func(record *domain.UsageRecord) {
		seen = append(seen, record)
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, store.Set(ctx, docKey("u1"), json.RawMessage(`{"userId":"someone-else"}`)))
	require.Len(t, seen, 2)
	assert.Nil(t, seen[1])
}
