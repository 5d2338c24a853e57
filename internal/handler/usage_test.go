package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/usage"
)

// spyStore counts operations against the underlying store so tests can assert
// that unmetered users never touch it.
type spyStore struct {
	inner      *docstore.MemoryStore
	gets       atomic.Int64
	sets       atomic.Int64
	subscribes atomic.Int64
}

func newSpyStore() *spyStore {
	return &spyStore{inner: docstore.NewMemoryStore()}
}

func (s *spyStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s.gets.Add(1)
	return s.inner.Get(ctx, key)
}

func (s *spyStore) Set(ctx context.Context, key string, doc json.RawMessage) error {
	s.sets.Add(1)
	return s.inner.Set(ctx, key, doc)
}

func (s *spyStore) Subscribe(ctx context.Context, key string, fn docstore.ChangeFunc) (docstore.Unsubscribe, error) {
	s.subscribes.Add(1)
	return s.inner.Subscribe(ctx, key, fn)
}

func (s *spyStore) Close() error {
	return s.inner.Close()
}

var _ docstore.Store = (*spyStore)(nil)

func newUsageTestHandler(store docstore.Store, weeklyLimit int) *UsageHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	repo := usage.NewRepository(store, logger)
	tracker := usage.NewTracker(repo, logger, usage.Config{WeeklyLimit: weeklyLimit})
	return NewUsageHandler(tracker, logger)
}

func TestUsageSnapshot_MeteredUser(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	h := newUsageTestHandler(store, 5)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req = req.WithContext(auth.SetUser(req.Context(), freeUser()))
	rec := httptest.NewRecorder()

	h.Snapshot(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Snapshot *struct {
			WeeklyLimit   int `json:"weeklyLimit"`
			CurrentUsage  int `json:"currentUsage"`
			RemainingUses int `json:"remainingUses"`
		} `json:"snapshot"`
		Metered bool `json:"metered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if !resp.Metered {
		t.Error("metered = false, want true for a free-plan user")
	}
	if resp.Snapshot == nil {
		t.Fatal("snapshot missing for a metered user")
	}
	if resp.Snapshot.RemainingUses != 5 {
		t.Errorf("remainingUses = %d, want 5", resp.Snapshot.RemainingUses)
	}
}

func TestUsageSnapshot_UnmeteredUser(t *testing.T) {
	store := newSpyStore()
	defer store.Close()
	h := newUsageTestHandler(store, 5)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req = req.WithContext(auth.SetUser(req.Context(), subscribedUser()))
	rec := httptest.NewRecorder()

	h.Snapshot(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Snapshot *json.RawMessage `json:"snapshot"`
		Metered  bool             `json:"metered"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Metered {
		t.Error("metered = true, want false for an active subscriber")
	}
	if resp.Snapshot != nil && string(*resp.Snapshot) != "null" {
		t.Errorf("snapshot = %s, want null", string(*resp.Snapshot))
	}
	if got := store.gets.Load() + store.subscribes.Load(); got != 0 {
		t.Errorf("usage store reads for unmetered user = %d, want 0", got)
	}
}

func TestUsageStream_UnmeteredUser(t *testing.T) {
	store := newSpyStore()
	defer store.Close()
	h := newUsageTestHandler(store, 5)

	req := httptest.NewRequest("GET", "/api/usage/stream", nil)
	req = req.WithContext(auth.SetUser(req.Context(), subscribedUser()))
	rec := httptest.NewRecorder()

	h.Stream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: unmetered") {
		t.Errorf("stream should send a single unmetered event, body: %s", body)
	}
	if strings.Contains(body, "event: usage") {
		t.Errorf("stream should not send usage events to unmetered users, body: %s", body)
	}
	if got := store.subscribes.Load(); got != 0 {
		t.Errorf("store subscriptions for unmetered user = %d, want 0", got)
	}
}

func TestUsageStream_MeteredUserGetsInitialSnapshot(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	h := newUsageTestHandler(store, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest("GET", "/api/usage/stream", nil)
	req = req.WithContext(auth.SetUser(ctx, freeUser()))
	rec := httptest.NewRecorder()

	h.Stream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: usage") {
		t.Fatalf("stream missing initial usage event, body: %s", body)
	}
	if !strings.Contains(body, `"remainingUses":5`) {
		t.Errorf("initial snapshot should report the full quota, body: %s", body)
	}
}
