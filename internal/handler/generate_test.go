package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teachai/server/internal/ai"
	"github.com/teachai/server/internal/auth"
	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/metrics"
	"github.com/teachai/server/internal/usage"
)

// =============================================================================
// Test doubles
// =============================================================================

type stubToolService struct {
	tool *domain.Tool
}

func (s *stubToolService) List(ctx context.Context) ([]domain.Tool, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubToolService) ListByCategory(ctx context.Context, category string) ([]domain.Tool, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubToolService) GetBySlug(ctx context.Context, slug string) (*domain.Tool, error) {
	if s.tool != nil && s.tool.Slug == slug {
		return s.tool, nil
	}
	return nil, domain.NotFound("", "tool", slug)
}

func (s *stubToolService) Create(ctx context.Context, params domain.ToolCreateParams) (*domain.Tool, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *stubToolService) SetImage(ctx context.Context, toolID uuid.UUID, imageKey string) error {
	return fmt.Errorf("not implemented")
}

func (s *stubToolService) SeedDefaults(ctx context.Context) error {
	return fmt.Errorf("not implemented")
}

type stubGenerator struct {
	err error
}

func (g *stubGenerator) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &ai.GenerateResult{
		Text:  "Lesson plan: photosynthesis",
		Usage: ai.UsageInfo{Model: "test-model", InputTokens: 10, OutputTokens: 20},
	}, nil
}

func (g *stubGenerator) GenerateStream(ctx context.Context, params ai.GenerateParams, onChunk func(text string)) (*ai.GenerateResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	onChunk("Lesson plan: ")
	onChunk("photosynthesis")
	return &ai.GenerateResult{
		Text:  "Lesson plan: photosynthesis",
		Usage: ai.UsageInfo{Model: "test-model", InputTokens: 10, OutputTokens: 20},
	}, nil
}

func newGenerateTestHandler(store docstore.Store, weeklyLimit int) *GenerateHandler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	repo := usage.NewRepository(store, logger)
	tracker := usage.NewTracker(repo, logger, usage.Config{WeeklyLimit: weeklyLimit})
	tools := &stubToolService{tool: &domain.Tool{
		ID:         uuid.New(),
		Slug:       "lesson-plan",
		Name:       "Lesson Plan Generator",
		PromptHint: "Write a lesson plan.",
	}}
	return NewGenerateHandler(&stubGenerator{}, tools, tracker, nil, logger)
}

func newGenerateRequest(user *domain.User) *http.Request {
	body := strings.NewReader(`{"tool_slug": "lesson-plan", "input": "photosynthesis"}`)
	req := httptest.NewRequest("POST", "/api/generate", body)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(auth.SetUser(req.Context(), user))
}

func freeUser() *domain.User {
	return &domain.User{
		ID:    uuid.New(),
		Email: "teacher@example.com",
		Plan:  domain.PlanFree,
	}
}

func subscribedUser() *domain.User {
	return &domain.User{
		ID:                 uuid.New(),
		Email:              "plus@example.com",
		Plan:               domain.PlanPlus,
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestGenerateStream_RecordsOneUsageEvent(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	h := newGenerateTestHandler(store, 5)
	user := freeUser()

	before := testutil.ToFloat64(metrics.UsageEventsTracked)

	rec := httptest.NewRecorder()
	h.Stream(rec, newGenerateRequest(user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	if delta := testutil.ToFloat64(metrics.UsageEventsTracked) - before; delta != 1 {
		t.Errorf("usage events tracked per generation = %v, want 1", delta)
	}

	snapshot, err := h.tracker.GetSnapshot(context.Background(), user.ID.String())
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if snapshot.CurrentUsage != 1 {
		t.Errorf("CurrentUsage = %d, want 1", snapshot.CurrentUsage)
	}
}

func TestGenerateStream_QuotaExhausted(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	h := newGenerateTestHandler(store, 1)
	user := freeUser()

	rec := httptest.NewRecorder()
	h.Stream(rec, newGenerateRequest(user))
	if rec.Code != http.StatusOK {
		t.Fatalf("first generation status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	h.Stream(rec, newGenerateRequest(user))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("second generation status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}

	var resp JSONError
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Error.Code != domain.EPAYMENT {
		t.Errorf("error code = %q, want %q", resp.Error.Code, domain.EPAYMENT)
	}
}

func TestGenerateStream_UnmeteredUserSkipsUsageStore(t *testing.T) {
	store := newSpyStore()
	defer store.Close()
	h := newGenerateTestHandler(store, 5)

	before := testutil.ToFloat64(metrics.UsageEventsTracked)

	rec := httptest.NewRecorder()
	h.Stream(rec, newGenerateRequest(subscribedUser()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := store.gets.Load() + store.sets.Load() + store.subscribes.Load(); got != 0 {
		t.Errorf("usage store operations for unmetered user = %d, want 0", got)
	}
	if delta := testutil.ToFloat64(metrics.UsageEventsTracked) - before; delta != 0 {
		t.Errorf("usage events tracked for unmetered user = %v, want 0", delta)
	}
	if strings.Contains(rec.Body.String(), `"snapshot"`) {
		t.Error("done event should not carry a snapshot for unmetered users")
	}
}

func TestGenerateStream_DoneEventCarriesSnapshot(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	h := newGenerateTestHandler(store, 5)

	rec := httptest.NewRecorder()
	h.Stream(rec, newGenerateRequest(freeUser()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: done") {
		t.Fatalf("stream missing done event, body: %s", body)
	}
	if !strings.Contains(body, `"remainingUses":4`) {
		t.Errorf("done event should carry the post-charge quota, body: %s", body)
	}
}
