package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teachai/server/internal/docstore"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/metrics"
)

// Clock supplies wall-clock time. Injected so week boundaries are testable.
type Clock func() time.Time

// Config holds tracker policy knobs.
type Config struct {
	// WeeklyLimit is the number of tool uses a metered user gets per week.
	// Zero means domain.DefaultWeeklyLimit.
	WeeklyLimit int

	// Location is the time zone whose midnight defines week boundaries.
	// The server is authoritative: all clients of one deployment reset at
	// the same instant. Nil means UTC.
	Location *time.Location

	// Clock overrides time.Now, for tests.
	Clock Clock
}

// Tracker is the orchestrating service for the weekly usage limit.
//
// It composes the repository (persistence) with the pure snapshot policy in
// the domain package, and serializes same-process TrackUsage calls per user
// so rapid double-submission cannot lose an append. Cross-process writers
// still race on the whole-document replace; last write wins, which the quota
// tolerates because it is a usage-shaping signal rather than a billing
// guarantee.
type Tracker struct {
	repo   *Repository
	logger *slog.Logger
	now    Clock
	loc    *time.Location
	limit  int

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewTracker creates a Tracker. Construct one per process at startup and
// pass it explicitly to consumers.
func NewTracker(repo *Repository, logger *slog.Logger, cfg Config) *Tracker {
	if cfg.WeeklyLimit <= 0 {
		cfg.WeeklyLimit = domain.DefaultWeeklyLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Tracker{
		repo:      repo,
		logger:    logger,
		now:       cfg.Clock,
		loc:       cfg.Location,
		limit:     cfg.WeeklyLimit,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// WeeklyLimit returns the configured per-week limit.
func (t *Tracker) WeeklyLimit() int { return t.limit }

// GetSnapshot loads the user's record and computes the current quota
// snapshot against the clock.
func (t *Tracker) GetSnapshot(ctx context.Context, userID string) (domain.UsageSnapshot, error) {
	record, err := t.repo.LoadCurrent(ctx, userID)
	if err != nil {
		return domain.UsageSnapshot{}, err
	}
	return domain.SnapshotOf(record, t.now(), t.loc, t.limit), nil
}

// SubscribeSnapshot delivers live quota snapshots.
//
// fn is called synchronously with the best-known (full-limit) snapshot
// before the first store round-trip completes, so consumers never render
// with no data; the real state follows as soon as the store answers. Store
// callbacks are pushed through a coalescing single-slot queue drained by one
// goroutine: deliveries never overlap, and a burst of changes collapses to
// the newest state.
func (t *Tracker) SubscribeSnapshot(ctx context.Context, userID string, fn func(domain.UsageSnapshot)) (docstore.Unsubscribe, error) {
	if userID == "" {
		return nil, domain.Unauthorized("usage.subscribe", "Sign in to use tools")
	}

	fn(domain.SnapshotOf(nil, t.now(), t.loc, t.limit))

	queue := make(chan *domain.UsageRecord, 1)
	stop := make(chan struct{})
	var drained sync.WaitGroup

	drained.Add(1)
	go func() {
		defer drained.Done()
		for {
			select {
			case <-stop:
				return
			case record := <-queue:
				fn(domain.SnapshotOf(record, t.now(), t.loc, t.limit))
			}
		}
	}()

	unsub, err := t.repo.Subscribe(ctx, userID, func(record *domain.UsageRecord) {
		for {
			select {
			case <-stop:
				return
			case queue <- record:
				return
			default:
			}
			// Queue full: discard the stale pending state and retry with
			// the newer one.
			select {
			case <-queue:
			default:
			}
		}
	})
	if err != nil {
		close(stop)
		drained.Wait()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unsub()
			close(stop)
			drained.Wait()
		})
	}, nil
}

// CanUseTools reports whether the user has quota remaining. Exhaustion is a
// normal false, never an error. Infrastructure failure returns false with
// the error: callers must fail closed.
func (t *Tracker) CanUseTools(ctx context.Context, userID string) (bool, error) {
	snapshot, err := t.GetSnapshot(ctx, userID)
	if err != nil {
		return false, err
	}
	return snapshot.RemainingUses > 0, nil
}

// TrackUsage records one tool-usage event. This is the subsystem's only
// mutation.
//
// If the stored record belongs to the current week the event is appended and
// the whole record persisted. If the record is absent or stale, a brand-new
// record replaces it containing exactly this one event, with the new week
// start; the event that detects the rollover is the first event of the new
// week. TrackUsage does not check the quota itself; callers gate with
// CanUseTools first.
func (t *Tracker) TrackUsage(ctx context.Context, userID, toolID, toolName string) error {
	const op = "usage.track"

	if userID == "" {
		return domain.Unauthorized(op, "Sign in to use tools")
	}
	if toolID == "" {
		return domain.Invalid(op, "tool id is required")
	}

	lock := t.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := t.now()
	record, err := t.repo.LoadCurrent(ctx, userID)
	if err != nil {
		return err
	}

	event := domain.UsageEvent{
		ToolID:    toolID,
		ToolName:  toolName,
		Timestamp: now,
	}

	rollover := record == nil || record.StaleAt(now, t.loc)
	if rollover {
		record = &domain.UsageRecord{
			UserID:        userID,
			WeekStartDate: domain.WeekStart(now, t.loc),
			Usages:        []domain.UsageEvent{event},
		}
	} else {
		record.Usages = append(record.Usages, event)
	}

	if err := t.repo.Replace(ctx, userID, record); err != nil {
		return err
	}

	metrics.UsageEventsTracked.Inc()
	t.logger.Info("tool usage tracked",
		"user_id", userID,
		"tool_id", toolID,
		"week_start", record.WeekStartDate,
		"count", len(record.Usages),
		"rollover", rollover,
	)
	return nil
}

// userLock returns the mutex serializing TrackUsage for one user within this
// process. Entries are never evicted; one mutex per active user is cheap.
func (t *Tracker) userLock(userID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		t.userLocks[userID] = lock
	}
	return lock
}
