package jobs

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/teachai/server/internal/domain"
)

func newTestTrialNoticeJob() *TrialNoticeJob {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return NewTrialNoticeJob(nil, nil, logger)
}

func TestTrialNoticeJob_ShouldSkip(t *testing.T) {
	future := time.Now().Add(3 * 24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)
	schoolID := uuid.New()

	testCases := []struct {
		name string
		user *domain.User
		skip bool
	}{
		{
			name: "trial still running",
			user: &domain.User{TrialEndsAt: &future},
			skip: false,
		},
		{
			name: "no trial set",
			user: &domain.User{},
			skip: true,
		},
		{
			name: "trial already expired",
			user: &domain.User{TrialEndsAt: &past},
			skip: true,
		},
		{
			name: "joined a school",
			user: &domain.User{TrialEndsAt: &future, SchoolID: &schoolID},
			skip: true,
		},
		{
			name: "active subscription",
			user: &domain.User{
				TrialEndsAt:        &future,
				SubscriptionStatus: domain.SubscriptionStatusActive,
			},
			skip: true,
		},
		{
			name: "trialing subscription",
			user: &domain.User{
				TrialEndsAt:        &future,
				SubscriptionStatus: domain.SubscriptionStatusTrialing,
			},
			skip: true,
		},
		{
			name: "canceled subscription still gets notice",
			user: &domain.User{
				TrialEndsAt:        &future,
				SubscriptionStatus: domain.SubscriptionStatusCanceled,
			},
			skip: false,
		},
	}

	job := newTestTrialNoticeJob()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := job.shouldSkip(tc.user); got != tc.skip {
				t.Errorf("shouldSkip = %v, want %v", got, tc.skip)
			}
		})
	}
}

func TestTrialNoticeJob_Type(t *testing.T) {
	job := newTestTrialNoticeJob()
	if job.Type() != "trial_notice" {
		t.Errorf("Type() = %q, want %q", job.Type(), "trial_notice")
	}
}
