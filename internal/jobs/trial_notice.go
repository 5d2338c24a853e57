package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/email"
	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/worker"
)

// TrialNoticeJob sends the trial expiry reminder email. The job is scheduled
// at registration time; by the time it runs the user may have upgraded,
// joined a school, or already expired, so it re-checks before sending.
type TrialNoticeJob struct {
	users       service.UserService
	emailSender email.EmailService
	logger      *slog.Logger
}

// NewTrialNoticeJob creates the handler for trial expiry reminders.
func NewTrialNoticeJob(users service.UserService, emailSender email.EmailService, logger *slog.Logger) *TrialNoticeJob {
	return &TrialNoticeJob{
		users:       users,
		emailSender: emailSender,
		logger:      logger,
	}
}

// Type returns the job type identifier.
func (j *TrialNoticeJob) Type() string {
	return worker.JobTypeTrialNotice
}

// Handle sends one trial expiry reminder if it is still relevant.
func (j *TrialNoticeJob) Handle(ctx context.Context, payload []byte) error {
	var p worker.TrialNoticePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}

	user, err := j.users.GetByID(ctx, p.UserID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			// Account deleted since the job was scheduled
			return nil
		}
		return err
	}

	if j.shouldSkip(user) {
		j.logger.Debug("trial notice skipped", "user_id", user.ID)
		return nil
	}

	daysLeft := int(time.Until(*user.TrialEndsAt).Hours() / 24)
	if daysLeft < 1 {
		daysLeft = 1
	}

	if j.emailSender == nil {
		return nil
	}

	if err := j.emailSender.SendTrialEndingEmail(ctx, user.Email, user.DisplayName(), daysLeft); err != nil {
		return err
	}

	j.logger.Info("trial notice sent", "user_id", user.ID, "days_left", daysLeft)
	return nil
}

// shouldSkip reports whether the reminder is no longer relevant: the user
// has a live subscription, belongs to a school, or the trial has already
// ended.
func (j *TrialNoticeJob) shouldSkip(user *domain.User) bool {
	if user.TrialEndsAt == nil || user.TrialExpired() {
		return true
	}
	if user.SchoolID != nil {
		return true
	}
	switch user.SubscriptionStatus {
	case domain.SubscriptionStatusActive, domain.SubscriptionStatusTrialing:
		return true
	}
	return false
}

var _ worker.JobHandler = (*TrialNoticeJob)(nil)
