package jobs

import (
	"context"
	"log/slog"

	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/worker"
)

// SessionCleanupJob deletes expired sessions and verification tokens.
// Enqueued periodically by the server.
type SessionCleanupJob struct {
	users  service.UserService
	logger *slog.Logger
}

// NewSessionCleanupJob creates the handler for session cleanup.
func NewSessionCleanupJob(users service.UserService, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{
		users:  users,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (j *SessionCleanupJob) Type() string {
	return worker.JobTypeSessionCleanup
}

// Handle deletes expired sessions and verification tokens.
func (j *SessionCleanupJob) Handle(ctx context.Context, _ []byte) error {
	if err := j.users.DeleteExpiredSessions(ctx); err != nil {
		return err
	}

	if err := j.users.DeleteExpiredVerificationTokens(ctx); err != nil {
		return err
	}

	j.logger.Debug("session cleanup completed")
	return nil
}

var _ worker.JobHandler = (*SessionCleanupJob)(nil)
