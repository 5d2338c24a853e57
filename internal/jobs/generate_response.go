// Package jobs contains background job handlers processed by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/teachai/server/internal/ai"
	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/email"
	"github.com/teachai/server/internal/metrics"
	"github.com/teachai/server/internal/service"
	"github.com/teachai/server/internal/worker"
)

// GenerateResponseJob runs deferred AI generations. The result is exported
// to storage and the user is notified by email.
type GenerateResponseJob struct {
	generator   ai.Generator
	tools       service.ToolService
	users       service.UserService
	media       service.MediaService
	emailSender email.EmailService
	logger      *slog.Logger
}

// NewGenerateResponseJob creates the handler for deferred generations.
// media and emailSender may be nil; export and notification are then skipped.
func NewGenerateResponseJob(
	generator ai.Generator,
	tools service.ToolService,
	users service.UserService,
	media service.MediaService,
	emailSender email.EmailService,
	logger *slog.Logger,
) *GenerateResponseJob {
	return &GenerateResponseJob{
		generator:   generator,
		tools:       tools,
		users:       users,
		media:       media,
		emailSender: emailSender,
		logger:      logger,
	}
}

// Type returns the job type identifier.
func (j *GenerateResponseJob) Type() string {
	return worker.JobTypeGenerateResponse
}

// Handle runs one deferred generation.
func (j *GenerateResponseJob) Handle(ctx context.Context, payload []byte) error {
	var p worker.GenerateResponsePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}

	user, err := j.users.GetByID(ctx, p.UserID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("user %s no longer exists", p.UserID))
		}
		return err
	}

	tool, err := j.tools.GetBySlug(ctx, p.ToolSlug)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			return worker.NewPermanentError(fmt.Errorf("tool %q no longer exists", p.ToolSlug))
		}
		return err
	}

	start := time.Now()
	result, err := j.generator.Generate(ctx, ai.GenerateParams{
		ToolSlug:   tool.Slug,
		PromptHint: tool.PromptHint,
		Input:      p.Prompt,
		UserID:     user.ID.String(),
	})
	metrics.GenerationDuration.WithLabelValues(tool.Slug).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenerationsTotal.WithLabelValues(tool.Slug, "error").Inc()
		if ai.IsRetryable(err) {
			return err
		}
		return worker.NewPermanentError(err)
	}
	metrics.GenerationsTotal.WithLabelValues(tool.Slug, "success").Inc()

	if j.media != nil {
		url, err := j.media.ExportMaterial(ctx, user.ID, result.Text)
		if err != nil {
			// The generation succeeded; don't retry the whole job over a
			// storage hiccup
			j.logger.Error("failed to export generated material",
				"user_id", user.ID,
				"tool", tool.Slug,
				"error", err,
			)
		} else {
			j.logger.Info("material exported", "user_id", user.ID, "tool", tool.Slug, "url", url)
		}
	}

	if j.emailSender != nil {
		if err := j.emailSender.SendMaterialReadyEmail(ctx, user.Email, user.DisplayName(), tool.Name); err != nil {
			j.logger.Error("failed to send material ready email",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	return nil
}

var _ worker.JobHandler = (*GenerateResponseJob)(nil)
