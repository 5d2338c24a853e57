package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teachai/server/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeGenerateResponse = "generate_response"
	JobTypeTrialNotice      = "trial_notice"
	JobTypeSessionCleanup   = "session_cleanup"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// GenerateResponsePayload is the payload for asynchronous AI generation jobs.
type GenerateResponsePayload struct {
	UserID   uuid.UUID `json:"user_id"`
	ToolSlug string    `json:"tool_slug"`
	Prompt   string    `json:"prompt"`
}

// TrialNoticePayload is the payload for trial expiry notice emails.
type TrialNoticePayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueGenerateResponse enqueues an asynchronous AI generation for a tool.
// Used when the client asks for a deferred generation instead of streaming.
func EnqueueGenerateResponse(
	ctx context.Context,
	queries *repository.Queries,
	userID uuid.UUID,
	toolSlug string,
	prompt string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := GenerateResponsePayload{
		UserID:   userID,
		ToolSlug: toolSlug,
		Prompt:   prompt,
	}

	return EnqueueJob(ctx, queries, JobTypeGenerateResponse, payload, opts...)
}

// EnqueueTrialNotice schedules a trial expiry notice email for a user.
func EnqueueTrialNotice(
	ctx context.Context,
	queries *repository.Queries,
	userID uuid.UUID,
	sendAt time.Time,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := TrialNoticePayload{UserID: userID}

	opts = append([]EnqueueOption{WithDelay(time.Until(sendAt))}, opts...)
	return EnqueueJob(ctx, queries, JobTypeTrialNotice, payload, opts...)
}
