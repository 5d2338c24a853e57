package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator defines the interface for AI-powered teaching content generation.
type Generator interface {
	// Generate produces a complete response for the given request.
	Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error)

	// GenerateStream produces a response incrementally, invoking onChunk for
	// each piece of text as it arrives. Returns the final result once the
	// stream completes.
	GenerateStream(ctx context.Context, params GenerateParams, onChunk func(text string)) (*GenerateResult, error)
}

// GenerateParams contains parameters for a generation request.
type GenerateParams struct {
	ToolSlug   string // Tool being used, selects the system prompt
	PromptHint string // Tool-specific prompt framing from the catalog
	Input      string // Teacher's input (topic, grade level, requirements)
	UserID     string // User ID for usage attribution in logs
}

// GenerateResult contains the completed generation and usage accounting.
type GenerateResult struct {
	Text  string    // Generated content
	Usage UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring.
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidInput indicates the prompt or input is invalid
	EAIInvalidInput = errors.New("invalid generation input")

	// EAIContentPolicy indicates the input violates content policy
	EAIContentPolicy = errors.New("input violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
