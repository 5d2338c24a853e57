package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teachai/server/internal/ai"
)

// Provider is a mock AI generator for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateResponse *ai.GenerateResult
	GenerateError    error

	// Call tracking for testing
	GenerateCalls       int
	GenerateStreamCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Generate returns a canned lesson-style response
func (p *Provider) Generate(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.GenerateCalls++

	if p.GenerateError != nil {
		return nil, p.GenerateError
	}
	if p.GenerateResponse != nil {
		return p.GenerateResponse, nil
	}

	return &ai.GenerateResult{
		Text: cannedResponse(params),
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  420,
			OutputTokens: 310,
			CostCents:    1,
			Duration:     150 * time.Millisecond,
		},
	}, nil
}

// GenerateStream delivers the canned response in a handful of chunks.
func (p *Provider) GenerateStream(ctx context.Context, params ai.GenerateParams, onChunk func(text string)) (*ai.GenerateResult, error) {
	p.GenerateStreamCalls++

	result, err := p.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	p.GenerateCalls-- // Generate above was internal, count only the stream call

	const chunkSize = 64
	text := result.Text
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		onChunk(text[i:end])
	}

	return result, nil
}

func cannedResponse(params ai.GenerateParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Generated Material\n\n")
	if params.ToolSlug != "" {
		fmt.Fprintf(&b, "Tool: %s\n\n", params.ToolSlug)
	}
	b.WriteString("## Objectives\n")
	b.WriteString("1. Students will understand the core concept described in the request.\n")
	b.WriteString("2. Students will practice applying it with guided examples.\n\n")
	b.WriteString("## Activity Outline\n")
	b.WriteString("- Warm-up discussion (5 minutes)\n")
	b.WriteString("- Direct instruction with worked example (15 minutes)\n")
	b.WriteString("- Small-group practice (20 minutes)\n")
	b.WriteString("- Exit ticket (5 minutes)\n\n")
	fmt.Fprintf(&b, "_Request summary: %s_\n", truncate(params.Input, 120))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.GenerateCalls = 0
	p.GenerateStreamCalls = 0
	p.GenerateResponse = nil
	p.GenerateError = nil
}

var _ ai.Generator = (*Provider)(nil)
