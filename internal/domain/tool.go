// Package domain contains core business types and interfaces.
//
// This file defines the AI-tool catalog types.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ToolCategory groups catalog tools for filtering.
type ToolCategory string

const (
	CategoryLessonPlanning ToolCategory = "lesson_planning"
	CategoryAssessment     ToolCategory = "assessment"
	CategoryCommunication  ToolCategory = "communication"
	CategoryDifferentiated ToolCategory = "differentiation"
	CategoryAdministrative ToolCategory = "administrative"
)

// Tool is one entry in the AI-tool catalog.
type Tool struct {
	ID          uuid.UUID
	Slug        string // stable identifier used in usage events
	Name        string
	Description string
	Category    ToolCategory
	PromptHint  string // system-prompt fragment fed to the generation provider
	ImageKey    string // storage key for the catalog card image, optional
	Featured    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FilterToolsByCategory returns the tools matching the given category,
// preserving input order. An empty category returns the input unchanged.
// Matching is case-insensitive; a single pass, no allocation when nothing
// matches the filter shape.
func FilterToolsByCategory(tools []Tool, category string) []Tool {
	if category == "" {
		return tools
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		if strings.EqualFold(string(t.Category), category) {
			out = append(out, t)
		}
	}
	return out
}

// ToolCreateParams contains validated parameters for adding a catalog tool.
type ToolCreateParams struct {
	Slug        string
	Name        string
	Description string
	Category    ToolCategory
	PromptHint  string
	Featured    bool
}
