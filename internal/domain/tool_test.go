package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFilterToolsByCategory(t *testing.T) {
	tools := []Tool{
		{ID: uuid.New(), Slug: "lesson-outline", Category: CategoryLessonPlanning},
		{ID: uuid.New(), Slug: "rubric-builder", Category: CategoryAssessment},
		{ID: uuid.New(), Slug: "unit-plan", Category: CategoryLessonPlanning},
		{ID: uuid.New(), Slug: "parent-email", Category: CategoryCommunication},
	}

	tests := []struct {
		name      string
		category  string
		wantSlugs []string
	}{
		{
			name:      "empty category returns everything",
			category:  "",
			wantSlugs: []string{"lesson-outline", "rubric-builder", "unit-plan", "parent-email"},
		},
		{
			name:      "single category preserves order",
			category:  "lesson_planning",
			wantSlugs: []string{"lesson-outline", "unit-plan"},
		},
		{
			name:      "matching is case-insensitive",
			category:  "ASSESSMENT",
			wantSlugs: []string{"rubric-builder"},
		},
		{
			name:      "unknown category matches nothing",
			category:  "grading",
			wantSlugs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterToolsByCategory(tools, tt.category)
			slugs := make([]string, 0, len(got))
			for _, tool := range got {
				slugs = append(slugs, tool.Slug)
			}
			assert.Equal(t, tt.wantSlugs, slugs)
		})
	}
}
