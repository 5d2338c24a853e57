package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/repository"
)

// ToolService manages the AI-tool catalog.
type ToolService interface {
	// List returns all catalog tools, featured first.
	List(ctx context.Context) ([]domain.Tool, error)

	// ListByCategory returns tools in the given category.
	ListByCategory(ctx context.Context, category string) ([]domain.Tool, error)

	// GetBySlug retrieves a single tool by its slug.
	// Returns domain.ENOTFOUND if no tool matches.
	GetBySlug(ctx context.Context, slug string) (*domain.Tool, error)

	// Create adds a new tool to the catalog. Admin only; the handler enforces
	// authorization.
	Create(ctx context.Context, params domain.ToolCreateParams) (*domain.Tool, error)

	// SetImage records the storage key for a tool's catalog card image.
	SetImage(ctx context.Context, toolID uuid.UUID, imageKey string) error

	// SeedDefaults inserts the default catalog if the table is empty.
	SeedDefaults(ctx context.Context) error
}

type toolService struct {
	queries *repository.Queries
	logger  *slog.Logger
	titler  cases.Caser
}

// NewToolService creates a new ToolService instance.
func NewToolService(queries *repository.Queries, logger *slog.Logger) ToolService {
	return &toolService{
		queries: queries,
		logger:  logger,
		titler:  cases.Title(language.AmericanEnglish),
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func (s *toolService) List(ctx context.Context) ([]domain.Tool, error) {
	const op = "ToolService.List"

	repoTools, err := s.queries.ListTools(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list tools")
	}
	return repoToolsToDomain(repoTools), nil
}

func (s *toolService) ListByCategory(ctx context.Context, category string) ([]domain.Tool, error) {
	const op = "ToolService.ListByCategory"

	category = normalizeCategory(category)
	if category == "" {
		return s.List(ctx)
	}

	repoTools, err := s.queries.ListToolsByCategory(ctx, category)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list tools")
	}
	return repoToolsToDomain(repoTools), nil
}

func (s *toolService) GetBySlug(ctx context.Context, slug string) (*domain.Tool, error) {
	const op = "ToolService.GetBySlug"

	repoTool, err := s.queries.GetToolBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "tool", slug)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve tool")
	}

	tool := repoToolToDomain(repoTool)
	return &tool, nil
}

func (s *toolService) Create(ctx context.Context, params domain.ToolCreateParams) (*domain.Tool, error) {
	const op = "ToolService.Create"

	params.Slug = strings.ToLower(strings.TrimSpace(params.Slug))
	params.Name = strings.TrimSpace(params.Name)

	if !slugPattern.MatchString(params.Slug) {
		return nil, domain.Invalid(op, "Slug must be lowercase letters, digits, and hyphens")
	}
	if params.Name == "" {
		// Derive a display name from the slug, e.g. "lesson-planner" -> "Lesson Planner"
		params.Name = s.titler.String(strings.ReplaceAll(params.Slug, "-", " "))
	}
	category := normalizeCategory(string(params.Category))
	if category == "" {
		return nil, domain.Invalid(op, "Unknown tool category")
	}

	repoTool, err := s.queries.CreateTool(ctx, repository.CreateToolParams{
		Slug:        params.Slug,
		Name:        params.Name,
		Description: strings.TrimSpace(params.Description),
		Category:    category,
		PromptHint:  params.PromptHint,
		Featured:    params.Featured,
	})
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "A tool with this slug already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create tool")
	}

	s.logger.Info("tool created", "slug", repoTool.Slug, "category", repoTool.Category)

	tool := repoToolToDomain(repoTool)
	return &tool, nil
}

func (s *toolService) SetImage(ctx context.Context, toolID uuid.UUID, imageKey string) error {
	const op = "ToolService.SetImage"

	err := s.queries.UpdateToolImage(ctx, repository.UpdateToolImageParams{
		ID:       toolID,
		ImageKey: imageKey,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update tool image")
	}
	return nil
}

// defaultTools is the catalog seeded into a fresh deployment.
var defaultTools = []domain.ToolCreateParams{
	{
		Slug:        "lesson-planner",
		Name:        "Lesson Planner",
		Description: "Build a complete lesson plan with objectives, activities, and timing.",
		Category:    domain.CategoryLessonPlanning,
		PromptHint:  "Produce a full lesson plan: learning objectives, materials list, a timed activity sequence, and an exit ticket.",
		Featured:    true,
	},
	{
		Slug:        "quiz-generator",
		Name:        "Quiz Generator",
		Description: "Generate quizzes with an answer key from any topic or passage.",
		Category:    domain.CategoryAssessment,
		PromptHint:  "Produce a quiz with a mix of multiple choice and short answer questions, followed by a clearly separated answer key.",
		Featured:    true,
	},
	{
		Slug:        "rubric-builder",
		Name:        "Rubric Builder",
		Description: "Create grading rubrics with clear performance levels.",
		Category:    domain.CategoryAssessment,
		PromptHint:  "Produce a rubric as a table with criteria rows and 4 performance levels, each cell describing observable work quality.",
	},
	{
		Slug:        "parent-email",
		Name:        "Parent Email Drafter",
		Description: "Draft professional emails to parents and guardians.",
		Category:    domain.CategoryCommunication,
		PromptHint:  "Draft a warm, professional email to a parent or guardian. Keep it brief and end with a concrete next step.",
	},
	{
		Slug:        "text-leveler",
		Name:        "Text Leveler",
		Description: "Rewrite a passage for a different reading level.",
		Category:    domain.CategoryDifferentiated,
		PromptHint:  "Rewrite the provided passage at the requested reading level while preserving the key facts and vocabulary targets.",
	},
	{
		Slug:        "iep-accommodations",
		Name:        "Accommodation Ideas",
		Description: "Suggest classroom accommodations for individual learning needs.",
		Category:    domain.CategoryDifferentiated,
		PromptHint:  "Suggest practical classroom accommodations grouped by instructional, environmental, and assessment changes. Do not produce legal or medical advice.",
	},
	{
		Slug:        "newsletter",
		Name:        "Class Newsletter",
		Description: "Assemble a class newsletter from the week's highlights.",
		Category:    domain.CategoryAdministrative,
		PromptHint:  "Produce a one-page class newsletter with short sections and an upcoming-dates list.",
	},
}

// SeedDefaults inserts the default tool catalog on first boot. A non-empty
// table means an operator already curated the catalog, so it is left alone.
func (s *toolService) SeedDefaults(ctx context.Context) error {
	const op = "ToolService.SeedDefaults"

	count, err := s.queries.CountTools(ctx)
	if err != nil {
		return domain.Internal(err, op, "Failed to count tools")
	}
	if count > 0 {
		return nil
	}

	for _, params := range defaultTools {
		if _, err := s.Create(ctx, params); err != nil {
			return domain.Wrap(err, domain.EINTERNAL, op, "Failed to seed tool catalog")
		}
	}

	s.logger.Info("tool catalog seeded", "count", len(defaultTools))
	return nil
}

// normalizeCategory maps user input like "Lesson Planning" onto the stored
// category value. Returns "" for unknown categories.
func normalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	c = strings.ReplaceAll(c, " ", "_")
	c = strings.ReplaceAll(c, "-", "_")
	switch domain.ToolCategory(c) {
	case domain.CategoryLessonPlanning, domain.CategoryAssessment,
		domain.CategoryCommunication, domain.CategoryDifferentiated,
		domain.CategoryAdministrative:
		return c
	}
	return ""
}

func repoToolToDomain(t repository.Tool) domain.Tool {
	return domain.Tool{
		ID:          t.ID,
		Slug:        t.Slug,
		Name:        t.Name,
		Description: t.Description,
		Category:    domain.ToolCategory(t.Category),
		PromptHint:  t.PromptHint,
		ImageKey:    t.ImageKey,
		Featured:    t.Featured,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func repoToolsToDomain(tools []repository.Tool) []domain.Tool {
	out := make([]domain.Tool, len(tools))
	for i, t := range tools {
		out[i] = repoToolToDomain(t)
	}
	return out
}

var _ ToolService = (*toolService)(nil)
