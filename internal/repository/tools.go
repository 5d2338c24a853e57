package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Tool mirrors the tools table.
type Tool struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	Description string
	Category    string
	PromptHint  string
	ImageKey    string
	Featured    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const toolColumns = `id, slug, name, description, category, prompt_hint, image_key,
	featured, created_at, updated_at`

func scanTool(row *sql.Row) (Tool, error) {
	var t Tool
	err := row.Scan(
		&t.ID, &t.Slug, &t.Name, &t.Description, &t.Category, &t.PromptHint,
		&t.ImageKey, &t.Featured, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

type CreateToolParams struct {
	Slug        string
	Name        string
	Description string
	Category    string
	PromptHint  string
	ImageKey    string
	Featured    bool
}

func (q *Queries) CreateTool(ctx context.Context, arg CreateToolParams) (Tool, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO tools (slug, name, description, category, prompt_hint, image_key, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+toolColumns,
		arg.Slug, arg.Name, arg.Description, arg.Category, arg.PromptHint, arg.ImageKey, arg.Featured,
	)
	return scanTool(row)
}

func (q *Queries) GetToolByID(ctx context.Context, id uuid.UUID) (Tool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = $1`, id)
	return scanTool(row)
}

func (q *Queries) GetToolBySlug(ctx context.Context, slug string) (Tool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE slug = $1`, slug)
	return scanTool(row)
}

func (q *Queries) ListTools(ctx context.Context) ([]Tool, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+toolColumns+` FROM tools ORDER BY featured DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTools(rows)
}

func (q *Queries) ListToolsByCategory(ctx context.Context, category string) ([]Tool, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+toolColumns+` FROM tools WHERE category = $1 ORDER BY featured DESC, name`,
		category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTools(rows)
}

func collectTools(rows *sql.Rows) ([]Tool, error) {
	var tools []Tool
	for rows.Next() {
		var t Tool
		if err := rows.Scan(
			&t.ID, &t.Slug, &t.Name, &t.Description, &t.Category, &t.PromptHint,
			&t.ImageKey, &t.Featured, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tools = append(tools, t)
	}
	return tools, rows.Err()
}

type UpdateToolImageParams struct {
	ID       uuid.UUID
	ImageKey string
}

func (q *Queries) UpdateToolImage(ctx context.Context, arg UpdateToolImageParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE tools SET image_key = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.ImageKey)
	return err
}

func (q *Queries) CountTools(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `SELECT count(*) FROM tools`).Scan(&n)
	return n, err
}
