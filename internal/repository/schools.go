package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// School mirrors the schools table.
type School struct {
	ID        uuid.UUID
	Name      string
	Domain    string
	Plan      string
	SeatLimit int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

const schoolColumns = `id, name, domain, plan, seat_limit, created_at, updated_at`

func scanSchool(row *sql.Row) (School, error) {
	var s School
	err := row.Scan(&s.ID, &s.Name, &s.Domain, &s.Plan, &s.SeatLimit, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

type CreateSchoolParams struct {
	Name      string
	Domain    string
	Plan      string
	SeatLimit int32
}

func (q *Queries) CreateSchool(ctx context.Context, arg CreateSchoolParams) (School, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO schools (name, domain, plan, seat_limit)
		VALUES ($1, $2, $3, $4)
		RETURNING `+schoolColumns,
		arg.Name, arg.Domain, arg.Plan, arg.SeatLimit,
	)
	return scanSchool(row)
}

func (q *Queries) GetSchoolByID(ctx context.Context, id uuid.UUID) (School, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	return scanSchool(row)
}

func (q *Queries) GetSchoolByDomain(ctx context.Context, domain string) (School, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+schoolColumns+` FROM schools WHERE domain = $1`, domain)
	return scanSchool(row)
}

type UpdateSchoolParams struct {
	ID        uuid.UUID
	Name      string
	Domain    string
	SeatLimit int32
}

func (q *Queries) UpdateSchool(ctx context.Context, arg UpdateSchoolParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE schools SET name = $2, domain = $3, seat_limit = $4, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.Name, arg.Domain, arg.SeatLimit)
	return err
}
