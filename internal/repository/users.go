package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User mirrors the users table.
type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string
	Name               string
	SchoolID           uuid.NullUUID
	Role               string
	Plan               string
	SubscriptionStatus string
	StripeCustomerID   string
	SubscriptionID     string
	TrialEndsAt        sql.NullTime
	EmailVerified      bool
	EmailVerifiedAt    sql.NullTime
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const userColumns = `id, email, password_hash, name, school_id, role, plan,
	subscription_status, stripe_customer_id, subscription_id, trial_ends_at,
	email_verified, email_verified_at, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.SchoolID, &u.Role,
		&u.Plan, &u.SubscriptionStatus, &u.StripeCustomerID, &u.SubscriptionID,
		&u.TrialEndsAt, &u.EmailVerified, &u.EmailVerifiedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	SchoolID     uuid.NullUUID
	Role         string
	Plan         string
	TrialEndsAt  sql.NullTime
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name, school_id, role, plan, trial_ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		arg.Email, arg.PasswordHash, arg.Name, arg.SchoolID, arg.Role, arg.Plan, arg.TrialEndsAt,
	)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, stripeCustomerID)
	return scanUser(row)
}

type UpdateUserProfileParams struct {
	ID   uuid.UUID
	Name string
}

func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET name = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.Name)
	return err
}

type UpdateUserPasswordParams struct {
	ID           uuid.UUID
	PasswordHash string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.PasswordHash)
	return err
}

type UpdateUserEmailVerificationParams struct {
	ID              uuid.UUID
	EmailVerified   bool
	EmailVerifiedAt sql.NullTime
}

func (q *Queries) UpdateUserEmailVerification(ctx context.Context, arg UpdateUserEmailVerificationParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET email_verified = $2, email_verified_at = $3, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.EmailVerified, arg.EmailVerifiedAt)
	return err
}

type UpdateUserStripeCustomerParams struct {
	ID               uuid.UUID
	StripeCustomerID string
}

func (q *Queries) UpdateUserStripeCustomer(ctx context.Context, arg UpdateUserStripeCustomerParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.StripeCustomerID)
	return err
}

type UpdateUserSubscriptionParams struct {
	ID                 uuid.UUID
	SubscriptionStatus string
	Plan               string
	SubscriptionID     string
}

func (q *Queries) UpdateUserSubscription(ctx context.Context, arg UpdateUserSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_status = $2, plan = $3, subscription_id = $4, updated_at = now()
		WHERE id = $1`,
		arg.ID, arg.SubscriptionStatus, arg.Plan, arg.SubscriptionID)
	return err
}

type UpdateUserSchoolParams struct {
	ID       uuid.UUID
	SchoolID uuid.NullUUID
	Role     string
}

func (q *Queries) UpdateUserSchool(ctx context.Context, arg UpdateUserSchoolParams) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE users SET school_id = $2, role = $3, updated_at = now() WHERE id = $1`,
		arg.ID, arg.SchoolID, arg.Role)
	return err
}

func (q *Queries) ListUsersBySchool(ctx context.Context, schoolID uuid.UUID) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE school_id = $1 ORDER BY name, email`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.SchoolID, &u.Role,
			&u.Plan, &u.SubscriptionStatus, &u.StripeCustomerID, &u.SubscriptionID,
			&u.TrialEndsAt, &u.EmailVerified, &u.EmailVerifiedAt,
			&u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) CountUsersBySchool(ctx context.Context, schoolID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT count(*) FROM users WHERE school_id = $1`, schoolID).Scan(&n)
	return n, err
}
