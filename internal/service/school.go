package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/repository"
)

// SchoolService manages tenant (school) accounts and membership.
type SchoolService interface {
	// Create creates a new school and makes the creator its admin.
	Create(ctx context.Context, creatorID uuid.UUID, params domain.SchoolCreateParams) (*domain.School, error)

	// GetByID retrieves a school.
	// Returns domain.ENOTFOUND if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.School, error)

	// SuggestForEmail returns the school whose domain matches the email's
	// domain, or nil if none does.
	SuggestForEmail(ctx context.Context, email string) (*domain.School, error)

	// Join adds a user to a school, enforcing the seat limit.
	// Returns domain.ECONFLICT when the school is full or the user already
	// belongs to a school.
	Join(ctx context.Context, schoolID, userID uuid.UUID) error

	// Leave removes a user from their school.
	Leave(ctx context.Context, userID uuid.UUID) error

	// ListMembers returns the school's members. Admin only; the handler
	// enforces authorization.
	ListMembers(ctx context.Context, schoolID uuid.UUID) ([]domain.SchoolMember, error)

	// Update changes a school's name, domain, or seat limit.
	Update(ctx context.Context, schoolID uuid.UUID, params domain.SchoolCreateParams) error
}

type schoolService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewSchoolService creates a new SchoolService instance.
func NewSchoolService(queries *repository.Queries, logger *slog.Logger) SchoolService {
	return &schoolService{
		queries: queries,
		logger:  logger,
	}
}

func (s *schoolService) Create(ctx context.Context, creatorID uuid.UUID, params domain.SchoolCreateParams) (*domain.School, error) {
	const op = "SchoolService.Create"

	params.Name = strings.TrimSpace(params.Name)
	params.Domain = strings.ToLower(strings.TrimSpace(params.Domain))
	if params.Name == "" {
		return nil, domain.Invalid(op, "School name is required")
	}
	if params.SeatLimit < 0 {
		return nil, domain.Invalid(op, "Seat limit cannot be negative")
	}
	if params.Plan == "" {
		params.Plan = domain.PlanEnterprise
	}
	if !params.Plan.Valid() {
		return nil, domain.Invalid(op, "Unknown plan")
	}

	creator, err := s.queries.GetUserByID(ctx, creatorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", creatorID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	if creator.SchoolID.Valid {
		return nil, domain.Conflict(op, "User already belongs to a school")
	}

	repoSchool, err := s.queries.CreateSchool(ctx, repository.CreateSchoolParams{
		Name:      params.Name,
		Domain:    params.Domain,
		Plan:      string(params.Plan),
		SeatLimit: int32(params.SeatLimit),
	})
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "A school with this domain already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create school")
	}

	err = s.queries.UpdateUserSchool(ctx, repository.UpdateUserSchoolParams{
		ID:       creatorID,
		SchoolID: uuid.NullUUID{UUID: repoSchool.ID, Valid: true},
		Role:     string(domain.RoleSchoolAdmin),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to assign creator to school")
	}

	s.logger.Info("school created", "school_id", repoSchool.ID, "name", repoSchool.Name, "creator_id", creatorID)

	school := repoSchoolToDomain(repoSchool)
	return &school, nil
}

func (s *schoolService) GetByID(ctx context.Context, id uuid.UUID) (*domain.School, error) {
	const op = "SchoolService.GetByID"

	repoSchool, err := s.queries.GetSchoolByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "school", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve school")
	}

	school := repoSchoolToDomain(repoSchool)
	return &school, nil
}

func (s *schoolService) SuggestForEmail(ctx context.Context, email string) (*domain.School, error) {
	const op = "SchoolService.SuggestForEmail"

	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return nil, nil
	}
	emailDomain := strings.ToLower(email[at+1:])

	repoSchool, err := s.queries.GetSchoolByDomain(ctx, emailDomain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.Internal(err, op, "Failed to look up school by domain")
	}

	school := repoSchoolToDomain(repoSchool)
	return &school, nil
}

// Join adds a user to a school.
//
// The seat check and the membership write are not one transaction; a race
// can overshoot the limit by one. Seat limits are a billing guardrail, not a
// hard invariant, so this is acceptable.
func (s *schoolService) Join(ctx context.Context, schoolID, userID uuid.UUID) error {
	const op = "SchoolService.Join"

	school, err := s.GetByID(ctx, schoolID)
	if err != nil {
		return err
	}

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", userID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}
	if user.SchoolID.Valid {
		return domain.Conflict(op, "User already belongs to a school")
	}

	current, err := s.queries.CountUsersBySchool(ctx, schoolID)
	if err != nil {
		return domain.Internal(err, op, "Failed to count school members")
	}
	if !school.HasSeatsFor(int(current), 1) {
		return domain.Conflict(op, "School has no seats available")
	}

	err = s.queries.UpdateUserSchool(ctx, repository.UpdateUserSchoolParams{
		ID:       userID,
		SchoolID: uuid.NullUUID{UUID: schoolID, Valid: true},
		Role:     string(domain.RoleTeacher),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to add user to school")
	}

	s.logger.Info("user joined school", "user_id", userID, "school_id", schoolID)
	return nil
}

func (s *schoolService) Leave(ctx context.Context, userID uuid.UUID) error {
	const op = "SchoolService.Leave"

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", userID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}
	if !user.SchoolID.Valid {
		return domain.Invalid(op, "User does not belong to a school")
	}

	err = s.queries.UpdateUserSchool(ctx, repository.UpdateUserSchoolParams{
		ID:       userID,
		SchoolID: uuid.NullUUID{},
		Role:     string(domain.RoleTeacher),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to remove user from school")
	}

	s.logger.Info("user left school", "user_id", userID, "school_id", user.SchoolID.UUID)
	return nil
}

func (s *schoolService) ListMembers(ctx context.Context, schoolID uuid.UUID) ([]domain.SchoolMember, error) {
	const op = "SchoolService.ListMembers"

	users, err := s.queries.ListUsersBySchool(ctx, schoolID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to list school members")
	}

	members := make([]domain.SchoolMember, len(users))
	for i, u := range users {
		members[i] = domain.SchoolMember{
			UserID:   u.ID,
			Email:    u.Email,
			Name:     u.Name,
			Role:     domain.Role(u.Role),
			JoinedAt: u.UpdatedAt,
		}
	}
	return members, nil
}

func (s *schoolService) Update(ctx context.Context, schoolID uuid.UUID, params domain.SchoolCreateParams) error {
	const op = "SchoolService.Update"

	params.Name = strings.TrimSpace(params.Name)
	params.Domain = strings.ToLower(strings.TrimSpace(params.Domain))
	if params.Name == "" {
		return domain.Invalid(op, "School name is required")
	}
	if params.SeatLimit < 0 {
		return domain.Invalid(op, "Seat limit cannot be negative")
	}

	err := s.queries.UpdateSchool(ctx, repository.UpdateSchoolParams{
		ID:        schoolID,
		Name:      params.Name,
		Domain:    params.Domain,
		SeatLimit: int32(params.SeatLimit),
	})
	if err != nil {
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return domain.Conflict(op, "A school with this domain already exists")
		}
		return domain.Internal(err, op, "Failed to update school")
	}

	s.logger.Info("school updated", "school_id", schoolID)
	return nil
}

func repoSchoolToDomain(s repository.School) domain.School {
	return domain.School{
		ID:        s.ID,
		Name:      s.Name,
		Domain:    s.Domain,
		Plan:      domain.Plan(s.Plan),
		SeatLimit: int(s.SeatLimit),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

var _ SchoolService = (*schoolService)(nil)
