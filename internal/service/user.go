// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/bcrypt"

	"github.com/teachai/server/internal/domain"
	"github.com/teachai/server/internal/repository"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 provides good security (~250ms on modern hardware) while being
	// fast enough for login flows.
	BcryptCost = 12

	// SessionTokenBytes is the number of random bytes for session tokens.
	// 32 bytes = 256 bits of entropy. The token is hex-encoded to 64
	// characters for storage/transmission.
	SessionTokenBytes = 32

	// SessionDuration is how long a session remains valid.
	SessionDuration = 7 * 24 * time.Hour

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength prevents DoS via bcrypt on very long passwords.
	// bcrypt has a 72-byte limit anyway.
	MaxPasswordLength = 72

	// VerificationTokenDuration is how long email verification links stay valid.
	VerificationTokenDuration = 24 * time.Hour

	// TrialDuration is the paid-feature trial granted at registration.
	TrialDuration = 14 * 24 * time.Hour

	// sessionCacheSize bounds the in-process session cache.
	sessionCacheSize = 4096

	// sessionCacheTTL bounds how stale a cached session lookup can be.
	// Password changes and logouts purge eagerly; the TTL covers
	// invalidations from other processes.
	sessionCacheTTL = time.Minute
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a new user account.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and creates a new session.
	// Returns the user and raw session token on success.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token.
	// This is idempotent - calling with an invalid token is not an error.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken retrieves a user by their session token.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// UpdateProfile updates a user's profile information.
	UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error

	// ChangePassword changes a user's password after validating the current
	// one. All existing sessions are invalidated.
	ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error

	// DeleteExpiredSessions removes all expired sessions. Called periodically
	// as a cleanup task.
	DeleteExpiredSessions(ctx context.Context) error

	// CreateEmailVerificationToken creates a new email verification token.
	// Returns the raw token (to send in email) and expiration time.
	CreateEmailVerificationToken(ctx context.Context, userID uuid.UUID) (*domain.EmailVerificationResult, error)

	// VerifyEmail validates a verification token and marks the user verified.
	// Returns domain.ENOTFOUND for invalid or expired tokens and
	// domain.ECONFLICT if already verified.
	VerifyEmail(ctx context.Context, token string) error

	// ResendVerificationEmail creates a new verification token for an
	// unverified user.
	ResendVerificationEmail(ctx context.Context, email string) (*domain.EmailVerificationResult, error)

	// DeleteExpiredVerificationTokens removes expired verification tokens.
	DeleteExpiredVerificationTokens(ctx context.Context) error

	// UpdateStripeCustomer saves the Stripe customer ID for a user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error

	// UpdateSubscription updates a user's subscription status, plan, and ID.
	UpdateSubscription(ctx context.Context, userID uuid.UUID, status, plan, subscriptionID string) error

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)
}

type userService struct {
	queries *repository.Queries
	logger  *slog.Logger

	// adminEmails get the site admin role at registration
	adminEmails map[string]bool

	// sessions caches token hash -> user for the hot auth path, so most
	// requests skip two database round trips.
	sessions *expirable.LRU[string, *domain.User]
}

// UserServiceOption customizes a UserService.
type UserServiceOption func(*userService)

// WithAdminEmails marks the given addresses as site administrators. Accounts
// registered with one of these emails get the site admin role.
func WithAdminEmails(emails []string) UserServiceOption {
	return func(s *userService) {
		for _, e := range emails {
			s.adminEmails[strings.ToLower(strings.TrimSpace(e))] = true
		}
	}
}

// NewUserService creates a new UserService instance.
func NewUserService(queries *repository.Queries, logger *slog.Logger, opts ...UserServiceOption) UserService {
	s := &userService{
		queries:     queries,
		logger:      logger,
		adminEmails: make(map[string]bool),
		sessions:    expirable.NewLRU[string, *domain.User](sessionCacheSize, nil, sessionCacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new user account with the provided parameters.
//
// Security:
// - Password is hashed with bcrypt cost 12
// - Timing attacks are mitigated by hashing even on duplicate email
// - The raw password is never logged or stored
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "UserService.Register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid email address")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "Invalid password")
	}

	// Check if email already exists
	_, err := s.queries.GetUserByEmail(ctx, params.Email)
	if err == nil {
		// User exists - hash the password anyway to keep timing constant
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	role := domain.RoleTeacher
	if s.adminEmails[params.Email] {
		role = domain.RoleSiteAdmin
	}

	trialEndsAt := time.Now().Add(TrialDuration)
	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
		SchoolID:     toNullUUID(params.SchoolID),
		Role:         string(role),
		Plan:         string(domain.PlanFree),
		TrialEndsAt:  sql.NullTime{Time: trialEndsAt, Valid: true},
	})
	if err != nil {
		// Unique constraint violation from a registration race
		if strings.Contains(err.Error(), "unique") || strings.Contains(err.Error(), "duplicate") {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return user, nil
}

// Login authenticates a user and creates a new session.
//
// Security:
// - Constant-time password comparison via bcrypt
// - Generic error message prevents email enumeration
// - The session token is hashed before storage and only returned once
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "UserService.Login"

	email = strings.ToLower(strings.TrimSpace(email))

	repoUser, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Dummy comparison to keep timing constant when the email is unknown
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW" // bcrypt hash of "dummy"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := generateToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate session token")
	}
	tokenHash := hashToken(token)

	_, err = s.queries.CreateSession(ctx, repository.CreateSessionParams{
		UserID:    repoUser.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(SessionDuration),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create session")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{
		User:  user,
		Token: token,
	}, nil
}

// Logout invalidates a session. Idempotent: an invalid or already-deleted
// token returns success.
func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != 64 {
		return nil
	}

	tokenHash := hashToken(token)
	s.sessions.Remove(tokenHash)

	if err := s.queries.DeleteSession(ctx, tokenHash); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}

	s.logger.Debug("session invalidated")
	return nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "UserService.GetByID"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// GetBySessionToken retrieves a user by their session token.
//
// The token is hashed before lookup; expired sessions are rejected at the
// database level. A short-TTL cache serves repeat lookups for the same token.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "UserService.GetBySessionToken"

	if len(token) != 64 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	tokenHash := hashToken(token)

	if user, ok := s.sessions.Get(tokenHash); ok {
		return user, nil
	}

	session, err := s.queries.GetSessionByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve session")
	}

	repoUser, err := s.queries.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Possible if the user was deleted out from under the session
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.sessions.Add(tokenHash, user)
	return user, nil
}

// UpdateProfile updates a user's profile information.
func (s *userService) UpdateProfile(ctx context.Context, params domain.ProfileUpdateParams) error {
	const op = "UserService.UpdateProfile"

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" {
		return domain.Invalid(op, "Name is required")
	}

	_, err := s.queries.GetUserByID(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	err = s.queries.UpdateUserProfile(ctx, repository.UpdateUserProfileParams{
		ID:   params.UserID,
		Name: params.Name,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update profile")
	}
	s.purgeUserFromCache(params.UserID)

	s.logger.Info("user profile updated", "user_id", params.UserID)
	return nil
}

// ChangePassword changes a user's password.
//
// The current password must be verified first, and all sessions are
// invalidated afterwards to force re-authentication.
func (s *userService) ChangePassword(ctx context.Context, params domain.PasswordChangeParams) error {
	const op = "UserService.ChangePassword"

	if err := validatePassword(params.NewPassword); err != nil {
		return domain.Wrap(err, domain.EINVALID, op, "Invalid new password")
	}

	repoUser, err := s.queries.GetUserByID(ctx, params.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", params.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(params.CurrentPassword)); err != nil {
		return domain.Unauthorized(op, "Current password is incorrect")
	}

	newPasswordHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), BcryptCost)
	if err != nil {
		return domain.Internal(err, op, "Failed to hash new password")
	}

	err = s.queries.UpdateUserPassword(ctx, repository.UpdateUserPasswordParams{
		ID:           params.UserID,
		PasswordHash: string(newPasswordHash),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update password")
	}

	if err := s.queries.DeleteUserSessions(ctx, params.UserID); err != nil {
		// Log but don't fail - the password was changed successfully
		s.logger.Warn("failed to delete user sessions after password change", "user_id", params.UserID, "error", err)
	}
	s.purgeUserFromCache(params.UserID)

	s.logger.Info("user password changed", "user_id", params.UserID)
	return nil
}

// DeleteExpiredSessions removes all expired sessions.
func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "UserService.DeleteExpiredSessions"

	if err := s.queries.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired sessions")
	}

	s.logger.Info("expired sessions cleaned up")
	return nil
}

// CreateEmailVerificationToken creates a new email verification token.
// Existing tokens for the user are deleted first: one live token per user.
func (s *userService) CreateEmailVerificationToken(ctx context.Context, userID uuid.UUID) (*domain.EmailVerificationResult, error) {
	const op = "UserService.CreateEmailVerificationToken"

	_, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := s.queries.DeleteUserVerificationTokens(ctx, userID); err != nil {
		return nil, domain.Internal(err, op, "Failed to delete existing tokens")
	}

	rawToken, err := generateToken()
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to generate token")
	}

	expiresAt := time.Now().Add(VerificationTokenDuration)
	_, err = s.queries.CreateVerificationToken(ctx, repository.CreateVerificationTokenParams{
		UserID:    userID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to create verification token")
	}

	s.logger.Info("email verification token created", "user_id", userID)

	return &domain.EmailVerificationResult{
		Token:     rawToken,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyEmail validates a verification token and marks the user as verified.
func (s *userService) VerifyEmail(ctx context.Context, token string) error {
	const op = "UserService.VerifyEmail"

	if len(token) != 64 {
		return domain.Invalid(op, "Invalid verification token")
	}

	tokenHash := hashToken(token)

	verificationToken, err := s.queries.GetVerificationTokenByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "verification token", "")
		}
		return domain.Internal(err, op, "Failed to retrieve verification token")
	}

	user, err := s.queries.GetUserByID(ctx, verificationToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", verificationToken.UserID.String())
		}
		return domain.Internal(err, op, "Failed to retrieve user")
	}

	if user.EmailVerified {
		return domain.Conflict(op, "Email is already verified")
	}

	err = s.queries.UpdateUserEmailVerification(ctx, repository.UpdateUserEmailVerificationParams{
		ID:              user.ID,
		EmailVerified:   true,
		EmailVerifiedAt: sql.NullTime{Time: time.Now(), Valid: true},
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to mark email as verified")
	}

	if err := s.queries.MarkVerificationTokenUsed(ctx, tokenHash); err != nil {
		// Log but don't fail - verification already succeeded
		s.logger.Warn("failed to mark verification token as used", "error", err, "user_id", user.ID)
	}
	s.purgeUserFromCache(user.ID)

	s.logger.Info("email verified", "user_id", user.ID, "email", user.Email)
	return nil
}

// ResendVerificationEmail creates a new verification token for an unverified
// user. Callers should show a generic message regardless of outcome.
func (s *userService) ResendVerificationEmail(ctx context.Context, email string) (*domain.EmailVerificationResult, error) {
	const op = "UserService.ResendVerificationEmail"

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", email)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if user.EmailVerified {
		return nil, domain.Conflict(op, "Email is already verified")
	}

	return s.CreateEmailVerificationToken(ctx, user.ID)
}

// DeleteExpiredVerificationTokens removes all expired verification tokens.
func (s *userService) DeleteExpiredVerificationTokens(ctx context.Context) error {
	const op = "UserService.DeleteExpiredVerificationTokens"

	if err := s.queries.DeleteExpiredVerificationTokens(ctx); err != nil {
		return domain.Internal(err, op, "Failed to delete expired tokens")
	}

	s.logger.Info("expired email verification tokens cleaned up")
	return nil
}

// UpdateStripeCustomer saves the Stripe customer ID for a user.
func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "UserService.UpdateStripeCustomer"

	err := s.queries.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: stripeCustomerID,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update Stripe customer ID")
	}
	s.purgeUserFromCache(userID)

	s.logger.Info("stripe customer ID updated", "user_id", userID, "stripe_customer_id", stripeCustomerID)
	return nil
}

// UpdateSubscription updates a user's subscription status, plan, and subscription ID.
func (s *userService) UpdateSubscription(ctx context.Context, userID uuid.UUID, status, plan, subscriptionID string) error {
	const op = "UserService.UpdateSubscription"

	if !domain.Plan(plan).Valid() {
		return domain.Invalid(op, "Unknown plan")
	}

	err := s.queries.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:                 userID,
		SubscriptionStatus: status,
		Plan:               plan,
		SubscriptionID:     subscriptionID,
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update subscription")
	}
	s.purgeUserFromCache(userID)

	s.logger.Info("subscription updated", "user_id", userID, "status", status, "plan", plan)
	return nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "UserService.GetByStripeCustomerID"

	repoUser, err := s.queries.GetUserByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user by Stripe customer ID")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// purgeUserFromCache drops every cached session for a user whose record
// changed. The cache is small, so a full scan is fine.
func (s *userService) purgeUserFromCache(userID uuid.UUID) {
	for _, key := range s.sessions.Keys() {
		if user, ok := s.sessions.Peek(key); ok && user.ID == userID {
			s.sessions.Remove(key)
		}
	}
}

// generateToken creates a cryptographically secure random token, hex-encoded
// to 64 characters. Used for sessions and verification links alike.
func generateToken() (string, error) {
	bytes := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashToken creates a SHA-256 hash of a token for storage. Tokens are
// high-entropy random values, so a fast hash is sufficient; bcrypt would add
// latency to every request for no security gain.
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// repoUserToDomain converts a repository.User to domain.User.
func repoUserToDomain(u repository.User) *domain.User {
	var schoolID *uuid.UUID
	if u.SchoolID.Valid {
		id := u.SchoolID.UUID
		schoolID = &id
	}
	var trialEndsAt *time.Time
	if u.TrialEndsAt.Valid {
		t := u.TrialEndsAt.Time
		trialEndsAt = &t
	}
	var emailVerifiedAt *time.Time
	if u.EmailVerifiedAt.Valid {
		t := u.EmailVerifiedAt.Time
		emailVerifiedAt = &t
	}

	return &domain.User{
		ID:                 u.ID,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Name:               u.Name,
		SchoolID:           schoolID,
		Role:               domain.Role(u.Role),
		Plan:               domain.Plan(u.Plan),
		SubscriptionStatus: domain.SubscriptionStatus(u.SubscriptionStatus),
		StripeCustomerID:   u.StripeCustomerID,
		SubscriptionID:     u.SubscriptionID,
		TrialEndsAt:        trialEndsAt,
		EmailVerified:      u.EmailVerified,
		EmailVerifiedAt:    emailVerifiedAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// validateEmail validates an email address format.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	atIndex := strings.Index(email, "@")
	if atIndex != strings.LastIndex(email, "@") || atIndex <= 0 || atIndex == len(email)-1 {
		return domain.Invalid("", "Email address is malformed")
	}
	if !strings.Contains(email[atIndex+1:], ".") {
		return domain.Invalid("", "Email domain must contain a dot")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "Email cannot contain consecutive dots")
	}

	return nil
}

// validatePassword validates password strength requirements.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}
	return nil
}

var _ UserService = (*userService)(nil)
