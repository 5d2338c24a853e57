// Package domain contains core business types and interfaces.
//
// This file defines the User domain type and related types for authentication.
// These types are separate from the repository models so business logic never
// depends on database column shapes.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a user's subscription plan. Only the free plan is subject to the
// weekly tool-usage limit; paid plans bypass the subsystem entirely.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPlus       Plan = "plus"
	PlanEnterprise Plan = "enterprise"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPlus, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionStatus tracks the Stripe subscription lifecycle for paid plans.
type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// PlanQuota defines the weekly tool-use limits for a plan.
type PlanQuota struct {
	WeeklyToolUses    int
	UnlimitedToolUses bool
}

// PlanQuotas maps plans to their quota limits. Free is metered; paid plans
// are unlimited.
var PlanQuotas = map[Plan]PlanQuota{
	PlanFree: {
		WeeklyToolUses: DefaultWeeklyLimit,
	},
	PlanPlus: {
		UnlimitedToolUses: true,
	},
	PlanEnterprise: {
		UnlimitedToolUses: true,
	},
}

// GetPlanQuota returns the quota for a plan, defaulting to the free plan for
// unknown values.
func GetPlanQuota(plan Plan) PlanQuota {
	if q, ok := PlanQuotas[plan]; ok {
		return q
	}
	return PlanQuotas[PlanFree]
}

// Role controls access to school administration endpoints.
type Role string

const (
	RoleTeacher     Role = "teacher"
	RoleSchoolAdmin Role = "school_admin"
	RoleSiteAdmin   Role = "site_admin"
)

// User represents a registered teacher on the TeachAI platform.
type User struct {
	ID                 uuid.UUID
	Email              string
	PasswordHash       string // never expose in API responses
	Name               string
	SchoolID           *uuid.UUID // tenant membership, nil for independent teachers
	Role               Role
	Plan               Plan
	SubscriptionStatus SubscriptionStatus
	StripeCustomerID   string
	SubscriptionID     string
	TrialEndsAt        *time.Time
	EmailVerified      bool
	EmailVerifiedAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TrialExpired reports whether a trial period has ended. Users with no trial
// are never "expired".
func (u *User) TrialExpired() bool {
	if u.TrialEndsAt == nil {
		return false
	}
	return time.Now().After(*u.TrialEndsAt)
}

// EffectivePlan is the plan used for gating: a paid plan whose subscription
// lapsed and whose trial is over degrades to free.
func (u *User) EffectivePlan() Plan {
	if u.Plan == PlanFree {
		return PlanFree
	}
	if u.SubscriptionStatus == SubscriptionStatusActive ||
		u.SubscriptionStatus == SubscriptionStatusTrialing {
		return u.Plan
	}
	if u.TrialExpired() {
		return PlanFree
	}
	return u.Plan
}

// IsMetered reports whether this user's tool usage counts against the weekly
// limit.
func (u *User) IsMetered() bool {
	return u.EffectivePlan() == PlanFree
}

// IsAdmin reports whether the user can manage their school.
func (u *User) IsAdmin() bool {
	return u.Role == RoleSchoolAdmin || u.Role == RoleSiteAdmin
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored with a hashed token; the raw token is only given to the
// client once, at login.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the session token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// RegisterParams contains the validated parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // raw password, hashed by the service
	Name     string
	SchoolID *uuid.UUID // optional
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // raw session token, only returned once
}

// ProfileUpdateParams contains parameters for updating a user's profile.
type ProfileUpdateParams struct {
	UserID uuid.UUID
	Name   string
}

// PasswordChangeParams contains parameters for changing a user's password.
type PasswordChangeParams struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
}

// EmailVerificationResult is returned when a verification token is created.
type EmailVerificationResult struct {
	Token     string // raw token to embed in the email link
	ExpiresAt time.Time
}
