// Package domain contains core business types and interfaces.
//
// This file defines the school (tenant) types for multi-tenant administration.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// School is a tenant: an organization whose teachers share an enterprise
// plan and a chat space.
type School struct {
	ID        uuid.UUID
	Name      string
	Domain    string // email domain used to suggest membership, optional
	Plan      Plan   // plan applied to all members
	SeatLimit int    // 0 means unlimited
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSeatsFor reports whether the school can admit n more members.
func (s *School) HasSeatsFor(current, n int) bool {
	if s.SeatLimit == 0 {
		return true
	}
	return current+n <= s.SeatLimit
}

// SchoolCreateParams contains validated parameters for creating a school.
type SchoolCreateParams struct {
	Name      string
	Domain    string
	Plan      Plan
	SeatLimit int
}

// SchoolMember pairs a user with their role inside a school, for admin
// listings.
type SchoolMember struct {
	UserID   uuid.UUID
	Email    string
	Name     string
	Role     Role
	JoinedAt time.Time
}
