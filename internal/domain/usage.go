// Package domain contains core business types and interfaces.
//
// This file defines the weekly usage-limit types and the pure policy that
// turns a stored usage record into the quota snapshot shown to users.
package domain

import "time"

// DefaultWeeklyLimit is the number of tool uses a free-plan user gets per
// calendar week. Configurable per deployment, not per user.
const DefaultWeeklyLimit = 5

// UsageEvent is one recorded use of a tool.
//
// Events are immutable once created and are never mutated or deleted
// individually; they only ever travel inside their week's UsageRecord.
type UsageEvent struct {
	ToolID    string    `json:"toolId"`
	ToolName  string    `json:"toolName"` // denormalized for display/audit
	Timestamp time.Time `json:"timestamp"`
}

// UsageRecord is the single per-user aggregate for the current tracked week.
//
// A record is created lazily on the first tool use of a week and replaced
// (not merged) when time moves into a new week. Within a week the Usages
// sequence is append-only and insertion-ordered. Records from prior weeks are
// superseded rather than deleted.
type UsageRecord struct {
	UserID        string       `json:"userId"`
	WeekStartDate time.Time    `json:"weekStartDate"`
	Usages        []UsageEvent `json:"usages"`
}

// StaleAt reports whether the record belongs to a week strictly before the
// week containing now. A stale record must be treated as if it had zero
// usages; it is never read for its count.
func (r *UsageRecord) StaleAt(now time.Time, loc *time.Location) bool {
	return r.WeekStartDate.Before(WeekStart(now, loc))
}

// UsageSnapshot is the derived, non-persisted view of quota state.
type UsageSnapshot struct {
	WeeklyLimit   int       `json:"weeklyLimit"`
	CurrentUsage  int       `json:"currentUsage"`
	WeekStartDate time.Time `json:"weekStartDate"`
	RemainingUses int       `json:"remainingUses"`
}

// Exhausted reports whether no uses remain this week.
func (s UsageSnapshot) Exhausted() bool {
	return s.RemainingUses == 0
}

// WeekStart returns midnight of the most recent Sunday at or before now, in
// the given location. A nil location means UTC. Pure, no I/O.
//
// The week boundary is server-authoritative: every client of a deployment
// sees the quota reset at the same instant.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// SnapshotOf computes the quota snapshot for a record (or its absence) at a
// moment in time. This is a total function: it cannot fail and performs no
// I/O.
//
// An absent record and a record from a prior week produce the same result:
// zero usage against the full limit for the current week. Only a record whose
// WeekStartDate falls in the current week is read for its count.
func SnapshotOf(record *UsageRecord, now time.Time, loc *time.Location, limit int) UsageSnapshot {
	currentWeekStart := WeekStart(now, loc)

	if record == nil || record.WeekStartDate.Before(currentWeekStart) {
		return UsageSnapshot{
			WeeklyLimit:   limit,
			CurrentUsage:  0,
			WeekStartDate: currentWeekStart,
			RemainingUses: limit,
		}
	}

	used := len(record.Usages)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageSnapshot{
		WeeklyLimit:   limit,
		CurrentUsage:  used,
		WeekStartDate: currentWeekStart,
		RemainingUses: remaining,
	}
}
