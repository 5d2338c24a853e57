package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEffectivePlan(t *testing.T) {
	future := timePtr(time.Now().Add(24 * time.Hour))
	past := timePtr(time.Now().Add(-24 * time.Hour))

	tests := []struct {
		name string
		user User
		want Plan
	}{
		{
			name: "free stays free",
			user: User{Plan: PlanFree},
			want: PlanFree,
		},
		{
			name: "active plus",
			user: User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusActive},
			want: PlanPlus,
		},
		{
			name: "trialing enterprise",
			user: User{Plan: PlanEnterprise, SubscriptionStatus: SubscriptionStatusTrialing},
			want: PlanEnterprise,
		},
		{
			name: "canceled plus inside trial window keeps plus",
			user: User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusCanceled, TrialEndsAt: future},
			want: PlanPlus,
		},
		{
			name: "canceled plus with expired trial degrades to free",
			user: User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusCanceled, TrialEndsAt: past},
			want: PlanFree,
		},
		{
			name: "past due without trial keeps plan",
			user: User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusPastDue},
			want: PlanPlus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.EffectivePlan())
		})
	}
}

func TestIsMetered(t *testing.T) {
	assert.True(t, (&User{Plan: PlanFree}).IsMetered())
	assert.False(t, (&User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusActive}).IsMetered())

	// A lapsed paid plan is metered again.
	past := timePtr(time.Now().Add(-time.Hour))
	lapsed := &User{Plan: PlanPlus, SubscriptionStatus: SubscriptionStatusCanceled, TrialEndsAt: past}
	assert.True(t, lapsed.IsMetered())
}

func TestTrialExpired(t *testing.T) {
	assert.False(t, (&User{}).TrialExpired())
	assert.False(t, (&User{TrialEndsAt: timePtr(time.Now().Add(time.Minute))}).TrialExpired())
	assert.True(t, (&User{TrialEndsAt: timePtr(time.Now().Add(-time.Minute))}).TrialExpired())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dana", (&User{Name: "Dana", Email: "d@example.org"}).DisplayName())
	assert.Equal(t, "d@example.org", (&User{Email: "d@example.org"}).DisplayName())
}
