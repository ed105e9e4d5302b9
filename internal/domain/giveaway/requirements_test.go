package giveaway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequirementsCheckOrder(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	young := now.Add(-2 * 24 * time.Hour)
	old := now.Add(-400 * 24 * time.Hour)

	req := Requirements{RequiredRoleID: "r1", MinAccountAgeDays: 30, MinMembershipDays: 7}

	tests := []struct {
		name    string
		entrant Entrant
		want    IneligibleReason
	}{
		{"fails everything reports role", Entrant{AccountCreatedAt: young, JoinedGuildAt: young}, ReasonRole},
		{"has role, young account", Entrant{RoleIDs: []string{"r1"}, AccountCreatedAt: young, JoinedGuildAt: young}, ReasonAccountAge},
		{"has role, old account, new member", Entrant{RoleIDs: []string{"r1"}, AccountCreatedAt: old, JoinedGuildAt: young}, ReasonMembershipAge},
		{"eligible", Entrant{RoleIDs: []string{"x", "r1"}, AccountCreatedAt: old, JoinedGuildAt: old}, ""},
		{"unknown join date", Entrant{RoleIDs: []string{"r1"}, AccountCreatedAt: old}, ReasonMembershipAge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, req.Check(tt.entrant, now))
		})
	}
}

func TestRequirementsDisabled(t *testing.T) {
	var req Requirements
	assert.False(t, req.Any())
	assert.Equal(t, IneligibleReason(""), req.Check(Entrant{}, time.Now()))
}

func TestRequirementsBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	req := Requirements{MinAccountAgeDays: 7}

	assert.Equal(t, IneligibleReason(""), req.Check(Entrant{AccountCreatedAt: now.Add(-7 * 24 * time.Hour)}, now))
	assert.Equal(t, ReasonAccountAge, req.Check(Entrant{AccountCreatedAt: now.Add(-7*24*time.Hour + time.Minute)}, now))
}
