package giveaway

import (
	"time"

	"github.com/open-builders/giveaway-bot/internal/utils/discord"
)

// IneligibleReason names the entry predicate a user failed.
type IneligibleReason string

const (
	ReasonRole          IneligibleReason = "role"
	ReasonAccountAge    IneligibleReason = "account_age"
	ReasonMembershipAge IneligibleReason = "membership_age"
)

// Requirements are optional entry predicates fixed at creation. Zero values
// disable a predicate.
type Requirements struct {
	RequiredRoleID    string `json:"required_role_id,omitempty"`
	MinAccountAgeDays int    `json:"min_account_age_days,omitempty"`
	MinMembershipDays int    `json:"min_membership_days,omitempty"`
}

// Entrant is what the chat platform tells us about a user pressing Join.
type Entrant struct {
	UserID           string
	RoleIDs          []string
	AccountCreatedAt time.Time
	JoinedGuildAt    time.Time
}

// HasRole reports whether the entrant holds roleID.
func (e Entrant) HasRole(roleID string) bool {
	for _, r := range e.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Check evaluates the predicates in order: role, account age, membership age.
// It returns the first failing reason, or "" when the entrant is eligible.
func (r Requirements) Check(e Entrant, now time.Time) IneligibleReason {
	if r.RequiredRoleID != "" && !e.HasRole(r.RequiredRoleID) {
		return ReasonRole
	}
	if r.MinAccountAgeDays > 0 && discord.WholeDaysBetween(e.AccountCreatedAt, now) < r.MinAccountAgeDays {
		return ReasonAccountAge
	}
	if r.MinMembershipDays > 0 && discord.WholeDaysBetween(e.JoinedGuildAt, now) < r.MinMembershipDays {
		return ReasonMembershipAge
	}
	return ""
}

// Any reports whether at least one predicate is enabled.
func (r Requirements) Any() bool {
	return r.RequiredRoleID != "" || r.MinAccountAgeDays > 0 || r.MinMembershipDays > 0
}
