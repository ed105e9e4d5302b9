package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	gsvc "github.com/open-builders/giveaway-bot/internal/service/giveaway"
	subsvc "github.com/open-builders/giveaway-bot/internal/service/subscription"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", gsvc.ErrNotFound, "Giveaway not found."},
		{"not active", gsvc.ErrNotActive, "This giveaway has already ended."},
		{"not ended", gsvc.ErrNotEnded, "This giveaway has not ended yet."},
		{"already joined", gsvc.ErrAlreadyJoined, "You have already joined this giveaway."},
		{"role", apperrors.Derive(gsvc.ErrIneligible).WithDetail("reason", "role"), "You don't have the role required to join this giveaway."},
		{"account age", apperrors.Derive(gsvc.ErrIneligible).WithDetail("reason", "account_age"), "Your account is too new to join this giveaway."},
		{"membership", apperrors.Derive(gsvc.ErrIneligible).WithDetail("reason", "membership_age"), "You haven't been in this server long enough to join this giveaway."},
		{"cooldown", apperrors.Derive(gsvc.ErrCooldown).WithDetail("retry_after", 7), "You're joining too fast. Try again in 7s."},
		{"validation", apperrors.NewValidationError("prize", "must not be empty"), "Invalid `prize`: must not be empty."},
		{"permission", gsvc.ErrPermissionDenied, "You need the Manage Messages permission to do that."},
		{"owner", subsvc.ErrNotOwner, "Only the server owner can purchase a subscription."},
		{"locked", apperrors.Derive(subsvc.ErrFeatureLocked).WithDetail("feature", "role_requirement"), "**Role Requirement** is a Pro feature. Use `/buy` to upgrade this server."},
		{"already pro", subsvc.ErrAlreadySubscribed, "This server already has Pro."},
		{"storage", apperrors.NewStorageError("save", errors.New("disk full")), genericFailure},
		{"plain", errors.New("boom"), genericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}

func TestUserMessageParseFailure(t *testing.T) {
	err := apperrors.Wrap(errors.New("bad unit"), apperrors.ErrCodeParseFailure, "invalid duration")
	assert.Contains(t, userMessage(err), "Invalid duration")
	assert.NotContains(t, userMessage(err), "bad unit")
}

func TestUserMessagePaymentUnavailable(t *testing.T) {
	assert.Contains(t, userMessage(subsvc.ErrPaymentUnavailable), "temporarily unavailable")
}
