package bot

import (
	"fmt"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	dg "github.com/open-builders/giveaway-bot/internal/domain/giveaway"
)

const genericFailure = "An error occurred, please retry."

var featureNames = map[string]string{
	"role_requirement": "Role Requirement",
	"account_age":      "Account Age Requirement",
	"server_time":      "Server Time Requirement",
}

// userMessage turns a service error into the text shown to the user.
// Internal failures never leak their cause.
func userMessage(err error) string {
	if err == nil {
		return ""
	}
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeParseFailure:
		return "Invalid duration. Use s, m, h or d, e.g. `30s`, `10m`, `2h`, `1d2h30m`."
	case apperrors.ErrCodeValidation:
		field := apperrors.DetailString(err, "field")
		reason := apperrors.DetailString(err, "reason")
		if field == "" {
			return "Invalid input."
		}
		return fmt.Sprintf("Invalid `%s`: %s.", field, reason)
	case apperrors.ErrCodeNotFound:
		return "Giveaway not found."
	case apperrors.ErrCodeNotActive:
		return "This giveaway has already ended."
	case apperrors.ErrCodeNotEnded:
		return "This giveaway has not ended yet."
	case apperrors.ErrCodeAlreadyJoined:
		return "You have already joined this giveaway."
	case apperrors.ErrCodeIneligible:
		switch dg.IneligibleReason(apperrors.IneligibleReason(err)) {
		case dg.ReasonRole:
			return "You don't have the role required to join this giveaway."
		case dg.ReasonAccountAge:
			return "Your account is too new to join this giveaway."
		case dg.ReasonMembershipAge:
			return "You haven't been in this server long enough to join this giveaway."
		}
		return "You don't meet the requirements of this giveaway."
	case apperrors.ErrCodeCooldown:
		if secs := retryAfter(err); secs > 0 {
			return fmt.Sprintf("You're joining too fast. Try again in %ds.", secs)
		}
		return "You're joining too fast. Try again in a moment."
	case apperrors.ErrCodeForbidden:
		if apperrors.DetailString(err, "reason") == "owner_only" {
			return "Only the server owner can purchase a subscription."
		}
		return "You need the Manage Messages permission to do that."
	case apperrors.ErrCodeFeatureLocked:
		name := featureNames[apperrors.DetailString(err, "feature")]
		if name == "" {
			name = "This feature"
		}
		return fmt.Sprintf("**%s** is a Pro feature. Use `/buy` to upgrade this server.", name)
	case apperrors.ErrCodePaymentUnavailable:
		return "Payments are temporarily unavailable. Please try again later; all free features keep working."
	case apperrors.ErrCodeAlreadySubscribed:
		return "This server already has Pro."
	}
	return genericFailure
}

func retryAfter(err error) int {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Details == nil {
		return 0
	}
	switch v := appErr.Details["retry_after"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
