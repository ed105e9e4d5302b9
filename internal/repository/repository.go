package repository

import (
	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
)

var (
	ErrGiveawayNotFound     = apperrors.New(apperrors.ErrCodeNotFound, "giveaway not found")
	ErrDuplicateID          = apperrors.New(apperrors.ErrCodeDuplicateID, "giveaway already exists")
	ErrSubscriptionNotFound = apperrors.New(apperrors.ErrCodeNotFound, "subscription not found")
)
