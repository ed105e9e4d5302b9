package giveaway

import (
	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	"github.com/open-builders/giveaway-bot/internal/repository"
)

var (
	ErrNotFound         = repository.ErrGiveawayNotFound
	ErrNotActive        = apperrors.New(apperrors.ErrCodeNotActive, "giveaway is no longer active")
	ErrNotEnded         = apperrors.New(apperrors.ErrCodeNotEnded, "giveaway has not ended yet")
	ErrAlreadyJoined    = apperrors.New(apperrors.ErrCodeAlreadyJoined, "already joined")
	ErrIneligible       = apperrors.New(apperrors.ErrCodeIneligible, "entry requirements not met")
	ErrCooldown         = apperrors.New(apperrors.ErrCodeCooldown, "joining too fast")
	ErrPermissionDenied = apperrors.New(apperrors.ErrCodeForbidden, "manage messages permission required")
	ErrParseDuration    = apperrors.New(apperrors.ErrCodeParseFailure, "invalid duration")
)
