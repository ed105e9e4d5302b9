package subscription

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apperrors "github.com/open-builders/giveaway-bot/internal/common/errors"
	"github.com/open-builders/giveaway-bot/internal/common/logger"
	ds "github.com/open-builders/giveaway-bot/internal/domain/subscription"
	"github.com/open-builders/giveaway-bot/internal/platform/paypal"
	"github.com/open-builders/giveaway-bot/internal/repository"
	"github.com/open-builders/giveaway-bot/internal/repository/memory"
)

// Period is how long one activation grants Pro.
const Period = 30 * 24 * time.Hour

const (
	EventActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
)

var (
	ErrFeatureLocked      = apperrors.New(apperrors.ErrCodeFeatureLocked, "feature requires Pro")
	ErrPaymentUnavailable = apperrors.New(apperrors.ErrCodePaymentUnavailable, "payment system unavailable")
	ErrAlreadySubscribed  = apperrors.New(apperrors.ErrCodeAlreadySubscribed, "guild already has Pro")
	ErrNotOwner           = apperrors.NewForbiddenError("owner_only")
	ErrWebhookUnverified  = apperrors.NewForbiddenError("webhook_unverified")
)

// PaymentProvider creates a checkout for a guild. *paypal.Client implements it.
type PaymentProvider interface {
	CreateSubscription(ctx context.Context, guildID, guildName string) (*paypal.Checkout, error)
}

// WebhookVerifier confirms that a webhook delivery came from the payment
// provider. It returns paypal.ErrSignatureInvalid for a rejected delivery.
// *paypal.Client implements it.
type WebhookVerifier interface {
	VerifyWebhook(ctx context.Context, h http.Header, body []byte) error
}

// PurchaseInput identifies the guild and the user running /buy.
type PurchaseInput struct {
	GuildID   string
	GuildName string
	OwnerID   string
	ActorID   string
}

// Service manages per-guild tiers.
type Service struct {
	store    *memory.SubscriptionStore
	provider PaymentProvider
	verifier WebhookVerifier
	now      func() time.Time
	onChange func()
	logger   zerolog.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithChangeHook(fn func()) Option { return func(s *Service) { s.onChange = fn } }

// WithWebhookVerifier sets the signature check for HandleWebhook. Without
// one every delivery is rejected.
func WithWebhookVerifier(v WebhookVerifier) Option { return func(s *Service) { s.verifier = v } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService builds the service. provider may be nil when no payment
// credentials are configured; purchases then fail with PAYMENT_UNAVAILABLE.
func NewService(store *memory.SubscriptionStore, provider PaymentProvider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		now:      time.Now,
		onChange: func() {},
		logger:   logger.Component("subscription"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the guild's record, if any.
func (s *Service) Get(guildID string) (*ds.Subscription, error) {
	return s.store.Get(guildID)
}

// Tier reports the guild's effective tier at the current time.
func (s *Service) Tier(guildID string) ds.Tier {
	sub, err := s.store.Get(guildID)
	if err != nil || !sub.ActiveAt(s.now()) {
		return ds.TierFree
	}
	return ds.TierPro
}

// CheckFeatureAccess returns FEATURE_LOCKED when a free guild asks for a Pro feature.
func (s *Service) CheckFeatureAccess(guildID string, feature ds.Feature) error {
	if !feature.IsPro() || s.Tier(guildID) == ds.TierPro {
		return nil
	}
	return apperrors.Derive(ErrFeatureLocked).WithDetail("feature", string(feature))
}

// Purchase starts a checkout for the guild and stores a pending record.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*paypal.Checkout, error) {
	if in.ActorID == "" || in.ActorID != in.OwnerID {
		return nil, ErrNotOwner
	}
	if s.provider == nil {
		return nil, ErrPaymentUnavailable
	}
	if s.Tier(in.GuildID) == ds.TierPro {
		return nil, ErrAlreadySubscribed
	}

	checkout, err := s.provider.CreateSubscription(ctx, in.GuildID, in.GuildName)
	if err != nil {
		s.logger.Error().Err(err).Str("guild_id", in.GuildID).Msg("Failed to create checkout")
		return nil, apperrors.Wrap(err, apperrors.ErrCodePaymentUnavailable, ErrPaymentUnavailable.Message)
	}

	s.store.Put(&ds.Subscription{
		GuildID:                in.GuildID,
		ServerName:             in.GuildName,
		OwnerID:                in.OwnerID,
		Tier:                   ds.TierFree,
		Status:                 ds.StatusPending,
		ProviderSubscriptionID: checkout.SubscriptionID,
		CreatedAt:              s.now(),
	})
	s.onChange()

	s.logger.Info().
		Str("guild_id", in.GuildID).
		Str("subscription_id", checkout.SubscriptionID).
		Msg("Checkout created")
	return checkout, nil
}

// HandleWebhook applies a payment provider event after the provider has
// confirmed the delivery's signature. Events that do not concern this bot
// are ignored.
func (s *Service) HandleWebhook(ctx context.Context, headers http.Header, payload []byte) error {
	if err := s.verify(ctx, headers, payload); err != nil {
		return err
	}
	if !gjson.ValidBytes(payload) {
		return apperrors.NewValidationError("payload", "invalid JSON")
	}
	event := gjson.GetBytes(payload, "event_type").String()
	customID := gjson.GetBytes(payload, "resource.custom_id").String()
	providerID := gjson.GetBytes(payload, "resource.id").String()

	if event != EventActivated && event != EventCancelled {
		s.logger.Debug().Str("event", event).Msg("Ignoring webhook event")
		return nil
	}
	if !strings.HasPrefix(customID, paypal.CustomIDPrefix) {
		s.logger.Debug().Str("event", event).Str("custom_id", customID).Msg("Ignoring foreign subscription")
		return nil
	}
	guildID := strings.TrimPrefix(customID, paypal.CustomIDPrefix)
	if guildID == "" {
		return apperrors.NewValidationError("custom_id", "missing guild id")
	}

	now := s.now()
	switch event {
	case EventActivated:
		s.activate(guildID, providerID, now)
	case EventCancelled:
		_, err := s.store.Update(guildID, func(sub *ds.Subscription) error {
			sub.Status = ds.StatusCancelled
			sub.CancelledAt = now
			return nil
		})
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			s.logger.Warn().Str("guild_id", guildID).Msg("Cancellation for unknown subscription")
			return nil
		}
		if err != nil {
			return err
		}
		s.logger.Info().Str("guild_id", guildID).Msg("Subscription cancelled")
	}
	s.onChange()
	return nil
}

func (s *Service) verify(ctx context.Context, headers http.Header, payload []byte) error {
	if s.verifier == nil {
		s.logger.Warn().Msg("Rejecting webhook: no verifier configured")
		return ErrWebhookUnverified
	}
	err := s.verifier.VerifyWebhook(ctx, headers, payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, paypal.ErrSignatureInvalid):
		s.logger.Warn().
			Str("transmission_id", headers.Get(paypal.HeaderTransmissionID)).
			Msg("Rejecting webhook with invalid signature")
		return ErrWebhookUnverified
	default:
		s.logger.Error().Err(err).Msg("Failed to verify webhook signature")
		return apperrors.NewExternalAPIError("verify webhook", err)
	}
}

// activate grants Pro for one period. An activation without a pending
// record (e.g. lost before a restart) creates one.
func (s *Service) activate(guildID, providerID string, now time.Time) {
	apply := func(sub *ds.Subscription) {
		sub.Tier = ds.TierPro
		sub.Status = ds.StatusActive
		sub.ActivatedAt = now
		sub.ExpiresAt = now.Add(Period)
		if providerID != "" {
			sub.ProviderSubscriptionID = providerID
		}
	}

	_, err := s.store.Update(guildID, func(sub *ds.Subscription) error {
		apply(sub)
		return nil
	})
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		sub := &ds.Subscription{GuildID: guildID, CreatedAt: now}
		apply(sub)
		s.store.Put(sub)
	}
	s.logger.Info().Str("guild_id", guildID).Msg("Subscription activated")
}
