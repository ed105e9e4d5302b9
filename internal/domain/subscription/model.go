package subscription

import "time"

// Tier is the plan a guild is on.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Status tracks the payment-side state of a subscription.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Feature is a capability that may require the Pro tier.
type Feature string

const (
	FeatureRoleRequirement Feature = "role_requirement"
	FeatureAccountAge      Feature = "account_age"
	FeatureServerTime      Feature = "server_time"
)

// ProFeatures lists the features locked on the free tier.
var ProFeatures = []Feature{FeatureRoleRequirement, FeatureAccountAge, FeatureServerTime}

// IsPro reports whether f requires the Pro tier.
func (f Feature) IsPro() bool {
	for _, p := range ProFeatures {
		if p == f {
			return true
		}
	}
	return false
}

// Subscription is the per-guild billing record.
type Subscription struct {
	GuildID                string    `json:"guild_id"`
	ServerName             string    `json:"server_name"`
	OwnerID                string    `json:"owner_id"`
	Tier                   Tier      `json:"tier"`
	Status                 Status    `json:"status"`
	ProviderSubscriptionID string    `json:"paypal_subscription_id,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
	ActivatedAt            time.Time `json:"activated_at,omitempty"`
	CancelledAt            time.Time `json:"cancelled_at,omitempty"`
	ExpiresAt              time.Time `json:"expires_at,omitempty"`
}

// ActiveAt reports whether the subscription grants Pro at the given instant.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s == nil || s.Tier != TierPro || s.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Clone returns a copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
