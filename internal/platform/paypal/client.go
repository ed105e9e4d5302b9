// Package paypal is a minimal client for the PayPal subscriptions API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CustomIDPrefix tags subscriptions created by this bot; the guild ID follows it.
const CustomIDPrefix = "givzy-"

// ErrSignatureInvalid means PayPal did not confirm a webhook delivery as its own.
var ErrSignatureInvalid = errors.New("webhook signature not verified")

// Transmission headers PayPal signs every webhook delivery with.
const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

// Config holds API credentials and the plan sold by /buy. WebhookID is the
// ID of the webhook registered in the PayPal dashboard.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PlanID       string
	WebhookID    string
	BrandName    string
	ReturnURL    string
	CancelURL    string
}

// Checkout is a created subscription awaiting buyer approval.
type Checkout struct {
	SubscriptionID string
	ApprovalURL    string
}

// Client talks to the PayPal REST API using client-credentials OAuth.
type Client struct {
	httpClient *http.Client
	cfg        Config

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BrandName == "" {
		cfg.BrandName = "Givzy Bot"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type subscriptionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []link `json:"links"`
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CreateSubscription creates a subscription for the guild and returns the
// link the buyer must open to approve it.
func (c *Client) CreateSubscription(ctx context.Context, guildID, guildName string) (*Checkout, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("paypal auth: %w", err)
	}

	body := map[string]any{
		"plan_id":   c.cfg.PlanID,
		"custom_id": CustomIDPrefix + guildID,
		"application_context": map[string]any{
			"brand_name":          c.cfg.BrandName,
			"locale":              "en-US",
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "SUBSCRIBE_NOW",
			"payment_method": map[string]string{
				"payer_selected":  "PAYPAL",
				"payee_preferred": "IMMEDIATE_PAYMENT_REQUIRED",
			},
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/billing/subscriptions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("PayPal-Request-Id", fmt.Sprintf("%ssub-%s-%s", CustomIDPrefix, guildID, uuid.NewString()))

	var out subscriptionResponse
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("create subscription for %s: %w", guildName, err)
	}

	checkout := &Checkout{SubscriptionID: out.ID}
	for _, l := range out.Links {
		if l.Rel == "approve" {
			checkout.ApprovalURL = l.Href
			break
		}
	}
	if checkout.ApprovalURL == "" {
		return nil, fmt.Errorf("subscription %s has no approval link", out.ID)
	}
	return checkout, nil
}

// VerifyWebhook asks PayPal whether body was sent by it to the configured
// webhook. A delivery PayPal rejects, or one missing its transmission
// headers, yields ErrSignatureInvalid; other errors mean the check itself
// could not be made.
func (c *Client) VerifyWebhook(ctx context.Context, h http.Header, body []byte) error {
	if c.cfg.WebhookID == "" {
		return fmt.Errorf("paypal webhook id not configured")
	}
	in := verifyRequest{
		AuthAlgo:         h.Get(HeaderAuthAlgo),
		CertURL:          h.Get(HeaderCertURL),
		TransmissionID:   h.Get(HeaderTransmissionID),
		TransmissionSig:  h.Get(HeaderTransmissionSig),
		TransmissionTime: h.Get(HeaderTransmissionTime),
		WebhookID:        c.cfg.WebhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	if in.AuthAlgo == "" || in.CertURL == "" || in.TransmissionID == "" ||
		in.TransmissionSig == "" || in.TransmissionTime == "" || !json.Valid(body) {
		return ErrSignatureInvalid
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("paypal auth: %w", err)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var out verifyResponse
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return fmt.Errorf("verify webhook %s: %w", in.TransmissionID, err)
	}
	if out.VerificationStatus != "SUCCESS" {
		return ErrSignatureInvalid
	}
	return nil
}

// accessToken returns a cached bearer token, refreshing it a minute before expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out tokenResponse
	if err := c.do(req, http.StatusOK, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("empty access token")
	}

	c.token = out.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("status %d: %s: %s", resp.StatusCode, apiErr.Name, apiErr.Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
