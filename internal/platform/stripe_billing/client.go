package stripe_billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/fatflowers/fplcoach/pkg/apperr"
	cfgpkg "github.com/fatflowers/fplcoach/pkg/config"
)

// Client wraps the Stripe API and the webhook endpoint secret.
type Client struct {
	api           *client.API
	webhookSecret string
}

func New(cfg *cfgpkg.Config) *Client {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: cfg.Stripe.Timeout},
	})
	return &Client{
		api:           client.New(cfg.Stripe.SecretKey, backends),
		webhookSecret: cfg.Stripe.WebhookSecret,
	}
}

// NewWithBackends builds a client against custom backends, e.g. a local stub.
func NewWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	return &Client{api: client.New(secretKey, backends), webhookSecret: webhookSecret}
}

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
// Any failure wraps apperr.ErrSignatureVerification.
func (c *Client) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if c.webhookSecret == "" {
		return stripe.Event{}, fmt.Errorf("%w: webhook secret not configured", apperr.ErrSignatureVerification)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", apperr.ErrSignatureVerification, err)
	}
	return event, nil
}

// GetSubscription fetches a subscription with its items and prices.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("items.data.price")
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, wrapAPIError(ctx, err)
	}
	return sub, nil
}

type CheckoutInput struct {
	UserID     string
	Email      string
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession starts a subscription checkout. The user id travels as
// client_reference_id and as metadata so the completion event can be matched.
func (c *Client) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(in.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(in.SuccessURL),
		CancelURL:  stripe.String(in.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("user_id", in.UserID)
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	} else if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapAPIError(ctx, err)
	}
	return sess, nil
}

func wrapAPIError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: stripe: %v", apperr.ErrExternalServiceTimeout, err)
	}
	return fmt.Errorf("%w: stripe: %v", apperr.ErrExternalService, err)
}

// SignatureHeader computes a v1 Stripe-Signature header for payload. It is
// used to replay captured events against a local endpoint.
func SignatureHeader(payload []byte, secret string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + unix + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
