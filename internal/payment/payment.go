// Package payment wraps the Stripe API surface this service uses: creating
// and retrieving Checkout Sessions and verifying webhook signatures.
package payment

import (
	"context"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"
)

// Client is a thin wrapper over the Stripe client. Constructed once at
// process start and reused for the process lifetime.
type Client struct {
	sc            *stripe.Client
	webhookSecret string
}

// NewClient constructs a Client from the Stripe secret key and the webhook
// endpoint's signing secret.
func NewClient(secretKey, webhookSecret string) *Client {
	return &Client{
		sc:            stripe.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

// CreateCheckoutSession opens a new hosted Checkout Session. Exactly one
// remote session is created per call; duplicate submissions create duplicate
// sessions, which is acceptable because a user only completes one.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	return c.sc.V1CheckoutSessions.Create(ctx, params)
}

// RetrieveCheckoutSession fetches an existing Checkout Session by id.
func (c *Client) RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	return c.sc.V1CheckoutSessions.Retrieve(ctx, id, nil)
}

// VerifyEvent checks the Stripe-Signature header against the configured
// signing secret and parses the event payload.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.webhookSecret)
}
