// Package service implements the registration business logic: checkout
// initiation, webhook completion processing, and manual reprocessing.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"

	"github.com/acroflow/workshop-registration/internal/model"
	"github.com/acroflow/workshop-registration/internal/pricing"
)

// ErrValidation marks bad or missing input. Handlers map it to 400.
var ErrValidation = errors.New("invalid request")

// ErrNotPaid is returned when a reprocess target is not in the paid state.
var ErrNotPaid = errors.New("checkout session has not been paid")

// paymentStatusPaid is the fixed ledger payment status for completed sessions.
const paymentStatusPaid = "Paid"

var validate *validator.Validate = validator.New()

// PaymentProvider is the slice of the payment API the service depends on.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	VerifyEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

// LedgerAppender writes one registration row per call.
type LedgerAppender interface {
	AppendRow(ctx context.Context, row model.LedgerRow) error
}

// RegistrationService orchestrates the checkout → webhook → ledger flow.
type RegistrationService struct {
	event    *model.EventConfig
	payments PaymentProvider
	ledger   LedgerAppender
	baseURL  string
	now      func() time.Time
}

// NewRegistrationService constructs a RegistrationService with its
// dependencies.
func NewRegistrationService(event *model.EventConfig, payments PaymentProvider, ledger LedgerAppender, baseURL string) *RegistrationService {
	return &RegistrationService{
		event:    event,
		payments: payments,
		ledger:   ledger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// InitiateCheckout validates the submission, prices it, and opens a hosted
// Checkout Session. It returns the payment page URL for redirect.
//
// The session summary and the amount are computed server-side and frozen into
// the session metadata, so the ledger later reflects the catalog as it
// existed at submission time.
func (s *RegistrationService) InitiateCheckout(ctx context.Context, req model.CheckoutRequest) (string, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)

	if err := validate.Struct(&req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	for _, id := range req.SelectedSessions {
		if _, ok := s.event.Session(id); !ok {
			return "", fmt.Errorf("%w: unknown session %q", ErrValidation, id)
		}
	}

	price := pricing.Compute(req.SelectedSessions, s.now(), s.event.Pricing)
	details := s.event.SessionDetails(req.SelectedSessions)
	meta := model.CheckoutMetadata{
		FullName:         req.FullName,
		Email:            req.Email,
		AcroRole:         req.AcroRole,
		SelectedSessions: req.SelectedSessions,
		SessionDetails:   details,
	}

	params := &stripe.CheckoutSessionCreateParams{
		ClientReferenceID:  stripe.String("reg-" + uuid.New().String()),
		CustomerEmail:      stripe.String(req.Email),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.baseURL + "/success.html?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.baseURL + "/cancel.html"),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(s.event.Currency),
					UnitAmount: stripe.Int64(price.ActualPrice * 100),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name:        stripe.String(s.event.ProductName),
						Description: stripe.String(details),
					},
				},
			},
		},
		Metadata: meta.ToMap(),
	}

	cs, err := s.payments.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return cs.URL, nil
}

// VerifyWebhook checks the event signature against the configured secret.
func (s *RegistrationService) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	return s.payments.VerifyEvent(payload, sigHeader)
}

// ProcessCompletedCheckout records a completed, paid checkout session in the
// ledger. Missing required metadata is a validation error: the payment is
// already captured, so the registration has to be recovered manually.
func (s *RegistrationService) ProcessCompletedCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	meta, err := model.MetadataFromMap(cs.Metadata)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.ledger.AppendRow(ctx, s.ledgerRow(meta, cs)); err != nil {
		return fmt.Errorf("record registration for session %s: %w", cs.ID, err)
	}
	return nil
}

// Reprocess re-fetches a checkout session by id and replays it into the
// ledger. Used by operators when the webhook path failed. Repeated
// invocations for the same session append duplicate rows; that is accepted
// operator risk.
func (s *RegistrationService) Reprocess(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrValidation)
	}

	cs, err := s.payments.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return ErrNotPaid
	}

	meta := model.MetadataFromMapLenient(cs.Metadata)
	if meta.Email == "" {
		meta.Email = cs.CustomerEmail
	}

	// Unlike the webhook path, ledger failures here surface to the operator.
	return s.ledger.AppendRow(ctx, s.ledgerRow(meta, cs))
}

func (s *RegistrationService) ledgerRow(meta model.CheckoutMetadata, cs *stripe.CheckoutSession) model.LedgerRow {
	return model.LedgerRow{
		Timestamp:        s.now(),
		FullName:         meta.FullName,
		Email:            meta.Email,
		AcroRole:         meta.AcroRole,
		SelectedSessions: meta.SelectedSessions,
		SessionDetails:   meta.SessionDetails,
		TotalAmount:      float64(cs.AmountTotal) / 100,
		PaymentStatus:    paymentStatusPaid,
		StripeSessionID:  cs.ID,
	}
}
