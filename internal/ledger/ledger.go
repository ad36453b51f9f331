// Package ledger appends completed registrations to a Google Sheets
// spreadsheet, the external system of record for this service.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/acroflow/workshop-registration/internal/model"
)

// Sentinel errors let operators tell configuration, access, and target
// problems apart without reading logs line by line.
var (
	ErrNotConfigured       = errors.New("ledger is not configured")
	ErrPermissionDenied    = errors.New("ledger access denied: share the spreadsheet with the service account")
	ErrSpreadsheetNotFound = errors.New("ledger spreadsheet not found")
)

// appendRange matches the persisted sheet layout: timestamp, fullName, email,
// acroRole, sessions, sessionDetails, totalAmount, paymentStatus,
// paymentSessionId.
const appendRange = "Sheet1!A:I"

// Config holds the service-account credentials and the target spreadsheet.
type Config struct {
	ServiceAccountEmail string
	PrivateKey          string
	SpreadsheetID       string
}

func (c Config) validate() error {
	switch {
	case c.ServiceAccountEmail == "":
		return fmt.Errorf("%w: GOOGLE_SERVICE_ACCOUNT_EMAIL is not set", ErrNotConfigured)
	case c.PrivateKey == "":
		return fmt.Errorf("%w: GOOGLE_PRIVATE_KEY is not set", ErrNotConfigured)
	case c.SpreadsheetID == "":
		return fmt.Errorf("%w: GOOGLE_SHEETS_SHEET_ID is not set", ErrNotConfigured)
	}
	return nil
}

// Client appends rows to the configured spreadsheet. The Client itself is
// constructed once at the composition root and injected; the underlying
// Sheets service initializes on first use and is then held for the process
// lifetime. A failed initialization does not latch, so a later call retries.
type Client struct {
	cfg Config

	mu  sync.Mutex
	svc *sheets.Service
}

// NewClient constructs a Client. Credentials are validated when a row is
// appended, not here, so the service can still serve checkouts and webhooks
// with an unconfigured ledger.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// AppendRow writes one registration row. Each call is one independent append:
// no transactionality, no idempotency key, no locking.
func (c *Client) AppendRow(ctx context.Context, row model.LedgerRow) error {
	svc, err := c.service()
	if err != nil {
		return err
	}

	vr := &sheets.ValueRange{
		Values: [][]interface{}{rowValues(row)},
	}
	_, err = svc.Spreadsheets.Values.Append(c.cfg.SpreadsheetID, appendRange, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) service() (*sheets.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.svc != nil {
		return c.svc, nil
	}
	if err := c.cfg.validate(); err != nil {
		return nil, err
	}

	conf := &jwt.Config{
		Email:      c.cfg.ServiceAccountEmail,
		PrivateKey: []byte(c.cfg.PrivateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	// The token-refreshing HTTP client outlives any single request, so it is
	// built on the background context rather than the caller's.
	svc, err := sheets.NewService(context.Background(), option.WithHTTPClient(conf.Client(context.Background())))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	c.svc = svc
	return c.svc, nil
}

func rowValues(row model.LedgerRow) []interface{} {
	return []interface{}{
		row.Timestamp.UTC().Format(time.RFC3339),
		row.FullName,
		row.Email,
		row.AcroRole,
		strings.Join(row.SelectedSessions, ", "),
		row.SessionDetails,
		row.TotalAmount,
		row.PaymentStatus,
		row.StripeSessionID,
	}
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrSpreadsheetNotFound, err)
		}
	}
	return fmt.Errorf("append ledger row: %w", err)
}
