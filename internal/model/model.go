// Package model defines the core domain types for the workshop registration
// system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Session represents one bookable workshop slot in the event catalog.
// The catalog is immutable for the lifetime of an event configuration.
type Session struct {
	ID          string `yaml:"id" json:"id"`
	Date        string `yaml:"date" json:"date"`
	Time        string `yaml:"time" json:"time"`
	Name        string `yaml:"name" json:"name"`
	TimeRange   string `yaml:"timeRange" json:"time_range"`
	Description string `yaml:"description" json:"description"`
	Prereqs     string `yaml:"prereqs" json:"prereqs"`
}

// PricingConfig holds the pricing tiers for one event.
type PricingConfig struct {
	EarlyBirdDeadline    time.Time `yaml:"earlyBirdDeadline"`
	EarlyBirdSingle      int64     `yaml:"earlyBirdSingle"`
	EarlyBirdFullWeekend int64     `yaml:"earlyBirdFullWeekend"`
	RegularSingle        int64     `yaml:"regularSingle"`
	RegularFullWeekend   int64     `yaml:"regularFullWeekend"`
	FullWeekendThreshold int       `yaml:"fullWeekendThreshold"`
}

// EventConfig is the injectable event definition: product name, currency,
// session catalog, and pricing. Loaded once at startup from YAML.
type EventConfig struct {
	ProductName string        `yaml:"productName"`
	Currency    string        `yaml:"currency"`
	Sessions    []Session     `yaml:"sessions"`
	Pricing     PricingConfig `yaml:"pricing"`
}

// Session looks up a catalog entry by id.
func (e *EventConfig) Session(id string) (Session, bool) {
	for _, s := range e.Sessions {
		if s.ID == id {
			return s, true
		}
	}
	return Session{}, false
}

// SessionDetails builds the human-readable "<date> <time>: <name>" summary for
// the given session ids, joined by ", ". Sessions appear in catalog order, not
// selection order, so the frozen payment metadata is deterministic.
func (e *EventConfig) SessionDetails(ids []string) string {
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	var parts []string
	for _, s := range e.Sessions {
		if selected[s.ID] {
			parts = append(parts, fmt.Sprintf("%s %s: %s", s.Date, s.Time, s.Name))
		}
	}
	return strings.Join(parts, ", ")
}

// Validate checks the catalog and pricing invariants. The price ordering
// checks guarantee that computed savings can never go negative.
func (e *EventConfig) Validate() error {
	if e.ProductName == "" {
		return fmt.Errorf("productName is required")
	}
	if e.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	if len(e.Sessions) == 0 {
		return fmt.Errorf("at least one session is required")
	}
	seen := make(map[string]bool, len(e.Sessions))
	for _, s := range e.Sessions {
		if s.ID == "" {
			return fmt.Errorf("session %q has an empty id", s.Name)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate session id %q", s.ID)
		}
		seen[s.ID] = true
	}

	p := e.Pricing
	if p.EarlyBirdDeadline.IsZero() {
		return fmt.Errorf("pricing.earlyBirdDeadline is required")
	}
	if p.FullWeekendThreshold <= 0 {
		return fmt.Errorf("pricing.fullWeekendThreshold must be positive")
	}
	if p.EarlyBirdSingle < 0 || p.EarlyBirdFullWeekend < 0 || p.RegularSingle < 0 || p.RegularFullWeekend < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	if p.EarlyBirdSingle > p.RegularSingle {
		return fmt.Errorf("early bird single price exceeds regular single price")
	}
	if p.EarlyBirdFullWeekend > p.RegularFullWeekend {
		return fmt.Errorf("early bird full weekend price exceeds regular full weekend price")
	}
	if p.RegularFullWeekend > int64(p.FullWeekendThreshold)*p.RegularSingle {
		return fmt.Errorf("full weekend bundle price exceeds %d single sessions", p.FullWeekendThreshold)
	}
	return nil
}

// PricingResult is the outcome of pricing a selected-session set at a given
// instant. Prices are in major currency units.
type PricingResult struct {
	SessionCount   int    `json:"session_count"`
	IsFullWeekend  bool   `json:"is_full_weekend"`
	IsEarlyBird    bool   `json:"is_early_bird"`
	ReferencePrice int64  `json:"reference_price"`
	ActualPrice    int64  `json:"actual_price"`
	Savings        int64  `json:"savings"`
	AppliedDeal    string `json:"applied_deal,omitempty"`
}

// CheckoutRequest is the payload for starting a payment checkout.
// SessionDetails and TotalAmount are accepted for wire compatibility with the
// sign-up form but recomputed server-side; the server values are
// authoritative.
type CheckoutRequest struct {
	FullName         string   `json:"fullName" validate:"required"`
	Email            string   `json:"email" validate:"required,email"`
	AcroRole         string   `json:"acroRole" validate:"required,oneof=Base Flyer"`
	SelectedSessions []string `json:"selectedSessions" validate:"required,min=1,dive,required"`
	SessionDetails   string   `json:"sessionDetails"`
	TotalAmount      int64    `json:"totalAmount"`
	Currency         string   `json:"currency"`
}

// CheckoutResponse carries the hosted payment page URL back to the form.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// ReprocessRequest is the payload for the admin recovery endpoint.
type ReprocessRequest struct {
	SessionID string `json:"sessionId"`
}

// ReprocessResponse acknowledges a successful manual replay.
type ReprocessResponse struct {
	Success bool `json:"success"`
}

// WebhookResponse acknowledges receipt of a payment provider event.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrIncompleteMetadata is returned when a paid checkout session is missing
// required registration metadata. The payment is already captured at that
// point, so this is a data-quality failure requiring manual recovery.
var ErrIncompleteMetadata = errors.New("checkout metadata missing required fields")

// CheckoutMetadata is the strongly-typed view of the flat string metadata map
// frozen into the payment session at submission time.
type CheckoutMetadata struct {
	FullName         string
	Email            string
	AcroRole         string
	SelectedSessions []string
	SessionDetails   string
}

// ToMap serializes the metadata into the flat key/value form the payment
// provider stores. Session ids are comma-joined.
func (m CheckoutMetadata) ToMap() map[string]string {
	return map[string]string{
		"fullName":         m.FullName,
		"email":            m.Email,
		"acroRole":         m.AcroRole,
		"selectedSessions": strings.Join(m.SelectedSessions, ","),
		"sessionDetails":   m.SessionDetails,
	}
}

// MetadataFromMap deserializes and validates payment session metadata.
// Missing fullName or email yields ErrIncompleteMetadata.
func MetadataFromMap(values map[string]string) (CheckoutMetadata, error) {
	m := MetadataFromMapLenient(values)
	var missing []string
	if m.FullName == "" {
		missing = append(missing, "fullName")
	}
	if m.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return CheckoutMetadata{}, fmt.Errorf("%w: %s", ErrIncompleteMetadata, strings.Join(missing, ", "))
	}
	return m, nil
}

// MetadataFromMapLenient deserializes metadata with empty fallbacks for any
// missing field. Used by the manual reprocess path, which accepts partial
// metadata rather than refusing to recover a paid registration.
func MetadataFromMapLenient(values map[string]string) CheckoutMetadata {
	m := CheckoutMetadata{
		FullName:       values["fullName"],
		Email:          values["email"],
		AcroRole:       values["acroRole"],
		SessionDetails: values["sessionDetails"],
	}
	if raw := values["selectedSessions"]; raw != "" {
		m.SelectedSessions = strings.Split(raw, ",")
	}
	return m
}

// LedgerRow is one append-only registration record. TotalAmount is in major
// currency units. The payment session id is the only dedup key available and
// uniqueness is not enforced anywhere in this system.
type LedgerRow struct {
	Timestamp        time.Time
	FullName         string
	Email            string
	AcroRole         string
	SelectedSessions []string
	SessionDetails   string
	TotalAmount      float64
	PaymentStatus    string
	StripeSessionID  string
}
