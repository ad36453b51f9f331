// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/stripe/stripe-go/v83"

	"github.com/acroflow/workshop-registration/internal/model"
	"github.com/acroflow/workshop-registration/internal/service"
)

// Stripe webhook payloads are small; anything larger is not ours.
const maxWebhookBodyBytes = int64(65536)

// RegistrationHandler holds all HTTP handlers for the registration API.
type RegistrationHandler struct {
	svc *service.RegistrationService
}

// NewRegistrationHandler constructs a RegistrationHandler.
func NewRegistrationHandler(svc *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateCheckout handles POST /api/checkout
// Validates the submission and returns the hosted payment page URL.
func (h *RegistrationHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	url, err := h.svc.InitiateCheckout(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("✗ checkout failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.CheckoutResponse{URL: url})
}

// StripeWebhook handles POST /api/webhook
// Verifies the event signature and records completed checkout sessions in the
// ledger. All other event kinds are acknowledged and ignored.
func (h *RegistrationHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read request body: "+err.Error())
		return
	}

	event, err := h.svc.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Printf("✗ webhook signature verification failed: %v", err)
		writeError(w, http.StatusBadRequest, "webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			writeError(w, http.StatusBadRequest, "malformed checkout session payload")
			return
		}
		if err := h.svc.ProcessCompletedCheckout(r.Context(), &cs); err != nil {
			if errors.Is(err, service.ErrValidation) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			// The payment is already captured. Returning an error would make
			// Stripe redeliver the event; instead log for manual reprocessing
			// and acknowledge the delivery.
			log.Printf("✗ ledger append failed for session %s: %v", cs.ID, err)
		} else {
			log.Printf("✓ registration recorded for session %s", cs.ID)
		}
	default:
		log.Printf("ignoring event type: %s", event.Type)
	}

	writeJSON(w, http.StatusOK, model.WebhookResponse{Received: true})
}

// Reprocess handles POST /api/admin/reprocess
// Operator-triggered replay of a paid checkout session into the ledger.
func (h *RegistrationHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	var req model.ReprocessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.svc.Reprocess(r.Context(), req.SessionID); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNotPaid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("✗ reprocess failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, model.ReprocessResponse{Success: true})
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
