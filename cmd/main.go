// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"

	"github.com/acroflow/workshop-registration/internal/config"
	"github.com/acroflow/workshop-registration/internal/handler"
	"github.com/acroflow/workshop-registration/internal/ledger"
	"github.com/acroflow/workshop-registration/internal/payment"
	"github.com/acroflow/workshop-registration/internal/service"
)

func main() {
	cfg := config.Load()
	if cfg.StripeSecretKey == "" {
		log.Fatal("STRIPE_SECRET_KEY is not set")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Println("⚠ STRIPE_WEBHOOK_SECRET is not set – webhook deliveries will be rejected")
	}

	// ── 1. Load the event definition (catalog + pricing) ─────────────────
	event, err := config.LoadEvent(cfg.EventConfigPath)
	if err != nil {
		log.Fatalf("event config: %v", err)
	}
	log.Printf("✓ Loaded %q: %d sessions, currency %s", event.ProductName, len(event.Sessions), event.Currency)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	// External clients are constructed once here and injected; the ledger's
	// network handle initializes on first append.
	payments := payment.NewClient(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	ledgerClient := ledger.NewClient(ledger.Config{
		ServiceAccountEmail: cfg.GoogleServiceAccountEmail,
		PrivateKey:          cfg.GooglePrivateKey,
		SpreadsheetID:       cfg.SpreadsheetID,
	})
	svc := service.NewRegistrationService(event, payments, ledgerClient, cfg.BaseURL)
	regHandler := handler.NewRegistrationHandler(svc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger)          // structured access log
	r.Use(handler.CORS)            // permissive CORS for the sign-up form

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", regHandler.CreateCheckout)
		r.Post("/webhook", regHandler.StripeWebhook)
		r.Post("/admin/reprocess", regHandler.Reprocess)
	})

	// Static HTML – serve the web/ directory at the root.
	// index.html, success.html, cancel.html, admin.html
	webFS := http.Dir("./web")
	r.Handle("/*", http.FileServer(webFS))

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
