// Package config reads runtime configuration from the environment and the
// event definition from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/acroflow/workshop-registration/internal/model"
)

// Config holds process-level settings read from environment variables.
type Config struct {
	Port                      string
	BaseURL                   string
	StripeSecretKey           string
	StripeWebhookSecret       string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string
	SpreadsheetID             string
	EventConfigPath           string
}

// Load reads config from well-known environment variables, falling back to
// sensible local-development defaults where one exists. Secrets have no
// defaults. The Google private key commonly arrives with literal \n sequences
// from .env files; they are unescaped here.
func Load() Config {
	return Config{
		Port:                      getEnv("PORT", "8080"),
		BaseURL:                   strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		StripeSecretKey:           os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
		GoogleServiceAccountEmail: os.Getenv("GOOGLE_SERVICE_ACCOUNT_EMAIL"),
		GooglePrivateKey:          strings.ReplaceAll(os.Getenv("GOOGLE_PRIVATE_KEY"), `\n`, "\n"),
		SpreadsheetID:             os.Getenv("GOOGLE_SHEETS_SHEET_ID"),
		EventConfigPath:           getEnv("EVENT_CONFIG", "config/event.yaml"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadEvent reads and validates the event definition (catalog + pricing)
// from the given YAML file.
func LoadEvent(path string) (*model.EventConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading event config %s: %w", path, err)
	}

	var event model.EventConfig
	if err := yaml.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("parsing event config %s: %w", path, err)
	}
	if err := event.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event config %s: %w", path, err)
	}
	return &event, nil
}
