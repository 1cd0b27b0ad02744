// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC to prevent timezone drift between workers.
//  2. Load a .env file via godotenv (non-fatal if absent, local convenience).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load builds and validates the process configuration from the environment.
// It is called exactly once per cold start; errors are fatal to the process.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Best effort: absent .env files are the normal case outside local runs.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}
