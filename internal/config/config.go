// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mbd888/bridgegate/internal/validation"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Access control
	OwnerAddress      string   // Gate owner, required
	AssessorAddress   string   // Initial trusted assessor (optional)
	GuardianAddresses []string // Initial guardian set (optional)

	// Admission settings
	MaxTransferLimit uint64 // Ceiling the global limit recovers to

	// Security
	RateLimitRPS  int
	SignalTimeout int // Seconds to wait on observer deliveries

	// Observability
	OTLPEndpoint string
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultMaxTransferLimit = 10000
	DefaultRateLimit        = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", DefaultPort),
		Env:               getEnv("ENV", DefaultEnv),
		LogLevel:          getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:       os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		OwnerAddress:      os.Getenv("OWNER_ADDRESS"),
		AssessorAddress:   os.Getenv("ASSESSOR_ADDRESS"),
		GuardianAddresses: getEnvList("GUARDIAN_ADDRESSES"),
		MaxTransferLimit:  getEnvUint64("MAX_TRANSFER_LIMIT", DefaultMaxTransferLimit),
		RateLimitRPS:      int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		SignalTimeout:     int(getEnvInt64("SIGNAL_TIMEOUT", 30)),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.OwnerAddress == "" {
		return fmt.Errorf("OWNER_ADDRESS is required")
	}
	if !validation.IsValidAddress(c.OwnerAddress) {
		return fmt.Errorf("OWNER_ADDRESS must be a valid account address")
	}
	if c.AssessorAddress != "" && !validation.IsValidAddress(c.AssessorAddress) {
		return fmt.Errorf("ASSESSOR_ADDRESS must be a valid account address")
	}
	for _, g := range c.GuardianAddresses {
		if !validation.IsValidAddress(g) {
			return fmt.Errorf("GUARDIAN_ADDRESSES contains invalid address %q", g)
		}
	}
	if c.MaxTransferLimit == 0 {
		return fmt.Errorf("MAX_TRANSFER_LIMIT must be greater than zero")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvList parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
