package deduplication

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the duplicate filter
type Config struct {
	// Enabled turns the oracle check on. When false every candidate is kept.
	// Default: true
	Enabled bool

	// MaxTokens bounds the verdict reply. One short line per candidate.
	// Default: 1024
	MaxTokens int

	// MaxExisting caps how many board items are listed in the prompt.
	// The highest iids (most recently created) are kept.
	// 0 means no cap. Default: 500
	MaxExisting int
}

// DefaultConfig returns the default duplicate filter configuration
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		MaxTokens:   1024,
		MaxExisting: 500,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive (got %d)", c.MaxTokens)
	}
	if c.MaxTokens > 8192 {
		return fmt.Errorf("max_tokens too large (got %d, max 8192)", c.MaxTokens)
	}
	if c.MaxExisting < 0 {
		return fmt.Errorf("max_existing cannot be negative (got %d)", c.MaxExisting)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - INTAKE_DEDUP_ENABLED: Run the oracle duplicate check (default: true)
//   - INTAKE_DEDUP_MAX_TOKENS: Token budget for the verdict reply (default: 1024)
//   - INTAKE_DEDUP_MAX_EXISTING: Board items listed in the prompt, 0 = all (default: 500)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvBool("INTAKE_DEDUP_ENABLED", &cfg.Enabled); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("INTAKE_DEDUP_MAX_TOKENS", &cfg.MaxTokens); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("INTAKE_DEDUP_MAX_EXISTING", &cfg.MaxExisting); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
