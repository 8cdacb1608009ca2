package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
)

// Validate checks the configuration. Outside dry-run the board settings
// are required too. Folder existence is checked by the orchestrator, which
// owns those preconditions.
func (c Config) Validate(dryRun bool) error {
	errs := []error{
		criterio.Run("anthropic_api_key", c.AnthropicAPIKey, required),
		criterio.Run("model", c.Model, required),
		criterio.Run("intake_folder", c.DropDir, required),
		criterio.Run("processed_folder", c.ProcessedDir, required),
		criterio.Run("failed_folder", c.FailedDir, required),
		criterio.Run("prompt_file", c.PromptFile, required),
		c.validateLimits(),
		c.validatePatterns(),
	}
	if !dryRun {
		errs = append(errs,
			criterio.Run("gitlab_url", c.GitLabURL, httpURL),
			criterio.Run("gitlab_project", c.GitLabProject, required),
		)
	}
	if c.DiscordBacklogWebhook != "" {
		errs = append(errs, criterio.Run("discord_backlog_webhook", c.DiscordBacklogWebhook, httpURL))
	}
	return criterio.ValidateStruct(errs...)
}

func (c Config) validateLimits() error {
	var errs criterio.FieldErrorsBuilder
	if c.OracleTimeout <= 0 {
		errs = errs.Append("oracle_timeout", fmt.Errorf("must be positive (got %v)", c.OracleTimeout))
	}
	if c.BoardTimeout <= 0 {
		errs = errs.Append("board_timeout", fmt.Errorf("must be positive (got %v)", c.BoardTimeout))
	}
	if c.ExtractionMaxTokens <= 0 {
		errs = errs.Append("extraction_max_tokens", fmt.Errorf("must be positive (got %d)", c.ExtractionMaxTokens))
	}
	if c.PreviewLength <= 0 {
		errs = errs.Append("preview_length", fmt.Errorf("must be positive (got %d)", c.PreviewLength))
	}
	if c.BoardRequestsPerSecond < 0 {
		errs = errs.Append("board_requests_per_second", fmt.Errorf("cannot be negative (got %v)", c.BoardRequestsPerSecond))
	}
	return errs.ToError()
}

func (c Config) validatePatterns() error {
	if len(c.Patterns) == 0 {
		return criterio.NewFieldErrors("patterns", fmt.Errorf("at least one pattern is required"))
	}
	var errs criterio.FieldErrorsBuilder
	for i, p := range c.Patterns {
		if !doublestar.ValidatePattern(p) {
			errs = errs.Append(fmt.Sprintf("patterns[%d]", i), fmt.Errorf("invalid glob %q", p))
		}
	}
	return errs.ToError()
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("is required")
	}
	return nil
}

func httpURL(v string) error {
	if v == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(v)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must be an http(s) URL")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
