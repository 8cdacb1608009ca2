// Package config loads the immutable run configuration.
//
// Precedence, lowest first: defaults, YAML file, .env file, INTAKE_*
// environment variables. The .env file never overrides variables that are
// already set in the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when present and no --config flag is given.
const DefaultConfigFile = "intake.yaml"

// Config holds everything a run needs. It is built once at startup and
// passed by value into constructors.
type Config struct {
	// Oracle
	AnthropicAPIKey     string        `yaml:"anthropic_api_key"`
	Model               string        `yaml:"model"`
	OracleTimeout       time.Duration `yaml:"oracle_timeout"`
	ExtractionMaxTokens int           `yaml:"extraction_max_tokens"`

	// Board
	GitLabURL              string        `yaml:"gitlab_url"`
	GitLabProject          string        `yaml:"gitlab_project"`
	GitLabToken            string        `yaml:"gitlab_token"`
	BoardTimeout           time.Duration `yaml:"board_timeout"`
	BoardRequestsPerSecond float64       `yaml:"board_requests_per_second"`
	FailureLabel           string        `yaml:"failure_label"`

	// Folders and prompts
	DropDir         string   `yaml:"intake_folder"`
	ProcessedDir    string   `yaml:"processed_folder"`
	FailedDir       string   `yaml:"failed_folder"`
	PromptFile      string   `yaml:"prompt_file"`
	QuickPromptFile string   `yaml:"quick_prompt_file"`
	Patterns        []string `yaml:"patterns"`
	PreviewLength   int      `yaml:"preview_length"`

	// Chat source
	DiscordBotToken       string `yaml:"discord_bot_token"`
	DiscordChannelID      string `yaml:"discord_channel_id"`
	DiscordBacklogWebhook string `yaml:"discord_backlog_webhook"`
}

// Default returns the default configuration with all paths under baseDir.
func Default(baseDir string) Config {
	return Config{
		Model:                  "claude-haiku-4-5-20251001",
		OracleTimeout:          120 * time.Second,
		ExtractionMaxTokens:    4096,
		GitLabURL:              "https://gitlab.com",
		BoardTimeout:           15 * time.Second,
		BoardRequestsPerSecond: 5,
		FailureLabel:           "Intake-Failed",
		DropDir:                filepath.Join(baseDir, "data", "_intake"),
		ProcessedDir:           filepath.Join(baseDir, "data", "_processed"),
		FailedDir:              filepath.Join(baseDir, "data", "_failed"),
		PromptFile:             filepath.Join(baseDir, "prompts", "extraction.md"),
		QuickPromptFile:        filepath.Join(baseDir, "prompts", "quick-idea.md"),
		Patterns:               []string{"*.txt", "*.md", "*.html"},
		PreviewLength:          200,
	}
}

// LoadOptions selects the files Load reads.
type LoadOptions struct {
	BaseDir    string // root for default paths (default: working directory)
	ConfigFile string // YAML file; empty means DefaultConfigFile if present
	EnvFile    string // .env file; empty means <BaseDir>/.env if present
}

// Load builds a Config from defaults, the YAML file, the .env file and the
// environment. It does not validate; call Validate.
func Load(opts LoadOptions) (Config, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("get working directory: %w", err)
		}
		baseDir = wd
	}
	cfg := Default(baseDir)

	configFile, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		configFile = filepath.Join(baseDir, DefaultConfigFile)
	}
	if err := loadYAML(configFile, explicit, &cfg); err != nil {
		return Config{}, err
	}

	envFile, explicit := opts.EnvFile, opts.EnvFile != ""
	if !explicit {
		envFile = filepath.Join(baseDir, ".env")
	}
	if err := loadDotEnv(envFile, explicit); err != nil {
		return Config{}, err
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	cfg.GitLabURL = strings.TrimRight(cfg.GitLabURL, "/")
	return cfg, nil
}

func loadYAML(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadDotEnv(path string, required bool) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg from INTAKE_* variables.
func applyEnv(cfg *Config) error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"INTAKE_ANTHROPIC_API_KEY", &cfg.AnthropicAPIKey},
		{"INTAKE_MODEL", &cfg.Model},
		{"INTAKE_GITLAB_URL", &cfg.GitLabURL},
		{"INTAKE_GITLAB_PROJECT", &cfg.GitLabProject},
		{"INTAKE_GITLAB_PAT", &cfg.GitLabToken},
		{"INTAKE_FAILURE_LABEL", &cfg.FailureLabel},
		{"INTAKE_FOLDER", &cfg.DropDir},
		{"INTAKE_PROCESSED_FOLDER", &cfg.ProcessedDir},
		{"INTAKE_FAILED_FOLDER", &cfg.FailedDir},
		{"INTAKE_PROMPT_FILE", &cfg.PromptFile},
		{"INTAKE_QUICK_PROMPT_FILE", &cfg.QuickPromptFile},
		{"INTAKE_DISCORD_BOT_TOKEN", &cfg.DiscordBotToken},
		{"INTAKE_DISCORD_CHANNEL_ID", &cfg.DiscordChannelID},
		{"INTAKE_DISCORD_BACKLOG_WEBHOOK", &cfg.DiscordBacklogWebhook},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dest = v
		}
	}

	if v := os.Getenv("INTAKE_PATTERNS"); v != "" {
		cfg.Patterns = splitList(v)
	}
	if err := parseEnvInt("INTAKE_EXTRACTION_MAX_TOKENS", &cfg.ExtractionMaxTokens); err != nil {
		return err
	}
	if err := parseEnvInt("INTAKE_PREVIEW_LENGTH", &cfg.PreviewLength); err != nil {
		return err
	}
	if err := parseEnvFloat("INTAKE_BOARD_REQUESTS_PER_SECOND", &cfg.BoardRequestsPerSecond); err != nil {
		return err
	}
	if err := parseEnvDuration("INTAKE_ORACLE_TIMEOUT_SECS", &cfg.OracleTimeout, time.Second); err != nil {
		return err
	}
	if err := parseEnvDuration("INTAKE_BOARD_TIMEOUT_SECS", &cfg.BoardTimeout, time.Second); err != nil {
		return err
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
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

func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration reads an integer count of unit.
func parseEnvDuration(key string, dest *time.Duration, unit time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * unit
	return nil
}
