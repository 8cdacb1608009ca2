// Package discord pulls messages from a Discord channel into the drop folder.
//
// Each non-empty message becomes discord-<id>.txt and is then deleted from
// the channel. The scrape is best-effort: the pipeline logs its error and
// goes on to process whatever is in the drop folder.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tcdz/intake/internal/types"
)

// DefaultAPIURL is the Discord REST base.
const DefaultAPIURL = "https://discord.com/api/v10"

// Config holds scraper configuration
type Config struct {
	BotToken  string
	ChannelID string
	DropDir   string
	APIURL    string        // default: DefaultAPIURL
	Limit     int           // messages per scrape (default: 50, max 100)
	Timeout   time.Duration // per-request timeout (default: 15s)
	// DeletesPerSecond paces message deletion (default: 4). Discord rate
	// limits deletes per channel.
	DeletesPerSecond float64
}

// Enabled reports whether both the bot token and channel are configured.
func (c Config) Enabled() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// Scraper moves channel messages into the drop folder.
type Scraper struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type message struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NewScraper creates a scraper. A scraper built from a Config that is not
// Enabled does nothing.
func NewScraper(cfg Config, logger zerolog.Logger) *Scraper {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Limit <= 0 || cfg.Limit > 100 {
		cfg.Limit = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.DeletesPerSecond <= 0 {
		cfg.DeletesPerSecond = 4
	}

	return &Scraper{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.DeletesPerSecond), 1),
		logger:  logger.With().Str("component", "discord").Logger(),
	}
}

// Scrape writes each message to the drop folder and deletes it from the
// channel. It returns the number of files written. A message whose delete
// fails still counts: its file exists and will be processed, and the
// message will come back as a duplicate on the next scrape.
func (s *Scraper) Scrape(ctx context.Context) (int, error) {
	if !s.cfg.Enabled() {
		return 0, nil
	}

	messages, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(s.cfg.DropDir, 0o755); err != nil {
		return 0, fmt.Errorf("create drop folder: %w", err)
	}

	scraped := 0
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		id := msg.ID
		if id == "" {
			id = "unknown"
		}

		path := filepath.Join(s.cfg.DropDir, types.ChatPrefix+id+".txt")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			s.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("could not write message file")
			continue
		}
		scraped++

		if err := s.delete(ctx, id); err != nil {
			s.logger.Warn().Err(err).Str("message_id", id).Msg("could not delete message")
			continue
		}
		s.logger.Info().Str("message_id", id).Msg("scraped and deleted message")
	}

	return scraped, nil
}

func (s *Scraper) messagesURL() string {
	return s.cfg.APIURL + "/channels/" + s.cfg.ChannelID + "/messages"
}

func (s *Scraper) fetch(ctx context.Context) ([]message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.messagesURL()+"?limit="+strconv.Itoa(s.cfg.Limit), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+s.cfg.BotToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discord API returned %s fetching messages", resp.Status)
	}

	var messages []message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return messages, nil
}

func (s *Scraper) delete(ctx context.Context, id string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.messagesURL()+"/"+id, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+s.cfg.BotToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned %s deleting message", resp.Status)
	}
	return nil
}
