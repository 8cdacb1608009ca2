package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tcdz/intake/internal/types"
)

const (
	// PageSize is the number of items requested per list page.
	PageSize = 100

	// maxPages stops a listing loop against a server that ignores paging.
	maxPages = 200

	// DefaultFailureLabel tags failure-notice items on the board.
	DefaultFailureLabel = "Intake-Failed"
)

// ErrUnexpectedStatus wraps any non-success HTTP status from the board.
var ErrUnexpectedStatus = errors.New("unexpected status from board")

// Config holds GitLab gateway configuration
type Config struct {
	BaseURL           string        // e.g. https://gitlab.example.com
	Project           string        // project path, e.g. group/project
	Token             string        // personal access token
	Timeout           time.Duration // per-request timeout (default: 15s)
	RequestsPerSecond float64       // request pacing, 0 = unlimited (default: 5)
	FailureLabel      string        // label for failure notices (default: Intake-Failed)
}

// DefaultConfig returns gateway defaults. BaseURL, Project and Token must
// still be set.
func DefaultConfig() Config {
	return Config{
		Timeout:           15 * time.Second,
		RequestsPerSecond: 5,
		FailureLabel:      DefaultFailureLabel,
	}
}

// GitLab talks to the GitLab v4 issues API of a single project.
type GitLab struct {
	cfg      Config
	client   *http.Client
	limiter  *rate.Limiter
	notifier Notifier
	logger   zerolog.Logger
}

// NewGitLab creates a gateway. notifier may be nil.
func NewGitLab(cfg Config, notifier Notifier, logger zerolog.Logger) (*GitLab, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gitlab base URL is required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("gitlab project is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.FailureLabel == "" {
		cfg.FailureLabel = DefaultFailureLabel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &GitLab{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		notifier: notifier,
		logger:   logger.With().Str("component", "gitlab").Logger(),
	}, nil
}

func (g *GitLab) issuesURL() string {
	return g.cfg.BaseURL + "/api/v4/projects/" + url.PathEscape(g.cfg.Project) + "/issues"
}

type apiIssue struct {
	IID    int      `json:"iid"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Labels      string `json:"labels"`
}

// ListOpen pages through all open issues until an empty page.
//
// A failed page ends the listing: the items fetched so far are returned
// together with the error, and callers are expected to carry on with the
// partial snapshot.
func (g *GitLab) ListOpen(ctx context.Context) ([]types.BoardItem, error) {
	var items []types.BoardItem

	for page := 1; page <= maxPages; page++ {
		batch, err := g.listPage(ctx, page)
		if err != nil {
			g.logger.Warn().Err(err).Int("page", page).Int("fetched", len(items)).Msg("could not fetch issues page, snapshot truncated")
			return items, fmt.Errorf("list page %d: %w", page, err)
		}
		if len(batch) == 0 {
			return items, nil
		}
		for _, is := range batch {
			items = append(items, types.BoardItem{IID: is.IID, Title: is.Title, Labels: is.Labels})
		}
	}

	g.logger.Warn().Int("pages", maxPages).Msg("stopped listing at page limit")
	return items, nil
}

func (g *GitLab) listPage(ctx context.Context, page int) ([]apiIssue, error) {
	q := url.Values{}
	q.Set("state", "opened")
	q.Set("per_page", strconv.Itoa(PageSize))
	q.Set("page", strconv.Itoa(page))

	resp, err := g.do(ctx, http.MethodGet, g.issuesURL()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var batch []apiIssue
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode issues: %w", err)
	}
	return batch, nil
}

// Create posts one issue and returns its project-scoped iid.
// The backlog notifier runs after a successful create; its failure is only
// logged and never changes the result.
func (g *GitLab) Create(ctx context.Context, issue types.ExtractedIssue) (int, error) {
	iid, err := g.createIssue(ctx, createRequest{
		Title:       issue.Title,
		Description: issue.Description,
		Labels:      issue.Label,
	})
	if err != nil {
		return 0, err
	}

	g.logger.Info().Int("iid", iid).Str("title", issue.Title).Msg("created issue")
	g.notify(ctx, issue.Title, iid)
	return iid, nil
}

// PostFailureNotice files a visible board item saying that nothing could be
// parsed from filename. preview is a short excerpt of the oracle reply.
func (g *GitLab) PostFailureNotice(ctx context.Context, filename, preview string) error {
	iid, err := g.createIssue(ctx, createRequest{
		Title:       FailureNoticeTitle(filename),
		Description: FailureNoticeBody(filename, preview),
		Labels:      g.cfg.FailureLabel,
	})
	if err != nil {
		return fmt.Errorf("post failure notice: %w", err)
	}
	g.logger.Info().Int("iid", iid).Str("file", filename).Msg("posted failure notice")
	return nil
}

// FailureNoticeTitle is the title of the failure-notice item for filename.
func FailureNoticeTitle(filename string) string {
	return "Intake parse failure: " + filename
}

// FailureNoticeBody is the description of the failure-notice item.
func FailureNoticeBody(filename, preview string) string {
	return fmt.Sprintf("The intake pipeline could not extract any GITLAB ISSUE blocks from `%s`.\n\n"+
		"**Response preview:**\n```\n%s\n```\n\n"+
		"The file has been moved to the failed folder. Review and re-process manually if needed.",
		filename, preview)
}

func (g *GitLab) createIssue(ctx context.Context, payload createRequest) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal issue: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPost, g.issuesURL(), body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return 0, statusError(resp)
	}

	var created apiIssue
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		// Created but unreadable: the side effect happened, report success.
		g.logger.Warn().Err(err).Str("title", payload.Title).Msg("could not decode created issue")
		return 0, nil
	}
	return created.IID, nil
}

func (g *GitLab) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", g.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

func (g *GitLab) notify(ctx context.Context, title string, iid int) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, title, iid); err != nil {
		g.logger.Warn().Err(err).Int("iid", iid).Msg("could not notify backlog")
	}
}

func statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("%w: %s: %s", ErrUnexpectedStatus, resp.Status, strings.TrimSpace(string(payload)))
}
