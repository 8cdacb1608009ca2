// Package intake drives one pass over the drop folder: extract, parse,
// deduplicate, publish, archive.
//
// A file leaves the drop folder only when everything extracted from it is
// confirmed published or confirmed duplicate, or when a parse-failure notice
// was posted for it. Any other outcome leaves it in place for the next run.
package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tcdz/intake/internal/parser"
	"github.com/tcdz/intake/internal/types"
)

var (
	// ErrDropFolder means the drop folder is missing or not a directory.
	ErrDropFolder = errors.New("drop folder unavailable")
	// ErrPromptTemplate means the extraction prompt could not be loaded.
	ErrPromptTemplate = errors.New("extraction prompt unavailable")
)

// Extractor turns raw brainstorm text into structured oracle output.
type Extractor interface {
	Extract(ctx context.Context, promptTemplate, fileText string) (string, error)
}

// Deduper drops candidates that duplicate the board snapshot. It never fails.
type Deduper interface {
	Filter(ctx context.Context, candidates []types.ExtractedIssue, existing []types.BoardItem) []types.ExtractedIssue
}

// Board is the backlog the orchestrator publishes to.
type Board interface {
	ListOpen(ctx context.Context) ([]types.BoardItem, error)
	Create(ctx context.Context, issue types.ExtractedIssue) (int, error)
	PostFailureNotice(ctx context.Context, filename, preview string) error
}

// Scraper pulls chat messages into the drop folder.
type Scraper interface {
	Scrape(ctx context.Context) (int, error)
}

// ParseFunc extracts issue blocks from oracle output.
type ParseFunc func(output string) []types.ExtractedIssue

// Config holds the folder layout and per-file limits.
type Config struct {
	DropDir         string
	ProcessedDir    string
	FailedDir       string
	PromptFile      string
	QuickPromptFile string   // optional, used for chat-origin files
	Patterns        []string // doublestar globs matched case-insensitively
	PreviewLength   int
}

// Deps are the collaborators of an Orchestrator. Parse, Scraper and Now
// are optional. Board may be nil for dry runs.
type Deps struct {
	Extractor Extractor
	Parse     ParseFunc
	Deduper   Deduper
	Board     Board
	Scraper   Scraper
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Orchestrator runs the intake pipeline. It processes one file at a time.
type Orchestrator struct {
	cfg       Config
	extractor Extractor
	parse     ParseFunc
	deduper   Deduper
	board     Board
	scraper   Scraper
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Deduper == nil {
		return nil, fmt.Errorf("deduper is required")
	}
	if len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("at least one file pattern is required")
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = DefaultPreviewLength
	}

	o := &Orchestrator{
		cfg:       cfg,
		extractor: deps.Extractor,
		parse:     deps.Parse,
		deduper:   deps.Deduper,
		board:     deps.Board,
		scraper:   deps.Scraper,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if o.parse == nil {
		o.parse = parser.Parse
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

type prompts struct {
	main  string
	quick string
}

func (p prompts) forOrigin(origin types.Origin) string {
	if origin == types.OriginChat && p.quick != "" {
		return p.quick
	}
	return p.main
}

// Run processes every matching file in the drop folder once. It returns an
// error only when a precondition fails, before any file is touched. Per-file
// failures are recorded in the report.
func (o *Orchestrator) Run(ctx context.Context, dryRun bool) (*types.RunReport, error) {
	if !dryRun && o.board == nil {
		return nil, fmt.Errorf("board is required outside dry run")
	}

	info, err := os.Stat(o.cfg.DropDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDropFolder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDropFolder, o.cfg.DropDir)
	}

	p, err := o.loadPrompts()
	if err != nil {
		return nil, err
	}

	report := &types.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: o.now(),
		DryRun:    dryRun,
		Files:     []types.FileResult{},
	}
	logger := o.logger.With().Str("run_id", report.RunID).Logger()
	if dryRun {
		logger.Info().Msg("dry run: nothing will be published or moved")
	}

	if o.scraper != nil {
		n, err := o.scraper.Scrape(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("chat scrape failed, continuing with drop folder")
		}
		if n > 0 {
			logger.Info().Int("messages", n).Msg("scraped chat messages")
		}
		report.Scraped = n
	}

	names, err := listFiles(o.cfg.DropDir, o.cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDropFolder, err)
	}
	if len(names) == 0 {
		logger.Info().Str("dir", o.cfg.DropDir).Msg("no intake files found")
		report.FinishedAt = o.now()
		return report, nil
	}
	logger.Info().Int("files", len(names)).Str("dir", o.cfg.DropDir).Msg("found intake files")

	var snapshot []types.BoardItem
	if !dryRun {
		snapshot, err = o.board.ListOpen(ctx)
		if err != nil {
			logger.Warn().Err(err).Int("fetched", len(snapshot)).Msg("board snapshot incomplete")
		}
		report.SnapshotSize = len(snapshot)
		logger.Info().Int("items", len(snapshot)).Msg("loaded board snapshot")
	}

	for _, name := range names {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("run interrupted, remaining files left in place")
			break
		}
		fileLogger := logger.With().Str("file", name).Logger()
		result := o.processFile(ctx, name, p, snapshot, dryRun, fileLogger)
		report.Files = append(report.Files, result)
	}

	report.FinishedAt = o.now()
	logger.Info().
		Int("processed", len(report.Files)).
		Int("archived", report.Archived()).
		Dur("duration", report.Duration()).
		Msg("run complete")
	return report, nil
}

func (o *Orchestrator) loadPrompts() (prompts, error) {
	tmpl, err := os.ReadFile(o.cfg.PromptFile)
	if err != nil {
		return prompts{}, fmt.Errorf("%w: %v", ErrPromptTemplate, err)
	}
	p := prompts{main: string(tmpl)}
	if p.main == "" {
		return prompts{}, fmt.Errorf("%w: %s is empty", ErrPromptTemplate, o.cfg.PromptFile)
	}
	o.logger.Debug().Int("chars", len(p.main)).Msg("loaded extraction prompt")

	if o.cfg.QuickPromptFile != "" {
		quick, err := os.ReadFile(o.cfg.QuickPromptFile)
		switch {
		case err == nil:
			p.quick = string(quick)
			o.logger.Debug().Int("chars", len(p.quick)).Msg("loaded quick-idea prompt")
		case errors.Is(err, os.ErrNotExist):
		default:
			o.logger.Warn().Err(err).Msg("quick-idea prompt unreadable, using extraction prompt")
		}
	}
	return p, nil
}

// processFile runs the pipeline for one file. Panics are recovered so one
// bad file never stops the run.
func (o *Orchestrator) processFile(ctx context.Context, name string, p prompts, snapshot []types.BoardItem, dryRun bool, logger zerolog.Logger) (result types.FileResult) {
	result = types.FileResult{Name: name}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("unexpected error, file left in place")
			result.Outcome = types.OutcomeUnexpectedError
			result.Error = fmt.Sprint(r)
		}
	}()

	logger.Info().Msg("processing")

	item, err := readItem(o.cfg.DropDir, name)
	if err != nil {
		logger.Error().Err(err).Str("step", "read").Msg("could not read file")
		result.Outcome = types.OutcomeReadError
		result.Error = err.Error()
		return result
	}
	if isBlank(item.Content) {
		logger.Info().Str("step", "read").Msg("skipping empty file")
		result.Outcome = types.OutcomeEmpty
		return result
	}

	output, err := o.extractor.Extract(ctx, p.forOrigin(item.Origin), item.Content)
	if err != nil {
		logger.Error().Err(err).Str("step", "extract").Msg("oracle call failed, file left in place")
		result.Outcome = types.OutcomeOracleError
		result.Error = err.Error()
		return result
	}

	issues := o.parse(output)
	result.Parsed = len(issues)
	if len(issues) == 0 {
		return o.handleUnparsed(ctx, item, output, dryRun, logger, result)
	}
	logger.Info().Str("step", "parse").Int("issues", len(issues)).Msg("parsed issues")

	if dryRun {
		for i, issue := range issues {
			logger.Info().
				Str("step", "publish").
				Int("n", i+1).
				Str("title", issue.Title).
				Str("label", issue.Label).
				Msg("dry run: would create")
		}
		result.Outcome = types.OutcomeDryRun
		return result
	}

	survivors := o.deduper.Filter(ctx, issues, snapshot)
	result.Duplicates = len(issues) - len(survivors)
	if len(survivors) == 0 {
		logger.Info().Str("step", "dedup").Msg("all issues are duplicates")
		result.Outcome = types.OutcomeAllDuplicates
		o.archiveInto(item, o.cfg.ProcessedDir, logger, &result)
		return result
	}
	if result.Duplicates > 0 {
		logger.Info().Str("step", "dedup").Int("remaining", len(survivors)).Msg("dropped duplicates")
	}

	for i, issue := range survivors {
		iid, err := o.board.Create(ctx, issue)
		if err != nil {
			logger.Error().Err(err).Str("step", "publish").Str("title", issue.Title).Msg("create failed")
			result.Failed++
			continue
		}
		logger.Info().
			Str("step", "publish").
			Int("n", i+1).
			Int("iid", iid).
			Str("title", issue.Title).
			Msg("created")
		result.Published++
	}

	if result.Failed > 0 {
		logger.Warn().Int("failed", result.Failed).Msg("some creates failed, file left in place for retry")
		result.Outcome = types.OutcomePartialFailure
		result.Error = fmt.Sprintf("%d of %d creates failed", result.Failed, len(survivors))
		return result
	}

	result.Outcome = types.OutcomePublished
	o.archiveInto(item, o.cfg.ProcessedDir, logger, &result)
	return result
}

func (o *Orchestrator) handleUnparsed(ctx context.Context, item *types.IntakeItem, output string, dryRun bool, logger zerolog.Logger, result types.FileResult) types.FileResult {
	result.Outcome = types.OutcomeNoIssues
	preview := Preview(output, o.cfg.PreviewLength)
	logger.Warn().Str("step", "parse").Str("preview", preview).Msg("no issue blocks in oracle output")

	if dryRun {
		return result
	}
	if err := o.board.PostFailureNotice(ctx, item.Name(), preview); err != nil {
		logger.Error().Err(err).Str("step", "notice").Msg("could not post failure notice, file left in place for retry")
		result.Error = err.Error()
		return result
	}
	o.archiveInto(item, o.cfg.FailedDir, logger, &result)
	return result
}

// archiveInto moves the file and records where it went. A failed move is
// logged and leaves the file in the drop folder.
func (o *Orchestrator) archiveInto(item *types.IntakeItem, dir string, logger zerolog.Logger, result *types.FileResult) {
	dest, err := archive(item.Path, dir, o.now())
	if err != nil {
		logger.Error().Err(err).Str("step", "archive").Msg("could not move file")
		result.Error = err.Error()
		return
	}
	logger.Info().Str("step", "archive").Str("dest", dest).Msg("moved")
	result.Archived = true
	result.Destination = dest
}
