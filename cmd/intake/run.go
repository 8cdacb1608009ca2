package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/tcdz/intake/internal/ai"
	"github.com/tcdz/intake/internal/board"
	"github.com/tcdz/intake/internal/config"
	"github.com/tcdz/intake/internal/deduplication"
	"github.com/tcdz/intake/internal/discord"
	"github.com/tcdz/intake/internal/intake"
	"github.com/tcdz/intake/internal/logging"
	"github.com/tcdz/intake/internal/types"
)

// run wires the pipeline from configuration and executes one pass. Only
// configuration problems are returned as errors; per-file failures end up
// in the summary.
func run(ctx context.Context, o options, out io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := logging.New(o.logLevel, o.logFile)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(config.LoadOptions{ConfigFile: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return err
	}
	if err := cfg.Validate(o.dryRun); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	token, err := cfg.ResolveToken("")
	if err != nil && !o.dryRun {
		return err
	}
	cfg = cfg.WithToken(token)

	orch, err := build(cfg, o.dryRun, logger)
	if err != nil {
		return err
	}

	report, err := orch.Run(ctx, o.dryRun)
	if err != nil {
		return err
	}
	printSummary(out, report)
	return nil
}

// build constructs the orchestrator and its collaborators from cfg.
func build(cfg config.Config, dryRun bool, logger zerolog.Logger) (*intake.Orchestrator, error) {
	client, err := ai.NewClient(ai.Config{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.Model,
		Timeout: cfg.OracleTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	dedupConfig, err := deduplication.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid deduplication configuration: %w", err)
	}
	filter, err := deduplication.NewFilter(client, dedupConfig, logger)
	if err != nil {
		return nil, err
	}

	deps := intake.Deps{
		Extractor: ai.NewExtractor(client, cfg.ExtractionMaxTokens),
		Deduper:   filter,
		Logger:    logger,
		Scraper: discord.NewScraper(discord.Config{
			BotToken:  cfg.DiscordBotToken,
			ChannelID: cfg.DiscordChannelID,
			DropDir:   cfg.DropDir,
		}, logger),
	}

	// A dry run never touches the board, so an incomplete board
	// configuration is fine there.
	if cfg.GitLabProject != "" || !dryRun {
		var notifier board.Notifier
		if wh := board.NewWebhookNotifier(cfg.DiscordBacklogWebhook); wh != nil {
			notifier = wh
		}
		gl, err := board.NewGitLab(board.Config{
			BaseURL:           cfg.GitLabURL,
			Project:           cfg.GitLabProject,
			Token:             cfg.GitLabToken,
			Timeout:           cfg.BoardTimeout,
			RequestsPerSecond: cfg.BoardRequestsPerSecond,
			FailureLabel:      cfg.FailureLabel,
		}, notifier, logger)
		if err != nil {
			return nil, err
		}
		deps.Board = gl
	}

	return intake.New(intake.Config{
		DropDir:         cfg.DropDir,
		ProcessedDir:    cfg.ProcessedDir,
		FailedDir:       cfg.FailedDir,
		PromptFile:      cfg.PromptFile,
		QuickPromptFile: cfg.QuickPromptFile,
		Patterns:        cfg.Patterns,
		PreviewLength:   cfg.PreviewLength,
	}, deps)
}

// printSummary writes one line per file and the run totals.
func printSummary(w io.Writer, report *types.RunReport) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintf(w, "\n%s %s\n", cyan("Intake run"), report.RunID)
	if report.DryRun {
		fmt.Fprintf(w, "%s\n", color.YellowString("DRY RUN MODE - nothing was created or moved"))
	}
	if report.Scraped > 0 {
		fmt.Fprintf(w, "Scraped %d chat message(s)\n", report.Scraped)
	}
	if len(report.Files) == 0 {
		fmt.Fprintf(w, "No files to process.\n")
		return
	}

	for _, f := range report.Files {
		mark := green("✓")
		switch {
		case f.Outcome == types.OutcomeDryRun || f.Outcome == types.OutcomeEmpty:
			mark = yellow("-")
		case !f.Archived:
			mark = red("✗")
		}

		detail := ""
		switch f.Outcome {
		case types.OutcomePublished, types.OutcomePartialFailure:
			detail = fmt.Sprintf(" (%d created, %d duplicate, %d failed)", f.Published, f.Duplicates, f.Failed)
		case types.OutcomeAllDuplicates:
			detail = fmt.Sprintf(" (%d duplicate)", f.Duplicates)
		case types.OutcomeDryRun:
			detail = fmt.Sprintf(" (%d parsed)", f.Parsed)
		}
		fmt.Fprintf(w, "  %s %s: %s%s\n", mark, f.Name, f.Outcome, detail)
		if f.Error != "" {
			fmt.Fprintf(w, "      %s\n", red(f.Error))
		}
	}

	fmt.Fprintf(w, "\n%d file(s): %d published, %d all duplicates, %d unparsed\n",
		len(report.Files),
		report.Count(types.OutcomePublished),
		report.Count(types.OutcomeAllDuplicates),
		report.Count(types.OutcomeNoIssues))
	fmt.Fprintf(w, "%d archived, %d left for retry, %s\n",
		report.Archived(), len(report.Pending()), report.Duration().Round(time.Millisecond))
}
