package deduplication

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tcdz/intake/internal/ai"
	"github.com/tcdz/intake/internal/types"
)

// Filter classifies candidate issues against a board snapshot using a
// single oracle call per file. It fails open: anything ambiguous is kept.
type Filter struct {
	completer ai.Completer
	config    Config
	logger    zerolog.Logger
}

// NewFilter creates a new duplicate filter
//
// Returns an error if the completer is nil or if config validation fails.
func NewFilter(completer ai.Completer, config Config, logger zerolog.Logger) (*Filter, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Filter{
		completer: completer,
		config:    config,
		logger:    logger.With().Str("component", "dedup").Logger(),
	}, nil
}

// Classify returns one verdict per candidate, in candidate order.
//
// With an empty snapshot (or the filter disabled) every candidate is kept and
// the oracle is not called. If the oracle call fails the returned verdicts
// are all KEEP and the error is returned alongside them.
func (f *Filter) Classify(ctx context.Context, candidates []types.ExtractedIssue, existing []types.BoardItem) ([]types.Verdict, error) {
	if len(candidates) == 0 || len(existing) == 0 || !f.config.Enabled {
		return keepAll(candidates), nil
	}

	existing = f.limitExisting(existing)
	known := make(map[int]bool, len(existing))
	for _, item := range existing {
		known[item.IID] = true
	}

	response, err := f.completer.Complete(ctx, BuildPrompt(existing, candidates), "dedup", f.config.MaxTokens)
	if err != nil {
		return keepAll(candidates), err
	}

	return ParseVerdicts(response, candidates, known), nil
}

// Filter returns the candidates that are not duplicates of existing items.
// Oracle failures are logged and every candidate is returned.
func (f *Filter) Filter(ctx context.Context, candidates []types.ExtractedIssue, existing []types.BoardItem) []types.ExtractedIssue {
	if len(existing) == 0 {
		return candidates
	}

	f.logger.Info().
		Int("candidates", len(candidates)).
		Int("existing", len(existing)).
		Msg("dedup check")

	verdicts, err := f.Classify(ctx, candidates, existing)
	if err != nil {
		f.logger.Warn().Err(err).Msg("dedup AI call failed, keeping all candidates")
		return candidates
	}

	kept := make([]types.ExtractedIssue, 0, len(candidates))
	for _, v := range verdicts {
		if v.IsDuplicate() {
			f.logger.Info().
				Str("title", v.Issue.Title).
				Int("duplicate_of", v.DuplicateOf).
				Msg("skipped duplicate")
			continue
		}
		kept = append(kept, v.Issue)
	}
	return kept
}

// limitExisting keeps the MaxExisting most recently created items.
func (f *Filter) limitExisting(existing []types.BoardItem) []types.BoardItem {
	if f.config.MaxExisting == 0 || len(existing) <= f.config.MaxExisting {
		return existing
	}
	sorted := make([]types.BoardItem, len(existing))
	copy(sorted, existing)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].IID > sorted[j].IID })
	return sorted[:f.config.MaxExisting]
}

func keepAll(candidates []types.ExtractedIssue) []types.Verdict {
	verdicts := make([]types.Verdict, len(candidates))
	for i, c := range candidates {
		verdicts[i] = types.Verdict{Issue: c, Kind: types.VerdictKeep}
	}
	return verdicts
}

