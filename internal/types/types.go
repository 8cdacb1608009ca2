package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ChatPrefix marks drop-folder files written by the chat-source scraper.
const ChatPrefix = "discord-"

// Origin tags where an intake file came from. It selects the extraction prompt.
type Origin string

const (
	OriginFile Origin = "file"
	OriginChat Origin = "chat"
)

// OriginFor derives the origin tag from a file name prefix.
func OriginFor(name string) Origin {
	if strings.HasPrefix(filepath.Base(name), ChatPrefix) {
		return OriginChat
	}
	return OriginFile
}

// IntakeItem is one file in the drop folder, identified by its path.
type IntakeItem struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Origin  Origin `json:"origin"`
}

// Name returns the base file name of the item.
func (i *IntakeItem) Name() string {
	return filepath.Base(i.Path)
}

// ExtractedIssue is a candidate backlog item parsed from oracle output.
// It only lives for the duration of one file's processing.
type ExtractedIssue struct {
	Title       string `json:"title"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Validate checks if the issue has valid field values
func (e *ExtractedIssue) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Title) > 255 {
		return fmt.Errorf("title must be 255 characters or less (got %d)", len(e.Title))
	}
	if strings.TrimSpace(e.Label) == "" {
		return fmt.Errorf("label is required")
	}
	return nil
}

// BoardItem is an open item already on the board. A snapshot of these is
// taken once per run and never refreshed.
type BoardItem struct {
	IID    int      `json:"iid"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
}

// VerdictKind is the duplicate classification of one candidate.
type VerdictKind string

const (
	VerdictKeep      VerdictKind = "KEEP"
	VerdictDuplicate VerdictKind = "DUPLICATE"
)

// Verdict pairs a candidate with its classification.
// DuplicateOf is only set for VerdictDuplicate.
type Verdict struct {
	Issue       ExtractedIssue `json:"issue"`
	Kind        VerdictKind    `json:"kind"`
	DuplicateOf int            `json:"duplicate_of,omitempty"`
}

// IsDuplicate reports whether the candidate should be dropped.
func (v Verdict) IsDuplicate() bool {
	return v.Kind == VerdictDuplicate
}

// Outcome is the aggregate result of processing one intake file. It decides
// where the file ends up.
type Outcome string

const (
	OutcomePublished       Outcome = "published"
	OutcomeNoIssues        Outcome = "no-issues-parsed"
	OutcomeAllDuplicates   Outcome = "all-duplicates"
	OutcomePartialFailure  Outcome = "partial-publish-failure"
	OutcomeReadError       Outcome = "read-error"
	OutcomeOracleError     Outcome = "oracle-error"
	OutcomeEmpty           Outcome = "empty-file"
	OutcomeDryRun          Outcome = "dry-run"
	OutcomeUnexpectedError Outcome = "unexpected-error"
)

// FileResult records what happened to one intake file during a run.
type FileResult struct {
	Name        string  `json:"name"`
	Outcome     Outcome `json:"outcome"`
	Parsed      int     `json:"parsed"`
	Duplicates  int     `json:"duplicates"`
	Published   int     `json:"published"`
	Failed      int     `json:"failed"`
	Archived    bool    `json:"archived"`
	Destination string  `json:"destination,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// RunReport summarizes one orchestrator run.
type RunReport struct {
	RunID        string       `json:"run_id"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	DryRun       bool         `json:"dry_run"`
	Scraped      int          `json:"scraped"`
	SnapshotSize int          `json:"snapshot_size"`
	Files        []FileResult `json:"files"`
}

// Count returns the number of files that ended with the given outcome.
func (r *RunReport) Count(o Outcome) int {
	n := 0
	for _, f := range r.Files {
		if f.Outcome == o {
			n++
		}
	}
	return n
}

// Archived returns the number of files moved out of the drop folder.
func (r *RunReport) Archived() int {
	n := 0
	for _, f := range r.Files {
		if f.Archived {
			n++
		}
	}
	return n
}

// Pending returns the names of files left in the drop folder for retry.
func (r *RunReport) Pending() []string {
	var names []string
	for _, f := range r.Files {
		if !f.Archived {
			names = append(names, f.Name)
		}
	}
	return names
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
