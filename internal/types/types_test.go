package types

import (
	"strings"
	"testing"
	"time"
)

func TestOriginFor(t *testing.T) {
	tests := []struct {
		name string
		path string
		want Origin
	}{
		{"plain file", "/drop/idea.txt", OriginFile},
		{"chat message", "/drop/discord-1234.txt", OriginChat},
		{"prefix only in directory", "/discord-dir/idea.txt", OriginFile},
		{"prefix not at start", "/drop/my-discord-notes.md", OriginFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OriginFor(tt.path); got != tt.want {
				t.Errorf("OriginFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestExtractedIssueValidate(t *testing.T) {
	tests := []struct {
		name     string
		issue    ExtractedIssue
		errorMsg string
	}{
		{
			name:  "valid issue",
			issue: ExtractedIssue{Title: "Build X", Label: "Feature", Description: "details"},
		},
		{
			name:  "empty description is fine",
			issue: ExtractedIssue{Title: "Build X", Label: "Feature"},
		},
		{
			name:     "missing title",
			issue:    ExtractedIssue{Title: "  ", Label: "Feature"},
			errorMsg: "title is required",
		},
		{
			name:     "missing label",
			issue:    ExtractedIssue{Title: "Build X"},
			errorMsg: "label is required",
		},
		{
			name:     "title too long",
			issue:    ExtractedIssue{Title: strings.Repeat("x", 256), Label: "Feature"},
			errorMsg: "255 characters or less",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorMsg)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestRunReportHelpers(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Files: []FileResult{
			{Name: "a.txt", Outcome: OutcomePublished, Archived: true},
			{Name: "b.txt", Outcome: OutcomePartialFailure},
			{Name: "c.txt", Outcome: OutcomeNoIssues, Archived: true},
			{Name: "d.txt", Outcome: OutcomeNoIssues},
		},
	}

	if got := r.Count(OutcomeNoIssues); got != 2 {
		t.Errorf("Count(no-issues) = %d, want 2", got)
	}
	if got := r.Archived(); got != 2 {
		t.Errorf("Archived() = %d, want 2", got)
	}
	pending := r.Pending()
	if len(pending) != 2 || pending[0] != "b.txt" || pending[1] != "d.txt" {
		t.Errorf("Pending() = %v, want [b.txt d.txt]", pending)
	}
	if got := r.Duration(); got != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", got)
	}
	if got := (&RunReport{StartedAt: start}).Duration(); got != 0 {
		t.Errorf("Duration() of unfinished run = %v, want 0", got)
	}
}

func TestVerdictIsDuplicate(t *testing.T) {
	if (Verdict{Kind: VerdictKeep}).IsDuplicate() {
		t.Error("KEEP verdict reported as duplicate")
	}
	if !(Verdict{Kind: VerdictDuplicate, DuplicateOf: 7}).IsDuplicate() {
		t.Error("DUPLICATE verdict not reported as duplicate")
	}
}
