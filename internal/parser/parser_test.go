package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdz/intake/internal/types"
)

func block(n int, title, label, desc string) string {
	return fmt.Sprintf("### GITLAB ISSUE: [%d]\n**Title:** %s\n**Label:** %s\n**Description:**\n%s\n", n, title, label, desc)
}

func TestParse_WellFormedBlocks(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d blocks", n), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("Here are the issues I found:\n\n")
			for i := 1; i <= n; i++ {
				b.WriteString(block(i, fmt.Sprintf("Idea %d", i), "Feature", fmt.Sprintf("Body of idea %d.", i)))
				b.WriteString("\n")
			}

			issues := Parse(b.String())
			require.Len(t, issues, n)
			for i, issue := range issues {
				assert.Equal(t, fmt.Sprintf("Idea %d", i+1), issue.Title)
				assert.Equal(t, "Feature", issue.Label)
				assert.Equal(t, fmt.Sprintf("Body of idea %d.", i+1), issue.Description)
				assert.NoError(t, issue.Validate())
			}
		})
	}
}

func TestParse_NoBlocks(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"prose", "I could not find any actionable ideas in this text."},
		{"header only", "### GITLAB ISSUE: 1\n"},
		{"header without title", "### GITLAB ISSUE: 1\nSomething else\n**Label:** Bug\n"},
		{"title without label", "### GITLAB ISSUE: 1\n**Title:** Lonely\n\nnope\n"},
		{"empty title", "### GITLAB ISSUE: 1\n**Title:**   \n**Label:** Bug\n**Description:**\nx\n"},
		{"inline header text", "Use the ### GITLAB ISSUE: format next time."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Parse(tt.output)
			require.NotNil(t, issues)
			assert.Empty(t, issues)
		})
	}
}

func TestParse_HeaderVariants(t *testing.T) {
	headers := []string{
		"### GITLAB ISSUE: [1]",
		"### GITLAB ISSUE: 1",
		"### GITLAB ISSUE:[12]",
		"### GITLAB ISSUE: [ 3 ]",
		"### GITLAB ISSUE:",
		"   ### GITLAB ISSUE: 4   ",
	}

	for _, h := range headers {
		t.Run(h, func(t *testing.T) {
			out := h + "\n**Title:** Build X\n**Label:** Feature\n**Description:**\nDo it.\n"
			issues := Parse(out)
			require.Len(t, issues, 1)
			assert.Equal(t, types.ExtractedIssue{Title: "Build X", Label: "Feature", Description: "Do it."}, issues[0])
		})
	}
}

func TestParse_ToleratesWhitespace(t *testing.T) {
	out := "\r\n### GITLAB ISSUE: [1]\r\n\r\n  **Title:**   Build X  \r\n\n**Label:**\tFeature\r\n**Description:**\r\n  indented line\r\nsecond line\r\n\r\n"

	issues := Parse(out)
	require.Len(t, issues, 1)
	assert.Equal(t, "Build X", issues[0].Title)
	assert.Equal(t, "Feature", issues[0].Label)
	assert.Equal(t, "indented line\nsecond line", issues[0].Description)
}

func TestParse_DescriptionResemblingHeader(t *testing.T) {
	desc := strings.Join([]string{
		"We should stop writing ### GITLAB ISSUE: 2 by hand.",
		"### GITLAB ISSUE: please ignore",
		"#### GITLAB ISSUE: 3",
		"### GITLAB ISSUES: 4",
	}, "\n")
	out := block(1, "Automate issue filing", "Chore", desc) + block(2, "Second", "Bug", "Real second block.")

	issues := Parse(out)
	require.Len(t, issues, 2)
	assert.Equal(t, desc, issues[0].Description)
	assert.Equal(t, "Second", issues[1].Title)
	assert.Equal(t, "Real second block.", issues[1].Description)
}

func TestParse_EmptyDescription(t *testing.T) {
	out := "### GITLAB ISSUE: 1\n**Title:** A\n**Label:** Bug\n**Description:**\n### GITLAB ISSUE: 2\n**Title:** B\n**Label:** Feature\n**Description:**"

	issues := Parse(out)
	require.Len(t, issues, 2)
	assert.Empty(t, issues[0].Description)
	assert.Empty(t, issues[1].Description)
}

func TestParse_InlineDescription(t *testing.T) {
	out := "### GITLAB ISSUE: 1\n**Title:** A\n**Label:** Bug\n**Description:** starts here\nand continues\n"

	issues := Parse(out)
	require.Len(t, issues, 1)
	assert.Equal(t, "starts here\nand continues", issues[0].Description)
}

func TestParse_MissingDescriptionMarkerKeepsBlock(t *testing.T) {
	out := "### GITLAB ISSUE: 1\n**Title:** A\n**Label:** Bug\nThe model forgot the marker.\n"

	issues := Parse(out)
	require.Len(t, issues, 1)
	assert.Equal(t, "The model forgot the marker.", issues[0].Description)
}

func TestParse_MalformedBlockDoesNotHideNextBlock(t *testing.T) {
	out := "### GITLAB ISSUE: 1\n**Label:** Bug\n**Title:** out of order\n" + block(2, "Good", "Feature", "ok")

	issues := Parse(out)
	require.Len(t, issues, 1)
	assert.Equal(t, "Good", issues[0].Title)
}

func TestParse_OverlongTitleDropped(t *testing.T) {
	output := block(1, strings.Repeat("x", 256), "Feature", "too long") + block(2, strings.Repeat("y", 255), "Bug", "fits")

	issues := Parse(output)
	require.Len(t, issues, 1)
	assert.Equal(t, "Bug", issues[0].Label)
	assert.Equal(t, "fits", issues[0].Description)
}

func TestScanner_States(t *testing.T) {
	var s Scanner
	assert.Equal(t, StateSeek, s.State())

	steps := []struct {
		line string
		want State
	}{
		{"preamble", StateSeek},
		{"### GITLAB ISSUE: [1]", StateTitle},
		{"", StateTitle},
		{"**Title:** X", StateLabel},
		{"**Label:** Y", StateDescMarker},
		{"**Description:**", StateDescription},
		{"body", StateDescription},
		{"### GITLAB ISSUE: [2]", StateTitle},
		{"garbage", StateSeek},
	}
	for _, step := range steps {
		s.Feed(step.line)
		assert.Equal(t, step.want, s.State(), "after %q", step.line)
	}

	issues := s.Issues()
	require.Len(t, issues, 1)
	assert.Equal(t, "body", issues[0].Description)
}

func TestIsHeader(t *testing.T) {
	assert.True(t, IsHeader("### GITLAB ISSUE: [7]"))
	assert.True(t, IsHeader("  ### GITLAB ISSUE: 7"))
	assert.False(t, IsHeader("### GITLAB ISSUE: seven"))
	assert.False(t, IsHeader("text ### GITLAB ISSUE: 7"))
	assert.False(t, IsHeader("### gitlab issue: 7"))
}
