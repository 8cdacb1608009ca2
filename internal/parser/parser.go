// Package parser extracts structured issue blocks from free-form oracle output.
//
// The oracle is asked to answer with repeated blocks of the form:
//
//	### GITLAB ISSUE: [1]
//	**Title:** Build X
//	**Label:** Feature
//	**Description:**
//	Free text, any number of lines.
//
// Parsing is line oriented. A block starts only at a line that, once trimmed,
// is exactly the header token with an optional plain or bracketed ordinal.
// Header-like text anywhere else belongs to the description.
package parser

import (
	"regexp"
	"strings"

	"github.com/tcdz/intake/internal/types"
)

const (
	HeaderToken       = "### GITLAB ISSUE:"
	TitleMarker       = "**Title:**"
	LabelMarker       = "**Label:**"
	DescriptionMarker = "**Description:**"
)

var headerPattern = regexp.MustCompile(`^` + regexp.QuoteMeta(HeaderToken) + `\s*(?:\[\s*\d+\s*\]|\d+)?$`)

// IsHeader reports whether a single line opens a new issue block.
func IsHeader(line string) bool {
	return headerPattern.MatchString(strings.TrimSpace(line))
}

// State is the position of the Scanner inside the block grammar.
type State int

const (
	StateSeek        State = iota // outside any block, waiting for a header
	StateTitle                    // header seen, expecting the title line
	StateLabel                    // title seen, expecting the label line
	StateDescMarker               // label seen, expecting the description marker
	StateDescription              // collecting description lines
)

func (s State) String() string {
	switch s {
	case StateSeek:
		return "seek"
	case StateTitle:
		return "title"
	case StateLabel:
		return "label"
	case StateDescMarker:
		return "description-marker"
	case StateDescription:
		return "description"
	default:
		return "unknown"
	}
}

// Scanner walks oracle output one line at a time.
// The zero value is ready to use.
type Scanner struct {
	state   State
	current types.ExtractedIssue
	desc    []string
	issues  []types.ExtractedIssue
}

// State returns the current grammar position.
func (s *Scanner) State() State {
	return s.state
}

// Feed consumes one line (without its trailing newline).
func (s *Scanner) Feed(line string) {
	trimmed := strings.TrimSpace(line)

	if headerPattern.MatchString(trimmed) {
		s.flush()
		s.state = StateTitle
		return
	}

	switch s.state {
	case StateSeek:
		return

	case StateTitle:
		if trimmed == "" {
			return
		}
		if v, ok := field(trimmed, TitleMarker); ok {
			s.current.Title = v
			s.state = StateLabel
			return
		}
		s.reset()

	case StateLabel:
		if trimmed == "" {
			return
		}
		if v, ok := field(trimmed, LabelMarker); ok {
			s.current.Label = v
			s.state = StateDescMarker
			return
		}
		s.reset()

	case StateDescMarker:
		if trimmed == "" {
			return
		}
		s.state = StateDescription
		if strings.HasPrefix(trimmed, DescriptionMarker) {
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, DescriptionMarker)); rest != "" {
				s.desc = append(s.desc, rest)
			}
			return
		}
		// No marker: keep the line rather than lose a titled, labeled block.
		s.desc = append(s.desc, strings.TrimRight(line, " \t\r"))

	case StateDescription:
		s.desc = append(s.desc, strings.TrimRight(line, " \t\r"))
	}
}

// Issues closes any open block and returns everything parsed so far.
func (s *Scanner) Issues() []types.ExtractedIssue {
	s.flush()
	return s.issues
}

// flush emits the open block if it got at least as far as its label and
// its fields are acceptable to the board.
func (s *Scanner) flush() {
	if s.state == StateDescMarker || s.state == StateDescription {
		s.current.Description = strings.TrimSpace(strings.Join(s.desc, "\n"))
		if s.current.Validate() == nil {
			s.issues = append(s.issues, s.current)
		}
	}
	s.reset()
}

func (s *Scanner) reset() {
	s.state = StateSeek
	s.current = types.ExtractedIssue{}
	s.desc = nil
}

// field returns the trimmed value after marker. An empty value is not a match.
func field(line, marker string) (string, bool) {
	if !strings.HasPrefix(line, marker) {
		return "", false
	}
	v := strings.TrimSpace(strings.TrimPrefix(line, marker))
	return v, v != ""
}

// Parse returns the issue blocks found in output, in source order.
// Output without any recognizable block yields an empty slice.
func Parse(output string) []types.ExtractedIssue {
	var s Scanner
	for _, line := range strings.Split(output, "\n") {
		s.Feed(line)
	}
	issues := s.Issues()
	if issues == nil {
		return []types.ExtractedIssue{}
	}
	return issues
}
