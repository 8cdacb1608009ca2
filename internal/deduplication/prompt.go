package deduplication

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tcdz/intake/internal/types"
)

const promptTemplate = `You are a duplicate detector. Compare NEW issues against EXISTING issues on a GitLab board.

Two issues are duplicates if they describe the same idea, even if worded differently.
For example: "Build Discord-to-GitLab Kanban bot" and "Build Discord-to-GitLab Kanban intake bot" are duplicates.

EXISTING ISSUES (already on the board):
%s

NEW ISSUES (candidates to add):
%s

For each new issue, respond with exactly one line:
NEW [number]: KEEP or NEW [number]: DUPLICATE of #[iid]

Example output:
NEW 1: KEEP
NEW 2: DUPLICATE of #18
NEW 3: KEEP
`

// BuildPrompt lists existing items by iid and candidates by 1-based ordinal.
func BuildPrompt(existing []types.BoardItem, candidates []types.ExtractedIssue) string {
	var ex strings.Builder
	for i, item := range existing {
		if i > 0 {
			ex.WriteString("\n")
		}
		fmt.Fprintf(&ex, "- #%d: %s", item.IID, item.Title)
	}

	var nw strings.Builder
	for i, c := range candidates {
		if i > 0 {
			nw.WriteString("\n")
		}
		fmt.Fprintf(&nw, "- NEW %d: %s", i+1, c.Title)
	}

	return fmt.Sprintf(promptTemplate, ex.String(), nw.String())
}

var verdictLine = regexp.MustCompile(`(?i)^[\s\-*>` + "`" + `]*(?:\d+[.)]\s*)?[\s*` + "`" + `]*NEW\s*\[?\s*(\d+)\s*\]?\s*:\s*(KEEP|DUPLICATE)\b(?:\s*(?:of\s*)?#?\s*\[?(\d+)\]?)?`)

type parsedVerdict struct {
	kind     types.VerdictKind
	iid      int
	conflict bool
}

// ParseVerdicts maps the oracle reply onto candidates by ordinal, ignoring
// line order. A candidate is only dropped when exactly one consistent
// DUPLICATE verdict names an iid present in known. Missing, unparseable or
// contradictory verdicts keep the candidate.
func ParseVerdicts(response string, candidates []types.ExtractedIssue, known map[int]bool) []types.Verdict {
	seen := make(map[int]*parsedVerdict)

	for _, line := range strings.Split(response, "\n") {
		m := verdictLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		ordinal, err := strconv.Atoi(m[1])
		if err != nil || ordinal < 1 || ordinal > len(candidates) {
			continue
		}

		pv := parsedVerdict{kind: types.VerdictKeep}
		if strings.EqualFold(m[2], string(types.VerdictDuplicate)) {
			iid, err := strconv.Atoi(m[3])
			if err != nil || !known[iid] {
				// A duplicate of nothing we can point to is not a duplicate.
				pv.conflict = true
			} else {
				pv.kind = types.VerdictDuplicate
				pv.iid = iid
			}
		}

		prev, ok := seen[ordinal]
		if !ok {
			seen[ordinal] = &pv
			continue
		}
		if prev.kind != pv.kind || prev.iid != pv.iid || pv.conflict {
			prev.conflict = true
		}
	}

	verdicts := make([]types.Verdict, len(candidates))
	for i, c := range candidates {
		verdicts[i] = types.Verdict{Issue: c, Kind: types.VerdictKeep}
		pv, ok := seen[i+1]
		if !ok || pv.conflict || pv.kind != types.VerdictDuplicate {
			continue
		}
		verdicts[i].Kind = types.VerdictDuplicate
		verdicts[i].DuplicateOf = pv.iid
	}
	return verdicts
}
