package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/tcdz/intake/internal/types"
)

// DefaultPreviewLength is the number of characters of oracle output carried
// in a parse-failure notice.
const DefaultPreviewLength = 200

const archiveTimeLayout = "20060102150405"

// listFiles returns the names of regular files in dir matching any of
// patterns, case-insensitively, sorted by name.
func listFiles(dir string, patterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if matchAny(patterns, e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func matchAny(patterns []string, name string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(p), lower); err == nil && ok {
			return true
		}
	}
	return false
}

// readItem loads one drop-folder file. HTML files are reduced to their
// visible text.
func readItem(dir, name string) (*types.IntakeItem, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%s is not valid UTF-8", name)
	}

	content := string(data)
	if isHTML(name) {
		content, err = htmlText(content)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
	}

	return &types.IntakeItem{
		Path:    path,
		Content: content,
		Origin:  types.OriginFor(name),
	}, nil
}

func isHTML(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// blockElements end a line of visible text.
const blockElements = "p, li, dt, dd, h1, h2, h3, h4, h5, h6, div, br, tr, td, th, " +
	"pre, blockquote, section, article, header, footer, ul, ol, table, hr"

// htmlText returns the visible text of an HTML document, one non-blank line
// per block element or source line.
func htmlText(raw string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, head").Remove()
	doc.Find(blockElements).AfterHtml("\n")

	var lines []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		for _, line := range strings.Split(s.Text(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	})
	return strings.Join(lines, "\n"), nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Preview returns the first n characters of output on a single line.
func Preview(output string, n int) string {
	if utf8.RuneCountInString(output) > n {
		output = string([]rune(output)[:n])
	}
	output = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(output)
	return strings.TrimSpace(output)
}

// archive moves path into dir, creating dir if needed. When the name is
// taken it uses <stem>_<YYYYMMDDHHMMSS><ext>, then appends -N until free.
func archive(path, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if exists(dest) {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext) + "_" + now.Format(archiveTimeLayout)
		dest = filepath.Join(dir, stem+ext)
		for n := 2; exists(dest); n++ {
			dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
		}
	}

	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s: %w", name, err)
	}
	return dest, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
