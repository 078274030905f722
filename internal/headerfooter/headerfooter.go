// Package headerfooter finds lines that repeat at the top or bottom of most
// pages (running titles, page numbers) and strips them.
package headerfooter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/binz0209/vihis/internal/models"
)

const (
	// DefaultHeadLines and DefaultFootLines bound the candidate zone per page.
	DefaultHeadLines = 2
	DefaultFootLines = 2

	// DefaultThreshold is the fraction of pages a line must appear on.
	DefaultThreshold = 0.7

	// MinPages is the fewest pages detection runs on. A single page has
	// nothing to compare against.
	MinPages = 2

	// PageSentinel replaces integer-only lines so "3" and "4" match.
	PageSentinel = "<page>"
)

var (
	reSpace    = regexp.MustCompile(`\s+`)
	reInteger  = regexp.MustCompile(`^\d+$`)
	reMarker   = regexp.MustCompile(`^\[Trang \d+\]$`)
	reMarkRuns = regexp.MustCompile(`(?:\[Trang \d+\]\s*)+(\[Trang \d+\])`)
)

// Set holds normalized lines.
type Set map[string]struct{}

// Has reports whether the normalized form of line is in the set.
func (s Set) Has(line string) bool {
	_, ok := s[NormalizeLine(line)]
	return ok
}

// NormalizeLine trims, collapses inner whitespace and lowercases a line.
// Integer-only lines become PageSentinel.
func NormalizeLine(line string) string {
	line = strings.TrimSpace(reSpace.ReplaceAllString(line, " "))
	if reInteger.MatchString(line) {
		return PageSentinel
	}
	return strings.ToLower(line)
}

// Detect classifies a line as header (footer) when it is among the first
// headLines (last footLines) non-blank lines of at least
// ceil(threshold * len(pages)) pages. A line counts once per page.
func Detect(pages []models.PageText, headLines, footLines int, threshold float64) (header, footer Set) {
	header, footer = Set{}, Set{}
	if len(pages) < MinPages {
		return header, footer
	}
	if headLines < 0 {
		headLines = 0
	}
	if footLines < 0 {
		footLines = 0
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	headCount := map[string]int{}
	footCount := map[string]int{}
	for _, p := range pages {
		lines := nonBlankLines(p.Raw)
		countOnce(headCount, lines[:min(headLines, len(lines))])
		countOnce(footCount, lines[max(0, len(lines)-footLines):])
	}

	need := int(math.Ceil(threshold * float64(len(pages))))
	for line, n := range headCount {
		if n >= need {
			header[line] = struct{}{}
		}
	}
	for line, n := range footCount {
		if n >= need {
			footer[line] = struct{}{}
		}
	}
	return header, footer
}

// Strip removes header lines from the top and footer lines from the bottom
// of each page until a non-matching line is reached, then prepends the
// page marker. Input pages are not modified.
func Strip(pages []models.PageText, header, footer Set) []models.PageText {
	out := make([]models.PageText, 0, len(pages))
	for _, p := range pages {
		lines := strings.Split(p.Raw, "\n")
		for len(lines) > 0 && (isBlank(lines[0]) || header.Has(lines[0])) {
			lines = lines[1:]
		}
		for len(lines) > 0 && (isBlank(lines[len(lines)-1]) || footer.Has(lines[len(lines)-1])) {
			lines = lines[:len(lines)-1]
		}

		body := Marker(p.PageNumber)
		if len(lines) > 0 {
			body += "\n" + strings.Join(lines, "\n")
		}
		out = append(out, models.PageText{PageNumber: p.PageNumber, Raw: body})
	}
	return out
}

// Marker is the page label line placed at the top of every stripped page.
func Marker(page int) string {
	return fmt.Sprintf("[Trang %d]", page)
}

// IsMarker reports whether line is a page marker.
func IsMarker(line string) bool {
	return reMarker.MatchString(strings.TrimSpace(line))
}

// SplitMarker separates a leading page marker line from the rest of text.
func SplitMarker(text string) (marker, body string) {
	first, rest, _ := strings.Cut(text, "\n")
	if IsMarker(first) {
		return strings.TrimSpace(first), rest
	}
	return "", text
}

// CollapseMarkers reduces consecutive page markers to the last one, the
// page the following text belongs to.
func CollapseMarkers(text string) string {
	return reMarkRuns.ReplaceAllString(text, "$1")
}

func nonBlankLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if !isBlank(l) {
			out = append(out, l)
		}
	}
	return out
}

func countOnce(counts map[string]int, lines []string) {
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		n := NormalizeLine(l)
		if !seen[n] {
			seen[n] = true
			counts[n]++
		}
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// MarkerPage returns the page number of a marker line.
func MarkerPage(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if !reMarker.MatchString(line) {
		return 0, false
	}
	n, err := strconv.Atoi(line[len("[Trang ") : len(line)-1])
	return n, err == nil
}
