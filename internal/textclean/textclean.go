// Package textclean normalizes raw extracted page text for chunking.
//
// Clean is pure, total and idempotent: Clean(Clean(s)) == Clean(s).
package textclean

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinSpacedRun is the shortest run of single spaced letters that is
// condensed into one word.
const MinSpacedRun = 6

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reHyphenWrap = regexp.MustCompile(`(\p{L})-\n[ \t]*(\p{L})`)
	reParaBreak  = regexp.MustCompile(`\n[ \t]*\n\s*`)
	reHSpace     = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// Clean applies, in order: NFC composition and line-ending normalization,
// hyphen-wrap repair, spaced-letter condensation, single line break
// collapse (paragraph breaks survive as "\n\n"), whitespace collapse, trim.
func Clean(raw string) string {
	if raw == "" {
		return ""
	}
	s := Prepare(raw)

	paras := reParaBreak.Split(s, -1)
	out := paras[:0]
	for _, p := range paras {
		p = strings.ReplaceAll(p, "\n", " ")
		p = reHSpace.ReplaceAllString(p, " ")
		// Joining lines can line up new spaced-letter runs.
		p = CondenseSpacedLetters(p)
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Prepare runs the line-preserving steps of Clean: NFC composition,
// CRLF/CR to LF, hyphen-wrap repair and spaced-letter condensation.
// Header and footer detection runs on its output.
func Prepare(raw string) string {
	if raw == "" {
		return ""
	}
	s := norm.NFC.String(raw)
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reHyphenWrap.ReplaceAllString(s, "$1$2")
	return CondenseSpacedLetters(s)
}

// CondenseSpacedLetters joins runs of space-separated single letters
// ("V i ệ t N a m") when the run holds at least MinSpacedRun letters.
// Shorter runs and all other text are returned unchanged.
func CondenseSpacedLetters(s string) string {
	if !strings.Contains(s, " ") {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = condenseLine(line)
	}
	return strings.Join(lines, "\n")
}

func condenseLine(line string) string {
	tokens := strings.Split(line, " ")
	out := make([]string, 0, len(tokens))
	changed := false

	for i := 0; i < len(tokens); {
		if !isSingleLetter(tokens[i]) {
			out = append(out, tokens[i])
			i++
			continue
		}
		j := i
		for j < len(tokens) && isSingleLetter(tokens[j]) {
			j++
		}
		if j-i >= MinSpacedRun {
			out = append(out, strings.Join(tokens[i:j], ""))
			changed = true
		} else {
			out = append(out, tokens[i:j]...)
		}
		i = j
	}

	if !changed {
		return line
	}
	return strings.Join(out, " ")
}

// isSingleLetter reports whether tok is one letter, optionally followed by
// combining marks (decomposed diacritics).
func isSingleLetter(tok string) bool {
	r, size := utf8.DecodeRuneInString(tok)
	if size == 0 || !unicode.IsLetter(r) {
		return false
	}
	for _, m := range tok[size:] {
		if !unicode.Is(unicode.Mn, m) {
			return false
		}
	}
	return true
}
