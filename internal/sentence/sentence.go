// Package sentence splits normalized text into sentences without breaking
// on known abbreviations such as "GS." or "TS.".
package sentence

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A boundary is whitespace after terminal punctuation, or a paragraph break.
var reBoundary = regexp.MustCompile(`[.?!…]\s+|\n[ \t]*\n\s*`)

// DefaultAbbreviations are common Vietnamese academic and address
// abbreviations plus a few English titles.
var DefaultAbbreviations = []string{
	"GS.", "PGS.", "TS.", "ThS.", "CN.", "KS.", "BS.",
	"TP.", "Tp.", "Q.", "P.", "tr.", "v.v.", "St.", "Dr.", "Mr.", "Mrs.",
}

// Private-use runes; they never appear in extracted text and are neither
// whitespace nor punctuation.
const (
	phOpen  = "\uE000"
	phClose = "\uE001"
)

// Split returns the trimmed, non-empty sentences of text in order.
// An abbreviation that starts a word is never treated as a sentence end.
func Split(text string, abbreviations []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	protect, restore := placeholders(abbreviations)
	s := protect(text)

	var out []string
	add := func(part string) {
		part = strings.TrimSpace(restore.Replace(part))
		if part != "" {
			out = append(out, part)
		}
	}

	start := 0
	for _, m := range reBoundary.FindAllStringIndex(s, -1) {
		end := m[0]
		if s[m[0]] != '\n' {
			// Keep the punctuation with its sentence.
			_, size := utf8.DecodeRuneInString(s[m[0]:])
			end += size
		}
		add(s[start:end])
		start = m[1]
	}
	add(s[start:])
	return out
}

// placeholders builds the protect/restore pair. An abbreviation is
// protected only where it starts a word, so "CN." does not fire inside
// "TCN.". Longer abbreviations are tried first so "PGS." wins over "GS.".
func placeholders(abbreviations []string) (protect func(string) string, restore *strings.Replacer) {
	abbrs := make([]string, 0, len(abbreviations))
	for _, a := range abbreviations {
		if a = strings.TrimSpace(a); a != "" {
			abbrs = append(abbrs, a)
		}
	}
	if len(abbrs) == 0 {
		return func(s string) string { return s }, strings.NewReplacer()
	}
	sort.SliceStable(abbrs, func(i, j int) bool { return len(abbrs[i]) > len(abbrs[j]) })

	ph := make(map[string]string, len(abbrs))
	alts := make([]string, len(abbrs))
	back := make([]string, 0, 2*len(abbrs))
	for i, a := range abbrs {
		p := phOpen + strconv.Itoa(i) + phClose
		ph[a] = p
		alts[i] = regexp.QuoteMeta(a)
		back = append(back, p, a)
	}
	re := regexp.MustCompile(strings.Join(alts, "|"))

	protect = func(s string) string {
		var sb strings.Builder
		last := 0
		for _, m := range re.FindAllStringIndex(s, -1) {
			if m[0] > 0 {
				if r, _ := utf8.DecodeLastRuneInString(s[:m[0]]); unicode.IsLetter(r) || unicode.IsDigit(r) {
					continue
				}
			}
			sb.WriteString(s[last:m[0]])
			sb.WriteString(ph[s[m[0]:m[1]]])
			last = m[1]
		}
		if last == 0 {
			return s
		}
		sb.WriteString(s[last:])
		return sb.String()
	}
	return protect, strings.NewReplacer(back...)
}
