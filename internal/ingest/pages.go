package ingest

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/binz0209/vihis/internal/chunker"
	"github.com/binz0209/vihis/internal/headerfooter"
	"github.com/binz0209/vihis/internal/models"
	"github.com/binz0209/vihis/internal/sentence"
	"github.com/binz0209/vihis/internal/textclean"
)

// mergeShortPages folds every page shorter than minChars into the page
// after it, repeatedly, so only the last page may stay short. A merged
// page keeps the number of its first page.
func mergeShortPages(pages []models.PageText, minChars int) []models.PageText {
	out := make([]models.PageText, 0, len(pages))
	var carry *models.PageText
	for i, p := range pages {
		if carry != nil {
			p = models.PageText{PageNumber: carry.PageNumber, Raw: carry.Raw + "\n" + p.Raw}
			carry = nil
		}
		if i < len(pages)-1 && utf8.RuneCountInString(strings.TrimSpace(p.Raw)) < minChars {
			carry = &p
			continue
		}
		out = append(out, p)
	}
	return out
}

// flatten turns marker-prefixed pages into the packer's input: each page
// contributes its marker followed by its sentences, all tagged with the
// page number.
func flatten(pages []models.PageText, abbreviations []string) iter.Seq[chunker.Sentence] {
	var joined strings.Builder
	for i, p := range pages {
		if i > 0 {
			joined.WriteByte('\n')
		}
		joined.WriteString(p.Raw)
	}
	text := headerfooter.CollapseMarkers(joined.String())

	return func(yield func(chunker.Sentence) bool) {
		page := 0
		var body strings.Builder
		emit := func() bool {
			for _, s := range sentence.Split(textclean.Clean(body.String()), abbreviations) {
				if !yield(chunker.Sentence{Text: s, Page: page}) {
					return false
				}
			}
			body.Reset()
			return true
		}

		for line := range strings.Lines(text) {
			if n, ok := headerfooter.MarkerPage(line); ok {
				if !emit() {
					return
				}
				page = n
				if !yield(chunker.Sentence{Text: headerfooter.Marker(n), Page: n, Marker: true}) {
					return
				}
				continue
			}
			body.WriteString(line)
		}
		emit()
	}
}
