package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/binz0209/vihis/internal/models"
)

// TextParser handles plain text files. Form feeds mark explicit page
// breaks; otherwise paragraphs are grouped into logical pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	doc := &Document{Title: baseTitle(filename)}

	if strings.Contains(text, "\f") {
		for i, page := range splitPages(text) {
			doc.Pages = append(doc.Pages, models.PageText{PageNumber: i + 1, Raw: page})
		}
		return doc, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pg pager
	var current strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			pg.block(current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	pg.block(current.String())

	doc.Pages = pg.result()
	return doc, nil
}
