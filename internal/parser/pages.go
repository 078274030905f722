package parser

import (
	"strings"

	"github.com/binz0209/vihis/internal/models"
)

const (
	// pageBreakLevel: headings at this level or above start a new page.
	pageBreakLevel = 2
	// maxPageChars starts a new page when a section runs long.
	maxPageChars = 3000
)

// pager turns a stream of headings and blocks into logical pages.
type pager struct {
	pages []models.PageText
	cur   strings.Builder
}

func (p *pager) heading(level int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if level <= pageBreakLevel {
		p.flush()
	}
	p.block(text)
}

func (p *pager) block(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if p.cur.Len() > 0 && p.cur.Len()+len(text) > maxPageChars {
		p.flush()
	}
	if p.cur.Len() > 0 {
		p.cur.WriteString("\n\n")
	}
	p.cur.WriteString(text)
}

func (p *pager) flush() {
	if p.cur.Len() == 0 {
		return
	}
	p.pages = append(p.pages, models.PageText{PageNumber: len(p.pages) + 1, Raw: p.cur.String()})
	p.cur.Reset()
}

func (p *pager) result() []models.PageText {
	p.flush()
	return p.pages
}
