package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/binz0209/vihis/internal/models"
)

// csvRowsPerPage groups data rows into pages.
const csvRowsPerPage = 20

// CSVParser handles CSV files. The header row is repeated on every page so
// each page reads on its own.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &Document{Title: baseTitle(filename)}
	if len(records) == 0 {
		return doc, nil
	}

	headers, rows := records[0], records[1:]
	for i := 0; i < len(rows); i += csvRowsPerPage {
		end := min(i+csvRowsPerPage, len(rows))

		var page strings.Builder
		page.WriteString(strings.Join(headers, ", "))
		page.WriteString("\n\n")
		for _, row := range rows[i:end] {
			cells := make([]string, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					cells[j] = headers[j] + ": " + cell
				} else {
					cells[j] = cell
				}
			}
			// One row per paragraph so rows never merge into one sentence.
			page.WriteString(strings.Join(cells, "; "))
			page.WriteString(".\n\n")
		}

		doc.Pages = append(doc.Pages, models.PageText{
			PageNumber: len(doc.Pages) + 1,
			Raw:        strings.TrimSpace(page.String()),
		})
	}
	return doc, nil
}
