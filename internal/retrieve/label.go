package retrieve

import (
	"context"
	"fmt"

	"github.com/binz0209/vihis/internal/models"
)

// TitleLookup resolves source titles.
type TitleLookup interface {
	GetTitles(ctx context.Context, ids []string) (map[string]string, error)
}

// Labeled is a fragment with a human-readable citation.
type Labeled struct {
	models.Fragment
	Title string `json:"title"`
	Label string `json:"label"`
}

// Label attaches source titles and page citations to fragments, in order.
func Label(ctx context.Context, titles TitleLookup, frags []models.Fragment) ([]Labeled, error) {
	var ids []string
	seen := map[string]bool{}
	for _, f := range frags {
		if !seen[f.SourceID] {
			seen[f.SourceID] = true
			ids = append(ids, f.SourceID)
		}
	}

	names, err := titles.GetTitles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get titles: %w", err)
	}

	out := make([]Labeled, len(frags))
	for i, f := range frags {
		title := names[f.SourceID]
		if title == "" {
			title = f.SourceID
		}
		out[i] = Labeled{Fragment: f, Title: title, Label: citation(title, f.PageFrom, f.PageTo)}
	}
	return out, nil
}

func citation(title string, from, to int) string {
	switch {
	case from <= 0:
		return title
	case to <= from:
		return fmt.Sprintf("%s, trang %d", title, from)
	default:
		return fmt.Sprintf("%s, trang %d-%d", title, from, to)
	}
}
