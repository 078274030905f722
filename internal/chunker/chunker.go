package chunker

import (
	"iter"
	"slices"
	"strings"

	"github.com/binz0209/vihis/internal/models"
)

// Config controls packing.
type Config struct {
	TargetTokens  int // Soft budget per chunk.
	OverlapTokens int // Tokens of trailing sentences repeated at the head of the next chunk.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  400,
		OverlapTokens: 60,
	}
}

// Sentence is one packing unit tagged with the page it came from.
// Marker items are page labels: they are carried into chunk content on
// their own line but never count as a sentence or toward the budget.
type Sentence struct {
	Text   string
	Page   int
	Marker bool
}

type item struct {
	Sentence
	tokens int
}

// Pack groups sentences greedily into chunks of at most targetTokens.
//
// When the next sentence would push a non-empty chunk over budget, the
// chunk is emitted and the next one is seeded with the shortest tail of
// sentences holding at least overlapTokens. Seed sentences are dropped
// from the front if the seed plus the incoming sentence would not fit.
// A sentence larger than the budget becomes a chunk on its own.
//
// The returned sequence is lazy and reads items once.
func Pack(items iter.Seq[Sentence], targetTokens, overlapTokens int) iter.Seq[models.Chunk] {
	if targetTokens < 1 {
		targetTokens = 1
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}

	return func(yield func(models.Chunk) bool) {
		var buf []item
		total := 0
		index := 0

		for s := range items {
			s.Text = strings.TrimSpace(s.Text)
			if s.Text == "" {
				continue
			}
			next := item{Sentence: s}
			if !s.Marker {
				next.tokens = EstimateTokens(s.Text)
			}

			if hasContent(buf) && total+next.tokens > targetTokens {
				// Page markers at the tail belong to the next chunk.
				body, carry := splitTrailingMarkers(buf)
				if !yield(build(body, index)) {
					return
				}
				index++

				buf = append(overlapTail(body, overlapTokens), carry...)
				total = sumTokens(buf)
				for hasContent(buf) && total+next.tokens > targetTokens {
					total -= buf[0].tokens
					buf = buf[1:]
				}
			}

			buf = append(buf, next)
			total += next.tokens
		}

		if hasContent(buf) {
			body, _ := splitTrailingMarkers(buf)
			yield(build(body, index))
		}
	}
}

// PackAll is Pack collected into a slice.
func PackAll(sentences []Sentence, cfg Config) []models.Chunk {
	return slices.Collect(Pack(slices.Values(sentences), cfg.TargetTokens, cfg.OverlapTokens))
}

// overlapTail returns a copy of the shortest suffix of buf whose tokens
// reach want, or all of buf if it never does.
func overlapTail(buf []item, want int) []item {
	if want <= 0 || len(buf) == 0 {
		return nil
	}
	got := 0
	i := len(buf)
	for i > 0 && got < want {
		i--
		got += buf[i].tokens
	}
	return slices.Clone(buf[i:])
}

func splitTrailingMarkers(buf []item) (body, carry []item) {
	i := len(buf)
	for i > 0 && buf[i-1].Marker {
		i--
	}
	return buf[:i], slices.Clone(buf[i:])
}

func hasContent(buf []item) bool {
	for _, it := range buf {
		if !it.Marker {
			return true
		}
	}
	return false
}

func sumTokens(buf []item) int {
	n := 0
	for _, it := range buf {
		n += it.tokens
	}
	return n
}

func build(buf []item, index int) models.Chunk {
	var sb strings.Builder
	c := models.Chunk{ChunkIndex: index}
	prevMarker := false

	for i, it := range buf {
		switch {
		case i == 0:
		case it.Marker || prevMarker:
			sb.WriteByte('\n')
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(it.Text)
		prevMarker = it.Marker

		c.ApproxTokens += it.tokens
		if it.Page > 0 && (c.PageFrom == 0 || it.Page < c.PageFrom) {
			c.PageFrom = it.Page
		}
		if it.Page > c.PageTo {
			c.PageTo = it.Page
		}
	}

	c.Content = sb.String()
	return c
}
