package chunker

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

// word makes a space-free sentence of n runes so chunk content can be
// split back into its sentences.
func word(i, n int) string {
	s := fmt.Sprintf("s%03d", i)
	return s + strings.Repeat("x", n-len(s)-1) + "."
}

func sentences(lengths ...int) []Sentence {
	out := make([]Sentence, len(lengths))
	for i, n := range lengths {
		out[i] = Sentence{Text: word(i, n), Page: 1 + i/3}
	}
	return out
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 1},
		{"abc", 1},
		{strings.Repeat("a", 40), 10},
		{strings.Repeat("ệ", 8), 2}, // runes, not bytes
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("EstimateTokens(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestPack_RespectsBudget(t *testing.T) {
	in := sentences(40, 80, 24, 200, 16, 60, 60, 60, 600, 12, 44, 36, 80, 20)
	for _, overlap := range []int{0, 5, 15, 40} {
		chunks := PackAll(in, Config{TargetTokens: 30, OverlapTokens: overlap})
		if len(chunks) == 0 {
			t.Fatal("expected chunks")
		}
		for _, c := range chunks {
			parts := strings.Fields(c.Content)
			if c.ApproxTokens > 30 && len(parts) != 1 {
				t.Errorf("overlap %d: chunk %d has %d tokens over %d sentences", overlap, c.ChunkIndex, c.ApproxTokens, len(parts))
			}
		}
	}
}

func TestPack_OversizedSentenceStandsAlone(t *testing.T) {
	in := sentences(20, 2000, 20)
	chunks := PackAll(in, Config{TargetTokens: 50, OverlapTokens: 0})
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Content != in[1].Text {
		t.Errorf("expected oversized sentence alone, got %q", chunks[1].Content)
	}
	if chunks[1].ApproxTokens != 500 {
		t.Errorf("expected 500 tokens, got %d", chunks[1].ApproxTokens)
	}
}

func TestPack_OverlapReappears(t *testing.T) {
	in := sentences(40, 40, 40, 40, 40, 40, 40, 40, 40, 40)
	chunks := PackAll(in, Config{TargetTokens: 35, OverlapTokens: 8})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i := 0; i+1 < len(chunks); i++ {
		prev := strings.Fields(chunks[i].Content)
		next := strings.Fields(chunks[i+1].Content)
		tail := prev[len(prev)-1]
		if next[0] != tail {
			t.Errorf("chunk %d: expected head %q from previous tail, got %q", i+1, tail, next[0])
		}
	}
}

func TestPack_NoOverlap(t *testing.T) {
	in := sentences(40, 40, 40, 40)
	chunks := PackAll(in, Config{TargetTokens: 20, OverlapTokens: 0})
	var all []string
	for _, c := range chunks {
		all = append(all, strings.Fields(c.Content)...)
	}
	if len(all) != len(in) {
		t.Errorf("expected every sentence exactly once, got %d of %d", len(all), len(in))
	}
}

func TestPack_IndexesAndPages(t *testing.T) {
	in := sentences(40, 40, 40, 40, 40, 40, 40)
	chunks := PackAll(in, Config{TargetTokens: 25, OverlapTokens: 0})
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("expected index %d, got %d", i, c.ChunkIndex)
		}
		if c.PageFrom < 1 || c.PageTo < c.PageFrom {
			t.Errorf("chunk %d: bad page range %d-%d", i, c.PageFrom, c.PageTo)
		}
	}
	if last := chunks[len(chunks)-1]; last.PageTo != 3 {
		t.Errorf("expected last chunk to end on page 3, got %d", last.PageTo)
	}
}

func TestPack_Empty(t *testing.T) {
	if got := PackAll(nil, DefaultConfig()); len(got) != 0 {
		t.Errorf("expected no chunks, got %d", len(got))
	}
	if got := PackAll([]Sentence{{Text: "  "}}, DefaultConfig()); len(got) != 0 {
		t.Errorf("expected blank sentence skipped, got %d", len(got))
	}
}

func TestPack_Markers(t *testing.T) {
	in := []Sentence{
		{Text: "[Trang 1]", Page: 1, Marker: true},
		{Text: word(0, 40), Page: 1},
		{Text: word(1, 40), Page: 1},
		{Text: "[Trang 2]", Page: 2, Marker: true},
		{Text: word(2, 40), Page: 2},
	}
	chunks := PackAll(in, Config{TargetTokens: 24, OverlapTokens: 0})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if want := "[Trang 1]\n" + word(0, 40) + " " + word(1, 40); chunks[0].Content != want {
		t.Errorf("expected %q, got %q", want, chunks[0].Content)
	}
	if chunks[0].PageTo != 1 {
		t.Errorf("expected trailing marker carried forward, chunk 0 ends on page %d", chunks[0].PageTo)
	}
	if !strings.HasPrefix(chunks[1].Content, "[Trang 2]\n") {
		t.Errorf("expected chunk 1 to start with its marker, got %q", chunks[1].Content)
	}
}

func TestPack_MarkerNotCountedTowardBudget(t *testing.T) {
	in := []Sentence{
		{Text: "[Trang 1]", Page: 1, Marker: true},
		{Text: word(0, 40), Page: 1},
		{Text: word(1, 40), Page: 1},
		{Text: "[Trang 2]", Page: 2, Marker: true},
		{Text: word(2, 40), Page: 2},
	}
	for _, overlap := range []int{0, 10} {
		chunks := PackAll(in, Config{TargetTokens: 10, OverlapTokens: overlap})
		if len(chunks) != 3 {
			t.Fatalf("overlap %d: expected 3 chunks, got %d: %+v", overlap, len(chunks), chunks)
		}
		for _, c := range chunks {
			if c.ApproxTokens != 10 {
				t.Errorf("overlap %d: chunk %d: expected 10 tokens, got %d (%q)", overlap, c.ChunkIndex, c.ApproxTokens, c.Content)
			}
		}
		if want := "[Trang 1]\n" + word(0, 40); chunks[0].Content != want {
			t.Errorf("overlap %d: expected %q, got %q", overlap, want, chunks[0].Content)
		}
		if want := "[Trang 2]\n" + word(2, 40); chunks[2].Content != want {
			t.Errorf("overlap %d: expected %q, got %q", overlap, want, chunks[2].Content)
		}
	}
}

func TestPack_MarkerOnlyInputEmitsNothing(t *testing.T) {
	in := []Sentence{{Text: "[Trang 1]", Page: 1, Marker: true}}
	if got := PackAll(in, DefaultConfig()); len(got) != 0 {
		t.Errorf("expected no chunks, got %+v", got)
	}
}

func TestPack_Lazy(t *testing.T) {
	pulled := 0
	seq := func(yield func(Sentence) bool) {
		for i := 0; i < 100; i++ {
			pulled++
			if !yield(Sentence{Text: word(i, 40), Page: 1}) {
				return
			}
		}
	}
	for range Pack(seq, 25, 0) {
		break
	}
	if pulled >= 100 {
		t.Errorf("expected early stop, pulled %d", pulled)
	}
}

func TestPack_Deterministic(t *testing.T) {
	in := sentences(40, 80, 24, 200, 16, 60)
	a := PackAll(in, Config{TargetTokens: 30, OverlapTokens: 10})
	b := PackAll(in, Config{TargetTokens: 30, OverlapTokens: 10})
	if !slices.Equal(a, b) {
		t.Error("expected identical output for identical input")
	}
}
