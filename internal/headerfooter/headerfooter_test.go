package headerfooter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/binz0209/vihis/internal/models"
)

func pages(raws ...string) []models.PageText {
	out := make([]models.PageText, len(raws))
	for i, r := range raws {
		out[i] = models.PageText{PageNumber: i + 1, Raw: r}
	}
	return out
}

func TestDetectRepeatedHeader(t *testing.T) {
	ps := pages(
		"Header Line 1\nNội dung trang một\n1",
		"Header Line 1\nNội dung trang hai\n2",
		"Header Line 1\nNội dung trang ba\n3",
	)
	header, footer := Detect(ps, DefaultHeadLines, DefaultFootLines, 0.7)
	if _, ok := header["header line 1"]; !ok {
		t.Errorf("expected header line detected, got %v", header)
	}
	if _, ok := footer[PageSentinel]; !ok {
		t.Errorf("expected page number sentinel in footer, got %v", footer)
	}
}

func TestDetectDistinctLinesEmpty(t *testing.T) {
	ps := pages("Một\nHai", "Ba\nBốn", "Năm\nSáu")
	header, footer := Detect(ps, DefaultHeadLines, DefaultFootLines, 0.7)
	if len(header) != 0 || len(footer) != 0 {
		t.Errorf("expected empty sets, got header=%v footer=%v", header, footer)
	}
}

func TestDetectThresholdRoundsUp(t *testing.T) {
	// ceil(0.7*3) = 3, so a line on 2 of 3 pages is not boilerplate.
	ps := pages("Tựa\nA", "Tựa\nB", "Khác\nC")
	header, _ := Detect(ps, 1, 0, 0.7)
	if len(header) != 0 {
		t.Errorf("expected no header at 2/3 pages, got %v", header)
	}
}

func TestDetectTwoPages(t *testing.T) {
	// ceil(0.7*2) = 2: both pages must carry the line.
	ps := pages("Tựa sách\nA", "Tựa sách\nB")
	header, _ := Detect(ps, 1, 0, 0.7)
	if _, ok := header["tựa sách"]; !ok {
		t.Errorf("expected header on 2/2 pages, got %v", header)
	}
	ps = pages("Tựa sách\nA", "Khác\nB")
	header, _ = Detect(ps, 1, 0, 0.7)
	if len(header) != 0 {
		t.Errorf("expected no header on 1/2 pages, got %v", header)
	}
}

func TestDetectSinglePage(t *testing.T) {
	header, footer := Detect(pages("Chỉ một trang\nnội dung"), 2, 2, 0.7)
	if len(header) != 0 || len(footer) != 0 {
		t.Errorf("expected no detection on a single page, got %v %v", header, footer)
	}
}

func TestDetectCountsOncePerPage(t *testing.T) {
	ps := pages("Lặp\nLặp\nA", "B\nC", "D\nE")
	header, _ := Detect(ps, 2, 0, 0.5)
	if len(header) != 0 {
		t.Errorf("expected repeated line on one page to count once, got %v", header)
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := map[string]string{
		"  Header   Line 1 ": "header line 1",
		"42":                 PageSentinel,
		" 7 ":                PageSentinel,
		"Trang 7":            "trang 7",
	}
	for in, want := range tests {
		if got := NormalizeLine(in); got != want {
			t.Errorf("NormalizeLine(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestStrip(t *testing.T) {
	header := Set{"header 1": {}}
	footer := Set{"footer 1": {}}
	out := Strip([]models.PageText{{PageNumber: 4, Raw: "Header 1\nContent 1\nFooter 1"}}, header, footer)
	if len(out) != 1 {
		t.Fatalf("expected 1 page, got %d", len(out))
	}
	got := out[0].Raw
	if !strings.Contains(got, "Content 1") {
		t.Errorf("expected content kept, got %q", got)
	}
	if strings.Contains(got, "Header 1") || strings.Contains(got, "Footer 1") {
		t.Errorf("expected header and footer removed, got %q", got)
	}
	if !strings.HasPrefix(got, "[Trang 4]\n") {
		t.Errorf("expected page marker first, got %q", got)
	}
}

func TestStripRepeatsAndPageNumbers(t *testing.T) {
	header := Set{"lịch sử việt nam": {}, "chương 1": {}}
	footer := Set{PageSentinel: {}}
	out := Strip(pages("Lịch sử Việt Nam\n\nChương 1\nThân bài\n\n12\n"), header, footer)
	if out[0].Raw != "[Trang 1]\nThân bài" {
		t.Errorf("expected %q, got %q", "[Trang 1]\nThân bài", out[0].Raw)
	}
}

func TestStripKeepsMiddleLines(t *testing.T) {
	header := Set{"x": {}}
	out := Strip(pages("Nội dung\nx\nCuối"), header, Set{})
	if out[0].Raw != "[Trang 1]\nNội dung\nx\nCuối" {
		t.Errorf("expected middle line kept, got %q", out[0].Raw)
	}
}

func TestStripEmptyPage(t *testing.T) {
	out := Strip(pages("Header 1"), Set{"header 1": {}}, Set{})
	if out[0].Raw != Marker(1) {
		t.Errorf("expected marker only, got %q", out[0].Raw)
	}
}

func TestMarkers(t *testing.T) {
	if !IsMarker(" [Trang 12] ") {
		t.Error("expected marker recognized")
	}
	if IsMarker("[Trang] 12") {
		t.Error("expected malformed marker rejected")
	}
	got := CollapseMarkers("[Trang 2]\n[Trang 3]\n\n[Trang 4]\nNội dung")
	if got != "[Trang 4]\nNội dung" {
		t.Errorf("expected collapsed markers, got %q", got)
	}
	m, body := SplitMarker(fmt.Sprintf("%s\nthân", Marker(9)))
	if m != "[Trang 9]" || body != "thân" {
		t.Errorf("expected marker and body split, got %q %q", m, body)
	}
}

func TestMarkerPage(t *testing.T) {
	if n, ok := MarkerPage(" [Trang 12] "); !ok || n != 12 {
		t.Errorf("expected 12, got %d %v", n, ok)
	}
	if _, ok := MarkerPage("Trang 12"); ok {
		t.Error("expected non-marker rejected")
	}
}
