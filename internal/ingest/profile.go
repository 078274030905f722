package ingest

import (
	"slices"

	"github.com/binz0209/vihis/internal/sentence"
)

const (
	DefaultChunkTokens   = 400
	DefaultOverlapTokens = 60
	DefaultThreshold     = 0.7

	// MinPageChars: pages shorter than this merge into the following page.
	MinPageChars = 400
)

// Profile holds the per-source knobs of a pipeline run.
type Profile struct {
	MinChunkTokens            int      `json:"min_chunk_tokens"`
	OverlapTokens             int      `json:"overlap_tokens"`
	HeaderFooterFreqThreshold float64  `json:"header_footer_freq_threshold"`
	Abbreviations             []string `json:"abbreviations"`
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() Profile {
	return Profile{
		MinChunkTokens:            DefaultChunkTokens,
		OverlapTokens:             DefaultOverlapTokens,
		HeaderFooterFreqThreshold: DefaultThreshold,
		Abbreviations:             slices.Clone(sentence.DefaultAbbreviations),
	}
}

// withDefaults returns a copy with zero or invalid fields replaced.
// A nil profile yields DefaultProfile.
func (p *Profile) withDefaults() Profile {
	if p == nil {
		return DefaultProfile()
	}
	out := *p
	if out.MinChunkTokens <= 0 {
		out.MinChunkTokens = DefaultChunkTokens
	}
	if out.OverlapTokens < 0 || out.OverlapTokens >= out.MinChunkTokens {
		out.OverlapTokens = min(DefaultOverlapTokens, out.MinChunkTokens/2)
	}
	if out.HeaderFooterFreqThreshold <= 0 || out.HeaderFooterFreqThreshold > 1 {
		out.HeaderFooterFreqThreshold = DefaultThreshold
	}
	if out.Abbreviations == nil {
		out.Abbreviations = slices.Clone(sentence.DefaultAbbreviations)
	}
	return out
}
