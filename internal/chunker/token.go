package chunker

import "unicode/utf8"

// CharsPerToken is the characters-per-token ratio used for budgeting.
const CharsPerToken = 4

// EstimateTokens gives a rough token count: max(1, runes/4).
// Exact tokenization is not required for packing.
func EstimateTokens(text string) int {
	return max(1, utf8.RuneCountInString(text)/CharsPerToken)
}
