// Package tokenizer provides token counting for DashScope models.
//
// DashScope does not publish a client-side tokenizer, so counts are an
// approximation based on text length.
package tokenizer

import "unicode/utf8"

// Tokenizer counts and splits text into tokens.
type Tokenizer interface {
	CountTokens(text string) int
	GetTokens(text string) []string
}

// LengthTokenizer treats every rune as one token.
type LengthTokenizer struct{}

var _ Tokenizer = LengthTokenizer{}

// CountTokens returns the number of runes in text.
func (LengthTokenizer) CountTokens(text string) int {
	return utf8.RuneCountInString(text)
}

// GetTokens splits text into single-rune tokens.
func (LengthTokenizer) GetTokens(text string) []string {
	if text == "" {
		return nil
	}
	tokens := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		tokens = append(tokens, string(r))
	}
	return tokens
}
