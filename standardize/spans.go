package standardize

import (
	"unicode"

	"github.com/poiesic/termstd/core"
)

// DefaultMaxSpanTokens is the n-gram window for span extraction.
// Canonical terms are short phrases; four tokens covers the longest
// ones without letting the candidate count grow past O(tokens × 4).
const DefaultMaxSpanTokens = 4

// wordToken is a word's byte range in the source text.
type wordToken struct {
	start int
	end   int
}

// tokenize splits text into word tokens along whitespace and
// punctuation boundaries, retaining byte offsets. A word is a maximal
// run of letters and digits.
func tokenize(text string) []wordToken {
	var tokens []wordToken
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, wordToken{start: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, wordToken{start: start, end: len(text)})
	}
	return tokens
}

// ExtractSpans generates every contiguous n-gram of 1..maxTokens word
// tokens as a candidate span. The sequence is finite and bounded by
// O(tokens × maxTokens); spans are recomputed per call and never
// persisted.
func ExtractSpans(text string, maxTokens int) []core.CandidateSpan {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxSpanTokens
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	spans := make([]core.CandidateSpan, 0, len(tokens)*maxTokens)
	for i := range tokens {
		for n := 1; n <= maxTokens && i+n <= len(tokens); n++ {
			start := tokens[i].start
			end := tokens[i+n-1].end
			spans = append(spans, core.CandidateSpan{
				Start: start,
				End:   end,
				Text:  text[start:end],
			})
		}
	}
	return spans
}
