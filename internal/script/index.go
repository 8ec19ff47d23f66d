// Package script prepares reference scripts for voice tracking. An Index is
// the tokenized, normalized form of a script: an ordered, 0-based sequence of
// word tokens against which recognized speech is matched. A Layout maps word
// indices to rendered vertical offsets, fed in by the display client and
// consumed by the scroll control loop.
package script

import (
	"strings"
	"unicode"
)

// Index is the tokenized form of one prepared script. It is immutable after
// construction; token indices are stable for the lifetime of the script, so
// cursor positions held elsewhere remain valid across resyncs.
type Index struct {
	tokens []string
}

// Prepare tokenizes and normalizes rawText into an Index. Tokens are split
// on whitespace, lowercased, and stripped of punctuation; tokens that end up
// empty are discarded. Prepare is deterministic: the same raw text always
// yields the same token count and indices.
func Prepare(rawText string) *Index {
	fields := strings.Fields(rawText)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := Normalize(f)
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
	}
	return &Index{tokens: tokens}
}

// Normalize lowercases w and removes punctuation and symbol runes. It is the
// single normalization rule shared by script preparation and the alignment
// pipeline, so spoken tokens and script tokens compare under the same form.
func Normalize(w string) string {
	var b strings.Builder
	b.Grow(len(w))
	for _, r := range strings.ToLower(w) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Len returns the number of tokens in the script.
func (ix *Index) Len() int { return len(ix.tokens) }

// Token returns the normalized token at index i.
// Panics if i is out of range, matching slice semantics.
func (ix *Index) Token(i int) string { return ix.tokens[i] }

// Tokens returns a copy of the token sequence.
func (ix *Index) Tokens() []string {
	out := make([]string, len(ix.tokens))
	copy(out, ix.tokens)
	return out
}

// Slice returns the space-joined substring of tokens in [from, from+n),
// clamped to the script bounds. Used by the fuzzy locator to build candidate
// phrases.
func (ix *Index) Slice(from, n int) string {
	if from < 0 {
		from = 0
	}
	end := from + n
	if end > len(ix.tokens) {
		end = len(ix.tokens)
	}
	if from >= end {
		return ""
	}
	return strings.Join(ix.tokens[from:end], " ")
}
