package stt

import "time"

// Hypothesis is a streaming recognizer's current best guess for the entire
// utterance so far. Each new Hypothesis fully replaces the previous one and
// may revise any suffix of it; only an unchanged leading portion can be
// treated as final. Consumers that need stability must compare successive
// hypotheses themselves (see internal/align).
type Hypothesis struct {
	// Tokens is the ordered word sequence of the current guess.
	Tokens []Token

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report one.
	Confidence float64

	// Timestamp marks when the underlying audio started, relative to
	// session start. Zero when the provider does not report timing.
	Timestamp time.Duration
}

// Token is a single recognized word within a Hypothesis.
type Token struct {
	// Text is the recognized word as emitted by the provider. Callers are
	// responsible for normalization (lowercasing, punctuation stripping).
	Text string

	// Confidence is the per-word confidence score (0.0–1.0). Zero means
	// the provider supplied no per-word confidence and the token should be
	// accepted as-is.
	Confidence float64
}

// Words returns the token texts as a plain string slice.
func (h Hypothesis) Words() []string {
	out := make([]string, len(h.Tokens))
	for i, t := range h.Tokens {
		out[i] = t.Text
	}
	return out
}
