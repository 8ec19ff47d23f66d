package align

import "github.com/cueline/cueline/pkg/provider/stt"

// DefaultConfidenceThreshold is the per-token confidence below which a
// recognized token is dropped before stable-prefix computation. A zero or
// absent score means the provider reported no confidence and the token is
// accepted.
const DefaultConfidenceThreshold = 0.4

// singleFillers are single-word disfluencies stripped before matching.
var singleFillers = map[string]struct{}{
	"um":   {},
	"uh":   {},
	"er":   {},
	"ah":   {},
	"like": {},
	"hmm":  {},
	"mhm":  {},
	"uhm":  {},
}

// bigramFillers are two-word disfluencies, keyed by first word. Checked
// greedily left to right; a match consumes both words.
var bigramFillers = map[string]string{
	"you":  "know",
	"i":    "mean",
	"sort": "of",
	"kind": "of",
}

// GateConfidence returns the texts of tokens whose confidence passes the
// threshold. Tokens with a confidence of exactly zero are accepted, since
// zero means the recognizer supplied no score rather than a bad one.
func GateConfidence(tokens []stt.Token, threshold float64) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t.Confidence > 0 && t.Confidence < threshold {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}

// FilterFillers removes filler tokens from tokens and returns the remainder.
// Bigram fillers are checked first at each position so that "kind of" is
// consumed as a unit rather than leaving a stray "of"; single-word fillers
// are checked second. The input slice is not modified.
func FilterFillers(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	i := 0
	for i < len(tokens) {
		if second, ok := bigramFillers[tokens[i]]; ok && i+1 < len(tokens) && tokens[i+1] == second {
			i += 2
			continue
		}
		if _, ok := singleFillers[tokens[i]]; ok {
			i++
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}
