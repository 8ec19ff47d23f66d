package align

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/cueline/cueline/internal/script"
)

const (
	defaultPhraseLength     = 6
	defaultSearchWindow     = 30
	defaultMaxDistanceRatio = 0.4
	defaultProximityWeight  = 0.3

	// lengthSlack widens the candidate substring length around the phrase
	// length to tolerate word merges/splits and filler leakage.
	lengthSlack = 2
)

// LocatorOption is a functional option for configuring a [Locator].
type LocatorOption func(*Locator)

// WithPhraseLength sets how many trailing stable tokens form the match
// phrase. Default: 6.
func WithPhraseLength(n int) LocatorOption {
	return func(l *Locator) {
		l.phraseLength = n
	}
}

// WithSearchWindow sets the forward search window size in words. The locator
// never searches backward. Default: 30.
func WithSearchWindow(n int) LocatorOption {
	return func(l *Locator) {
		l.searchWindow = n
	}
}

// WithMaxDistanceRatio sets the maximum accepted edit distance as a fraction
// of the spoken phrase length in characters. Default: 0.4.
func WithMaxDistanceRatio(r float64) LocatorOption {
	return func(l *Locator) {
		l.maxDistanceRatio = r
	}
}

// WithProximityWeight sets the per-word penalty added to a candidate's score
// for its distance from the search origin, biasing the locator toward
// nearby matches over globally-better-but-distant ones. Default: 0.3.
func WithProximityWeight(w float64) LocatorOption {
	return func(l *Locator) {
		l.proximityWeight = w
	}
}

// Locator finds the best-matching position of a short spoken phrase within a
// bounded forward window of the script. Matching is approximate: character
// level Levenshtein distance over space-joined word strings, with a
// proximity penalty. Cost is bounded by window size × length-variant count ×
// edit-distance cost on short strings, independent of script length.
//
// Locator is read-only after construction and safe for concurrent use.
type Locator struct {
	phraseLength     int
	searchWindow     int
	maxDistanceRatio float64
	proximityWeight  float64
}

// NewLocator returns a [Locator] configured with the supplied options.
func NewLocator(opts ...LocatorOption) *Locator {
	l := &Locator{
		phraseLength:     defaultPhraseLength,
		searchWindow:     defaultSearchWindow,
		maxDistanceRatio: defaultMaxDistanceRatio,
		proximityWeight:  defaultProximityWeight,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// PhraseLength returns the configured match phrase length.
func (l *Locator) PhraseLength() int { return l.phraseLength }

// Locate searches ix for the phrase within [searchFrom, searchFrom+window)
// and returns the script index of the last word of the best candidate.
//
// phrase should be the trailing stable, filtered spoken tokens; at least
// two are required. For every window start position and every candidate
// length in [len(phrase)-2, len(phrase)+2], the corresponding script
// substring is scored by Levenshtein distance plus a proximity penalty.
// Candidates whose raw distance exceeds maxDistanceRatio × phrase length
// are rejected. ok is false when nothing qualifies — the cursor simply
// holds, this is never an error.
func (l *Locator) Locate(ix *script.Index, phrase []string, searchFrom int) (endIndex int, ok bool) {
	if len(phrase) < minStableTokens || searchFrom < 0 || searchFrom >= ix.Len() {
		return 0, false
	}

	spoken := strings.Join(phrase, " ")
	maxDist := l.maxDistanceRatio * float64(len(spoken))

	minLen := len(phrase) - lengthSlack
	if minLen < 1 {
		minLen = 1
	}
	maxLen := len(phrase) + lengthSlack

	bestScore := 0.0
	bestEnd := -1

	limit := searchFrom + l.searchWindow
	if limit > ix.Len() {
		limit = ix.Len()
	}

	for start := searchFrom; start < limit; start++ {
		for n := minLen; n <= maxLen; n++ {
			if start+n > ix.Len() {
				break
			}
			candidate := ix.Slice(start, n)
			dist := float64(matchr.Levenshtein(spoken, candidate))
			if dist > maxDist {
				continue
			}
			score := dist + l.proximityWeight*float64(start-searchFrom)
			if bestEnd < 0 || score < bestScore {
				bestScore = score
				bestEnd = start + n - 1
			}
		}
	}

	if bestEnd < 0 {
		return 0, false
	}
	return bestEnd, true
}
