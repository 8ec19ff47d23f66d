// Package align implements the voice-to-script alignment pipeline: stable
// prefix extraction across revised recognition hypotheses, disfluency
// filtering, fuzzy phrase location within the script, and debounced
// forward-only cursor arbitration.
//
// The pipeline is deliberately tolerant of recognition noise: wrong or
// garbled tokens are absorbed by edit-distance matching, and implausible
// jumps need repeated confirmation before they move the cursor. Failure to
// match is never an error — the cursor simply holds until a later hypothesis
// matches.
package align

// minStableTokens is the minimum number of stable tokens required before a
// hypothesis carries enough trustworthy signal to attempt a match.
const minStableTokens = 2

// StablePrefix returns the length of the longest common prefix of prev and
// cur, comparing token-for-token and stopping at the first mismatch.
//
// Streaming recognizers routinely rewrite the last few words of a hypothesis
// as more audio context arrives; only a prefix that survived one revision
// unchanged can be trusted as final. No partial-credit skipping is applied —
// a single mismatch ends the stable region.
func StablePrefix(prev, cur []string) int {
	n := len(prev)
	if len(cur) < n {
		n = len(cur)
	}
	for i := 0; i < n; i++ {
		if prev[i] != cur[i] {
			return i
		}
	}
	return n
}
