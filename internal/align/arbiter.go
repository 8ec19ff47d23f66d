package align

const (
	defaultMaxSmallJump     = 10
	defaultConfirmThreshold = 3
	defaultLookAhead        = 4

	// pendingTolerance is how far a repeated large-jump candidate may land
	// from the first pending candidate and still count as a confirmation.
	// The anchor is the first candidate, not a running average, so the
	// committed index may trail a slowly drifting candidate — a tolerated
	// looseness, covered by tests.
	pendingTolerance = 3
)

// ArbiterOption is a functional option for configuring an [Arbiter].
type ArbiterOption func(*Arbiter)

// WithMaxSmallJump sets the largest forward jump (in words) committed
// immediately without confirmation. Default: 10.
func WithMaxSmallJump(n int) ArbiterOption {
	return func(a *Arbiter) {
		a.maxSmallJump = n
	}
}

// WithConfirmThreshold sets how many consecutive consistent candidates a
// large jump needs before it is committed. Default: 3.
func WithConfirmThreshold(n int) ArbiterOption {
	return func(a *Arbiter) {
		a.confirmThreshold = n
	}
}

// WithLookAhead sets the fixed forward offset applied to the confirmed index
// when computing the display index, compensating for the latency between a
// word being spoken and the recognizer stabilizing it. Default: 4.
func WithLookAhead(n int) ArbiterOption {
	return func(a *Arbiter) {
		a.lookAhead = n
	}
}

// Arbiter enforces forward-only, debounced advancement of the confirmed
// cursor. Small forward jumps are trusted on sight — they are normal reading
// cadence. Large jumps are usually false matches (homophones, script loops,
// recognizer noise) and must repeat consistently before being trusted, so a
// single bad match never produces a jarring scroll jump.
//
// Arbiter is not goroutine-safe; the owning session confines all calls to
// one goroutine.
type Arbiter struct {
	maxSmallJump     int
	confirmThreshold int
	lookAhead        int

	confirmed     int
	pending       int
	pendingActive bool
	confirmations int
}

// NewArbiter returns an [Arbiter] starting at confirmed index 0.
func NewArbiter(opts ...ArbiterOption) *Arbiter {
	a := &Arbiter{
		maxSmallJump:     defaultMaxSmallJump,
		confirmThreshold: defaultConfirmThreshold,
		lookAhead:        defaultLookAhead,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Confirmed returns the highest script index accepted as spoken.
func (a *Arbiter) Confirmed() int { return a.confirmed }

// MaxSmallJump returns the configured immediate-commit jump limit.
func (a *Arbiter) MaxSmallJump() int { return a.maxSmallJump }

// Offer presents a candidate index from the locator. It returns true when
// the confirmed index advanced.
//
// Candidates behind the confirmed index are ignored (forward-only). A jump
// within the small-jump limit commits immediately and clears any pending
// large jump. A larger jump starts (or confirms) a pending target: when the
// same region (±3 of the first pending candidate) is offered confirmThreshold
// times in a row, the pending target commits.
func (a *Arbiter) Offer(candidate int) bool {
	if candidate < a.confirmed {
		return false
	}

	jump := candidate - a.confirmed
	if jump <= a.maxSmallJump {
		a.confirmed = candidate
		a.clearPending()
		return jump > 0
	}

	if a.pendingActive && abs(candidate-a.pending) <= pendingTolerance {
		a.confirmations++
	} else {
		a.pending = candidate
		a.pendingActive = true
		a.confirmations = 1
	}

	if a.confirmations >= a.confirmThreshold {
		a.confirmed = a.pending
		a.clearPending()
		return true
	}
	return false
}

// DisplayIndex returns the index the display should highlight and scroll
// toward: the confirmed index plus the look-ahead, clamped to the last
// script index.
func (a *Arbiter) DisplayIndex(lastScriptIndex int) int {
	d := a.confirmed + a.lookAhead
	if d > lastScriptIndex {
		d = lastScriptIndex
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Resync repositions the confirmed index (e.g., after a manual scroll) and
// clears all pending-jump state so stale history cannot immediately re-commit
// the abandoned position.
func (a *Arbiter) Resync(to int) {
	if to < 0 {
		to = 0
	}
	a.confirmed = to
	a.clearPending()
}

func (a *Arbiter) clearPending() {
	a.pending = 0
	a.pendingActive = false
	a.confirmations = 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
