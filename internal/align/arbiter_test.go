package align_test

import (
	"testing"

	"github.com/cueline/cueline/internal/align"
)

func TestArbiter_SmallJumpCommitsImmediately(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(10)

	if !a.Offer(18) {
		t.Error("Offer(18) from 10 should commit immediately")
	}
	if got := a.Confirmed(); got != 18 {
		t.Errorf("Confirmed() = %d, want 18", got)
	}
}

func TestArbiter_BackwardCandidateIgnored(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(20)

	if a.Offer(15) {
		t.Error("backward candidate advanced the cursor")
	}
	if got := a.Confirmed(); got != 20 {
		t.Errorf("Confirmed() = %d, want 20", got)
	}
}

func TestArbiter_EqualCandidateIsNotAnAdvance(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(20)

	if a.Offer(20) {
		t.Error("Offer of the current confirmed index reported an advance")
	}
	if got := a.Confirmed(); got != 20 {
		t.Errorf("Confirmed() = %d, want 20", got)
	}
}

func TestArbiter_LargeJumpNeedsConfirmation(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(10)

	// 10 → 40 is a jump of 30, beyond the small-jump limit.
	if a.Offer(40) {
		t.Fatal("first large-jump candidate committed immediately")
	}
	if a.Confirmed() != 10 {
		t.Fatalf("Confirmed() = %d after one candidate, want 10", a.Confirmed())
	}

	// Second candidate in the same region (±3) still only pending.
	if a.Offer(41) {
		t.Fatal("second large-jump candidate committed early")
	}

	// Third consistent candidate commits the first pending target.
	if !a.Offer(39) {
		t.Fatal("third consistent candidate did not commit")
	}
	if got := a.Confirmed(); got != 40 {
		t.Errorf("Confirmed() = %d, want 40 (the first pending candidate)", got)
	}
}

func TestArbiter_InconsistentCandidateRestartsPending(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(10)

	a.Offer(40)
	a.Offer(41)
	// A candidate outside ±3 of the pending target restarts the count.
	if a.Offer(70) {
		t.Fatal("divergent candidate committed")
	}
	if a.Offer(70) {
		t.Fatal("second candidate at the new target committed early")
	}
	if !a.Offer(71) {
		t.Fatal("third candidate at the new target did not commit")
	}
	if got := a.Confirmed(); got != 70 {
		t.Errorf("Confirmed() = %d, want 70", got)
	}
}

func TestArbiter_SmallJumpClearsPending(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(10)

	a.Offer(40)
	a.Offer(40)
	// Normal advance clears the pending large jump; the later 40 must start
	// a fresh count rather than inherit two confirmations.
	if !a.Offer(12) {
		t.Fatal("small jump did not commit")
	}
	if a.Offer(40) {
		t.Fatal("stale pending state committed a large jump after one candidate")
	}
	if got := a.Confirmed(); got != 12 {
		t.Errorf("Confirmed() = %d, want 12", got)
	}
}

func TestArbiter_ResyncClearsPending(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Offer(40)
	a.Offer(40)
	a.Resync(25)

	if got := a.Confirmed(); got != 25 {
		t.Fatalf("Confirmed() = %d after Resync, want 25", got)
	}
	// One more candidate must not complete the pre-resync count.
	if a.Offer(40) {
		t.Error("pending state survived Resync")
	}
}

func TestArbiter_ResyncClampsNegative(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(-5)
	if got := a.Confirmed(); got != 0 {
		t.Errorf("Confirmed() = %d, want 0", got)
	}
}

func TestArbiter_DisplayIndex(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter()
	a.Resync(10)

	if got := a.DisplayIndex(99); got != 14 {
		t.Errorf("DisplayIndex(99) = %d, want 14", got)
	}
	// Clamped to the last script index near the end.
	if got := a.DisplayIndex(12); got != 12 {
		t.Errorf("DisplayIndex(12) = %d, want 12", got)
	}
}

func TestArbiter_ConfiguredThresholds(t *testing.T) {
	t.Parallel()

	a := align.NewArbiter(
		align.WithMaxSmallJump(5),
		align.WithConfirmThreshold(2),
		align.WithLookAhead(1),
	)

	if a.Offer(8) {
		t.Fatal("jump of 8 committed with max small jump 5")
	}
	if !a.Offer(8) {
		t.Fatal("second candidate did not commit with threshold 2")
	}
	if got := a.Confirmed(); got != 8 {
		t.Errorf("Confirmed() = %d, want 8", got)
	}
	if got := a.DisplayIndex(99); got != 9 {
		t.Errorf("DisplayIndex(99) = %d, want 9", got)
	}
}
