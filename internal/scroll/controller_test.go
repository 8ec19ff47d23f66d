package scroll_test

import (
	"math"
	"testing"

	"github.com/cueline/cueline/internal/script"
	"github.com/cueline/cueline/internal/scroll"
)

// testLayout returns a layout with words words spaced 60 points apart and a
// 600-point viewport.
func testLayout(words int) *script.Layout {
	l := script.NewLayout()
	positions := make([]float64, words)
	for i := range positions {
		positions[i] = float64(i) * 60
	}
	l.SetPositions(positions)
	l.SetViewportHeight(600)
	return l
}

func TestConstantMode_PointsPerSecond(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeConstant)
	c.SetPlaying(true)

	// Defaults: (140 wpm / 8 words per line / 60 s) × (48 + 12) pt = 17.5 pt/s.
	c.Tick(1.0)
	if got := c.Offset(); math.Abs(got-17.5) > 1e-9 {
		t.Errorf("Offset() after 1s = %v, want 17.5", got)
	}

	// Speed scales linearly with dt.
	c.Tick(0.5)
	if got := c.Offset(); math.Abs(got-26.25) > 1e-9 {
		t.Errorf("Offset() after 1.5s = %v, want 26.25", got)
	}
}

func TestConstantMode_ConfiguredSpeed(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100),
		scroll.WithWPM(240),
		scroll.WithFontMetrics(30, 10),
	)
	c.SetMode(scroll.ModeConstant)
	c.SetPlaying(true)

	// (240 / 8 / 60) × (30 + 10) = 20 pt/s.
	c.Tick(1.0)
	if got := c.Offset(); math.Abs(got-20) > 1e-9 {
		t.Errorf("Offset() = %v, want 20", got)
	}
}

func TestConstantMode_PlayingGate(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeConstant)

	c.Tick(1.0)
	if got := c.Offset(); got != 0 {
		t.Errorf("Offset() moved to %v while paused", got)
	}

	c.SetPlaying(true)
	c.Tick(1.0)
	moved := c.Offset()
	if moved == 0 {
		t.Fatal("Offset() did not move while playing")
	}

	c.SetPlaying(false)
	c.Tick(1.0)
	if got := c.Offset(); got != moved {
		t.Errorf("Offset() = %v after pausing, want %v", got, moved)
	}
}

func TestSetPlaying_IgnoredOutsideConstantMode(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetPlaying(true)
	if c.Playing() {
		t.Error("Playing() = true in ModeOff")
	}
}

func TestVoiceMode_SmoothedConvergence(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeVoice)

	// Word 10 sits at 600 pt; centering it targets offset 300.
	c.ResyncHighlight(10)

	c.Tick(0.016)
	first := c.Offset()
	if math.Abs(first-39) > 1e-9 { // 0.13 × 300
		t.Fatalf("Offset() after one tick = %v, want 39", first)
	}

	// Monotone approach, then an exact snap once the remainder is small.
	prev := first
	for i := 0; i < 100; i++ {
		c.Tick(0.016)
		got := c.Offset()
		if got < prev || got > 300 {
			t.Fatalf("Offset() = %v after tick %d, previous %v; not a monotone approach to 300", got, i, prev)
		}
		prev = got
	}
	if got := c.Offset(); got != 300 {
		t.Errorf("Offset() = %v after convergence, want exactly 300", got)
	}
}

func TestVoiceMode_HighlightStepRates(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeVoice)
	c.ResyncHighlight(0)
	c.SetHighlightTarget(10)

	// Gap above 5: one step per 0.04 s.
	for i := 0; i < 5; i++ {
		c.Tick(0.04)
	}
	if got := c.HighlightIndex(); got != 5 {
		t.Fatalf("HighlightIndex() = %d after fast phase, want 5", got)
	}

	// Gap 5 needs the medium interval; a single 0.04 s tick is not enough.
	c.Tick(0.04)
	if got := c.HighlightIndex(); got != 5 {
		t.Fatalf("HighlightIndex() = %d, medium-rate step fired early", got)
	}
	c.Tick(0.04)
	if got := c.HighlightIndex(); got != 6 {
		t.Fatalf("HighlightIndex() = %d, want 6 after 0.08 s", got)
	}

	// Run the animation out; it must stop exactly at the target.
	for i := 0; i < 40; i++ {
		c.Tick(0.04)
	}
	if got := c.HighlightIndex(); got != 10 {
		t.Errorf("HighlightIndex() = %d, want 10", got)
	}
}

func TestSetHighlightTarget_NeverMovesBackward(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeVoice)
	c.ResyncHighlight(8)

	c.SetHighlightTarget(3)
	for i := 0; i < 20; i++ {
		c.Tick(0.04)
	}
	if got := c.HighlightIndex(); got != 8 {
		t.Errorf("HighlightIndex() = %d, want 8 (backward target applied)", got)
	}
}

func TestSetHighlightTarget_IgnoredOutsideVoiceMode(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetHighlightTarget(5)
	c.SetMode(scroll.ModeVoice)

	// The pre-mode target must not have stuck.
	for i := 0; i < 20; i++ {
		c.Tick(0.04)
	}
	if got := c.HighlightIndex(); got != -1 {
		t.Errorf("HighlightIndex() = %d, want -1", got)
	}
}

func TestRetarget_Hysteresis(t *testing.T) {
	t.Parallel()

	// Zero viewport height puts the scroll target directly at the word
	// position; word 1 is only 2 points from word 0.
	l := script.NewLayout()
	l.SetPositions([]float64{0, 2, 100})
	c := scroll.New(l)
	c.SetMode(scroll.ModeVoice)
	c.ResyncHighlight(0)

	c.SetHighlightTarget(1)
	for i := 0; i < 10; i++ {
		c.Tick(0.12)
	}
	if got := c.HighlightIndex(); got != 1 {
		t.Fatalf("HighlightIndex() = %d, want 1", got)
	}
	// A 2-point retarget is below the hysteresis threshold.
	if got := c.Offset(); got != 0 {
		t.Errorf("Offset() = %v, want 0 (jitter-sized retarget applied)", got)
	}

	// A 100-point retarget moves.
	c.SetHighlightTarget(2)
	for i := 0; i < 200; i++ {
		c.Tick(0.12)
	}
	if got := c.Offset(); got != 100 {
		t.Errorf("Offset() = %v, want 100", got)
	}
}

func TestManualScroll_ResyncsToReadingLine(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(10))
	c.SetMode(scroll.ModeVoice)

	// Offset 120 centers 420; word 7 sits at exactly 420.
	idx, ok := c.ManualScroll(120)
	if !ok {
		t.Fatal("ManualScroll reported no layout")
	}
	if idx != 7 {
		t.Errorf("resync index = %d, want 7", idx)
	}
	if got := c.Offset(); got != 120 {
		t.Errorf("Offset() = %v, want 120 (manual delta must bypass smoothing)", got)
	}
	if got := c.HighlightIndex(); got != 7 {
		t.Errorf("HighlightIndex() = %d, want 7", got)
	}
}

func TestManualScroll_ClampsAtTop(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(10))
	c.SetMode(scroll.ModeVoice)

	idx, ok := c.ManualScroll(-500)
	if !ok {
		t.Fatal("ManualScroll reported no layout")
	}
	if got := c.Offset(); got != 0 {
		t.Errorf("Offset() = %v, want 0", got)
	}
	// Center of the clamped viewport is 300; word 5 sits there.
	if idx != 5 {
		t.Errorf("resync index = %d, want 5", idx)
	}
}

func TestManualScroll_NoLayout(t *testing.T) {
	t.Parallel()

	c := scroll.New(script.NewLayout())
	c.SetMode(scroll.ModeVoice)

	if _, ok := c.ManualScroll(50); ok {
		t.Error("ManualScroll reported a resync index with no layout")
	}
}

func TestModeTransition_Continuity(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.SetMode(scroll.ModeConstant)
	c.SetPlaying(true)
	c.Tick(2.0)
	at := c.Offset()
	if at == 0 {
		t.Fatal("setup: constant mode did not move")
	}

	// Entering voice mode seeds the target from the current position, so the
	// first ticks produce no jump.
	c.SetMode(scroll.ModeVoice)
	c.Tick(0.016)
	if got := c.Offset(); got != at {
		t.Errorf("Offset() = %v right after entering voice mode, want %v", got, at)
	}
	if got := c.HighlightIndex(); got != -1 {
		t.Errorf("HighlightIndex() = %d after mode switch, want -1", got)
	}
}

func TestModeOff_TickIsInert(t *testing.T) {
	t.Parallel()

	c := scroll.New(testLayout(100))
	c.Tick(5.0)
	if got := c.Offset(); got != 0 {
		t.Errorf("Offset() = %v in ModeOff, want 0", got)
	}
}
