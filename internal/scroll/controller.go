// Package scroll implements the per-tick control loop that turns a discrete
// word cursor into smooth visual motion. It drives an exponentially smoothed
// scroll offset and a rate-limited highlight-advance animation toward the
// arbiter's display index, or, in the alternate mode, advances the offset at
// a constant speed derived from a words-per-minute setting.
//
// The Controller is a pure state machine over Tick(dt): no timers, no
// goroutines. The owning session calls Tick from its serialized run loop,
// which makes the loop deterministic and replayable in tests.
package scroll

import (
	"math"

	"github.com/cueline/cueline/internal/script"
)

// Mode selects the scrolling behaviour.
type Mode string

const (
	// ModeOff performs no per-tick updates.
	ModeOff Mode = "off"

	// ModeConstant advances the offset at a constant speed derived from the
	// words-per-minute setting, while playing.
	ModeConstant Mode = "constant"

	// ModeVoice tracks the voice-aligned cursor with smoothed catch-up
	// motion. Mutually exclusive with ModeConstant.
	ModeVoice Mode = "voice"
)

const (
	defaultAlpha        = 0.13
	defaultWPM          = 140
	defaultWordsPerLine = 8
	defaultFontSize     = 48
	defaultLineSpacing  = 12

	// minRetarget is the hysteresis threshold (in points) below which a
	// recomputed scroll target is ignored, guarding against micro-jitter
	// from sub-pixel position recomputation.
	minRetarget = 3.0

	// snapDistance is the remaining offset difference below which the
	// smoothed offset snaps to its target instead of creeping
	// asymptotically.
	snapDistance = 0.5

	// Highlight step intervals in seconds, by remaining gap. Larger gaps
	// close faster so a burst of recognized words produces a visible
	// catch-up animation rather than an instant jump.
	stepFast   = 0.04 // gap > 5
	stepMedium = 0.08 // gap > 2
	stepSlow   = 0.12
)

// Option is a functional option for configuring a [Controller].
type Option func(*Controller)

// WithAlpha sets the exponential smoothing factor applied to the scroll
// offset each tick. Default: 0.13 (about 350 ms to 95% convergence at 60 Hz).
func WithAlpha(a float64) Option {
	return func(c *Controller) {
		c.alpha = a
	}
}

// WithWPM sets the constant-mode speed in words per minute. Default: 140.
func WithWPM(wpm float64) Option {
	return func(c *Controller) {
		c.wpm = wpm
	}
}

// WithFontMetrics sets the font size and line spacing (in points) used to
// convert words per minute into points per second. Defaults: 48 and 12.
func WithFontMetrics(fontSize, lineSpacing float64) Option {
	return func(c *Controller) {
		c.fontSize = fontSize
		c.lineSpacing = lineSpacing
	}
}

// Controller owns the mutable scroll state for one session. It is not
// goroutine-safe; the owning session confines all calls to one goroutine.
type Controller struct {
	layout *script.Layout

	alpha        float64
	wpm          float64
	wordsPerLine float64
	fontSize     float64
	lineSpacing  float64

	mode    Mode
	playing bool

	displayOffset float64
	targetOffset  float64

	displayHighlight int
	targetHighlight  int
	stepTimer        float64
}

// New creates a [Controller] reading word positions from layout.
func New(layout *script.Layout, opts ...Option) *Controller {
	c := &Controller{
		layout:           layout,
		alpha:            defaultAlpha,
		wpm:              defaultWPM,
		wordsPerLine:     defaultWordsPerLine,
		fontSize:         defaultFontSize,
		lineSpacing:      defaultLineSpacing,
		mode:             ModeOff,
		displayHighlight: -1,
		targetHighlight:  -1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Mode returns the active scrolling mode.
func (c *Controller) Mode() Mode { return c.mode }

// Offset returns the offset rendered this frame.
func (c *Controller) Offset() float64 { return c.displayOffset }

// HighlightIndex returns the currently highlighted word index, or -1 when no
// highlight is active.
func (c *Controller) HighlightIndex() int { return c.displayHighlight }

// SetMode switches the scrolling mode. Entering ModeVoice seeds both offsets
// from the current scroll position (continuity — no visual jump), clears the
// playing flag, and clears highlight state. Leaving ModeVoice clears the
// highlight indices. Switching to the already-active mode is a no-op.
func (c *Controller) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.mode = m
	switch m {
	case ModeVoice:
		c.playing = false
		c.targetOffset = c.displayOffset
		c.clearHighlight()
	default:
		c.clearHighlight()
	}
}

// SetPlaying starts or stops constant-speed scrolling. Ignored outside
// ModeConstant.
func (c *Controller) SetPlaying(playing bool) {
	if c.mode != ModeConstant {
		return
	}
	c.playing = playing
}

// Playing reports whether constant-speed scrolling is active.
func (c *Controller) Playing() bool { return c.mode == ModeConstant && c.playing }

// SetWPM updates the constant-mode speed.
func (c *Controller) SetWPM(wpm float64) { c.wpm = wpm }

// SetFontMetrics updates the font size and line spacing used for the
// wpm-to-points conversion.
func (c *Controller) SetFontMetrics(fontSize, lineSpacing float64) {
	c.fontSize = fontSize
	c.lineSpacing = lineSpacing
}

// SetHighlightTarget points the highlight animation at the given word index
// (the arbiter's display index). The highlight advances toward it over the
// following ticks; it never moves backward except through [ResyncHighlight].
func (c *Controller) SetHighlightTarget(index int) {
	if c.mode != ModeVoice {
		return
	}
	if index > c.targetHighlight {
		c.targetHighlight = index
	}
}

// ResyncHighlight sets both highlight indices to index, bypassing the
// catch-up animation. Used after a manual reposition.
func (c *Controller) ResyncHighlight(index int) {
	c.displayHighlight = index
	c.targetHighlight = index
	c.stepTimer = 0
	c.retargetOffset()
}

// Tick advances the control loop by dt seconds. It must be called once per
// display refresh with the measured time since the previous tick.
func (c *Controller) Tick(dt float64) {
	switch c.mode {
	case ModeConstant:
		if !c.playing {
			return
		}
		c.displayOffset += c.pointsPerSecond() * dt
	case ModeVoice:
		c.advanceHighlight(dt)
		c.smoothOffset()
	}
	if c.displayOffset < 0 {
		c.displayOffset = 0
	}
}

// ManualScroll applies a user scroll delta during voice tracking. The delta
// bypasses smoothing for immediate responsiveness, then the word nearest the
// new reading line (viewport center) becomes the highlight target. The
// returned index must be fed back to the alignment pipeline as a resync;
// ok is false when no layout has been reported yet.
func (c *Controller) ManualScroll(delta float64) (resyncIndex int, ok bool) {
	c.displayOffset += delta
	if c.displayOffset < 0 {
		c.displayOffset = 0
	}
	c.targetOffset = c.displayOffset

	idx, ok := c.layout.NearestIndex(c.displayOffset + c.layout.ViewportHeight()/2)
	if !ok {
		return 0, false
	}
	c.ResyncHighlight(idx)
	return idx, true
}

// pointsPerSecond converts the words-per-minute setting into vertical speed
// using the current line metrics and a fixed words-per-line estimate.
func (c *Controller) pointsPerSecond() float64 {
	return (c.wpm / c.wordsPerLine / 60.0) * (c.fontSize + c.lineSpacing)
}

// advanceHighlight steps the highlight toward its target at a gap-dependent
// rate, retargeting the scroll offset on every step.
func (c *Controller) advanceHighlight(dt float64) {
	if c.targetHighlight < 0 || c.displayHighlight >= c.targetHighlight {
		c.stepTimer = 0
		return
	}

	c.stepTimer += dt
	interval := stepSlow
	switch gap := c.targetHighlight - c.displayHighlight; {
	case gap > 5:
		interval = stepFast
	case gap > 2:
		interval = stepMedium
	}

	if c.stepTimer < interval {
		return
	}
	c.stepTimer = 0
	c.displayHighlight++
	c.retargetOffset()
}

// retargetOffset recomputes the scroll target so the highlighted word sits
// at the vertical center of the viewport. Targets that move less than the
// hysteresis threshold are ignored. A word not yet covered by the position
// map skips the update and keeps the last valid target.
func (c *Controller) retargetOffset() {
	if c.displayHighlight < 0 {
		return
	}
	pos, ok := c.layout.PositionOf(c.displayHighlight)
	if !ok {
		return
	}
	target := pos - c.layout.ViewportHeight()/2
	if target < 0 {
		target = 0
	}
	if math.Abs(target-c.targetOffset) <= minRetarget {
		return
	}
	c.targetOffset = target
}

// smoothOffset moves the display offset toward the target by the smoothing
// factor, snapping when the remainder is small enough to be invisible.
func (c *Controller) smoothOffset() {
	diff := c.targetOffset - c.displayOffset
	if math.Abs(diff) < snapDistance {
		c.displayOffset = c.targetOffset
		return
	}
	c.displayOffset += c.alpha * diff
}

func (c *Controller) clearHighlight() {
	c.displayHighlight = -1
	c.targetHighlight = -1
	c.stepTimer = 0
}
