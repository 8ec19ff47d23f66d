// Package session owns the live state of one tracking session: the prepared
// script, the alignment pipeline, and the scroll controller. A Session runs
// a single goroutine (the run loop) that selects over recognition hypothesis
// deliveries, control-loop ticks, and UI commands; every state mutation
// happens on that goroutine, which is the serialized execution context the
// engine requires — hypothesis deliveries are not rate-bounded and may
// arrive faster than one per display frame.
//
// Start and Stop form an explicit lifecycle pair; Stop is idempotent and
// fully resets pending-jump and highlight-animation state so nothing stale
// resurfaces when tracking is re-enabled.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cueline/cueline/internal/align"
	"github.com/cueline/cueline/internal/observe"
	"github.com/cueline/cueline/internal/script"
	"github.com/cueline/cueline/internal/scroll"
	"github.com/cueline/cueline/pkg/provider/stt"
)

// defaultTickInterval approximates a 60 Hz display refresh cadence.
const defaultTickInterval = 16667 * time.Microsecond

// ErrNotRunning is returned by operations that require a started session.
var ErrNotRunning = errors.New("session: not running")

// Frame is the per-tick state snapshot sent to the display collaborator.
type Frame struct {
	// Offset positions the scrolled content.
	Offset float64 `json:"offset"`

	// HighlightIndex is the word to render with emphasis, or -1.
	HighlightIndex int `json:"highlightIndex"`

	// Confirmed is the script index accepted as the speaker's position.
	Confirmed int `json:"confirmed"`

	// Mode is the active scrolling mode.
	Mode scroll.Mode `json:"mode"`
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithTickInterval overrides the control-loop tick cadence. Default: ~60 Hz.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		s.tickInterval = d
	}
}

// WithPipelineOptions sets the alignment options applied each time a script
// is prepared.
func WithPipelineOptions(opts ...align.PipelineOption) Option {
	return func(s *Session) {
		s.pipelineOpts = opts
	}
}

// WithScrollOptions sets the scroll-controller options.
func WithScrollOptions(opts ...scroll.Option) Option {
	return func(s *Session) {
		s.scrollOpts = opts
	}
}

// WithMetrics injects a [observe.Metrics] instance. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Session drives one tracking session. All exported methods are safe for
// concurrent use: mutations are forwarded to the run loop as commands.
type Session struct {
	tickInterval time.Duration
	pipelineOpts []align.PipelineOption
	scrollOpts   []scroll.Option
	metrics      *observe.Metrics

	layout *script.Layout
	ctrl   *scroll.Controller

	// Owned by the run loop after Start.
	index    *script.Index
	pipeline *align.Pipeline
	hyps     <-chan stt.Hypothesis

	cmds    chan func()
	frames  chan Frame
	resyncs chan int

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a stopped [Session]. Call Start to begin the run loop.
func New(opts ...Option) *Session {
	s := &Session{
		tickInterval: defaultTickInterval,
		layout:       script.NewLayout(),
		cmds:         make(chan func(), 32),
		frames:       make(chan Frame, 8),
		resyncs:      make(chan int, 8),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.ctrl = scroll.New(s.layout, s.scrollOpts...)
	return s
}

// Layout returns the layout map the display collaborator writes into.
func (s *Session) Layout() *script.Layout { return s.layout }

// Frames returns the per-tick frame stream. When the consumer falls behind,
// frames are dropped rather than blocking the run loop.
func (s *Session) Frames() <-chan Frame { return s.frames }

// Resyncs returns the stream of resynchronisation indices produced by manual
// scrolls, for the speech/session collaborator.
func (s *Session) Resyncs() <-chan int { return s.resyncs }

// Start launches the run loop. It returns an error when the session is
// already running.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("session: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.metrics.ActiveSessions.Add(ctx, 1)
	go s.run(runCtx)
	return nil
}

// Stop terminates the run loop and resets all transient tracking state.
// Calling Stop on a stopped session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	s.metrics.ActiveSessions.Add(context.Background(), -1)
}

// PrepareScript tokenizes rawText, replaces the current script, and resets
// the alignment pipeline and highlight state. Cursor indices from a previous
// script are meaningless against the new one.
func (s *Session) PrepareScript(rawText string) error {
	return s.do(func() {
		s.index = script.Prepare(rawText)
		s.pipeline = align.NewPipeline(s.index, s.pipelineOpts...)
		s.ctrl.ResyncHighlight(-1)
		slog.Info("script prepared", "tokens", s.index.Len())
	})
}

// AttachRecognizer switches the run loop to consume hypotheses from h.
// Passing nil detaches the current recognizer; the cursor simply stops
// advancing. Stable-prefix history is discarded either way, since prefix
// comparison across recognizer sessions is meaningless.
func (s *Session) AttachRecognizer(h <-chan stt.Hypothesis) error {
	return s.do(func() {
		s.hyps = h
		if s.pipeline != nil {
			s.pipeline.SessionRestarted()
		}
	})
}

// NotifyRecognizerRestart discards the stable-prefix history after the
// upstream transcription session was restarted. The cursor itself is left
// in place.
func (s *Session) NotifyRecognizerRestart() error {
	return s.do(func() {
		if s.pipeline != nil {
			s.pipeline.SessionRestarted()
		}
	})
}

// SetMode switches the scrolling mode. Entering or leaving voice tracking
// resets alignment history (resync semantics) so stale pending jumps cannot
// resurface.
func (s *Session) SetMode(m scroll.Mode) error {
	return s.do(func() {
		s.ctrl.SetMode(m)
		if s.pipeline != nil {
			s.pipeline.Resync(context.Background(), s.pipeline.Confirmed())
		}
	})
}

// SetPlaying starts or stops constant-speed scrolling.
func (s *Session) SetPlaying(playing bool) error {
	return s.do(func() { s.ctrl.SetPlaying(playing) })
}

// SetWPM updates the constant-mode speed.
func (s *Session) SetWPM(wpm float64) error {
	return s.do(func() { s.ctrl.SetWPM(wpm) })
}

// SetFontMetrics updates the font metrics used for wpm conversion.
func (s *Session) SetFontMetrics(fontSize, lineSpacing float64) error {
	return s.do(func() { s.ctrl.SetFontMetrics(fontSize, lineSpacing) })
}

// ManualScroll applies a user scroll delta. During voice tracking the word
// nearest the new reading line becomes the resync point: the alignment
// pipeline is resynchronised and the index is published on Resyncs.
func (s *Session) ManualScroll(delta float64) error {
	return s.do(func() {
		idx, ok := s.ctrl.ManualScroll(delta)
		if !ok || s.ctrl.Mode() != scroll.ModeVoice {
			return
		}
		if s.pipeline != nil {
			s.pipeline.Resync(context.Background(), idx)
		}
		select {
		case s.resyncs <- idx:
		default:
		}
	})
}

// do marshals fn onto the run loop and waits for it to execute.
func (s *Session) do(fn func()) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	done := s.done
	s.mu.Unlock()

	executed := make(chan struct{})
	wrapped := func() {
		fn()
		close(executed)
	}
	select {
	case s.cmds <- wrapped:
	case <-done:
		return ErrNotRunning
	}
	select {
	case <-executed:
		return nil
	case <-done:
		return ErrNotRunning
	}
}

// run is the serialized execution context: the only goroutine that touches
// the pipeline, the controller, and the script index after Start.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.resetTransientState()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		// Hypotheses are drained in the same select as ticks and commands,
		// so a delivery burst between two frames cannot race the loop.
		select {
		case <-ctx.Done():
			return

		case fn := <-s.cmds:
			fn()

		case h, ok := <-s.hyps:
			if !ok {
				// Upstream stream ended; stop advancing, keep rendering.
				s.hyps = nil
				continue
			}
			s.observe(ctx, h)

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			s.tick(ctx, dt)
		}
	}
}

// observe feeds one hypothesis through the alignment pipeline and points the
// highlight animation at the resulting display index.
func (s *Session) observe(ctx context.Context, h stt.Hypothesis) {
	if s.pipeline == nil || s.ctrl.Mode() != scroll.ModeVoice {
		return
	}
	update, ok := s.pipeline.Observe(ctx, h)
	if !ok {
		return
	}
	s.ctrl.SetHighlightTarget(update.Display)
}

// tick advances the scroll controller and publishes a frame, dropping it
// when the consumer is not keeping up.
func (s *Session) tick(ctx context.Context, dt float64) {
	start := time.Now()
	s.ctrl.Tick(dt)
	s.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())

	confirmed := 0
	if s.pipeline != nil {
		confirmed = s.pipeline.Confirmed()
	}
	f := Frame{
		Offset:         s.ctrl.Offset(),
		HighlightIndex: s.ctrl.HighlightIndex(),
		Confirmed:      confirmed,
		Mode:           s.ctrl.Mode(),
	}
	select {
	case s.frames <- f:
	default:
		s.metrics.FramesDropped.Add(ctx, 1)
	}
}

// resetTransientState clears everything that must not survive a stop:
// pending jumps, stable-prefix history, and highlight animation state.
func (s *Session) resetTransientState() {
	if s.pipeline != nil {
		s.pipeline.Resync(context.Background(), s.pipeline.Confirmed())
	}
	s.ctrl.SetMode(scroll.ModeOff)
	s.hyps = nil
}
