package align

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cueline/cueline/internal/observe"
	"github.com/cueline/cueline/internal/script"
	"github.com/cueline/cueline/pkg/provider/stt"
)

// CursorUpdate is emitted by the pipeline when the confirmed cursor moved.
// Display is the look-ahead-compensated index the scroll loop should track.
type CursorUpdate struct {
	Confirmed int
	Display   int
}

// PipelineOption is a functional option for configuring a [Pipeline].
type PipelineOption func(*Pipeline)

// WithLocator replaces the default [Locator].
func WithLocator(l *Locator) PipelineOption {
	return func(p *Pipeline) {
		p.locator = l
	}
}

// WithArbiter replaces the default [Arbiter].
func WithArbiter(a *Arbiter) PipelineOption {
	return func(p *Pipeline) {
		p.arbiter = a
	}
}

// WithConfidenceThreshold sets the per-token confidence gate applied before
// stable-prefix computation. Default: 0.4.
func WithConfidenceThreshold(t float64) PipelineOption {
	return func(p *Pipeline) {
		p.confidenceThreshold = t
	}
}

// WithMetrics injects a [observe.Metrics] instance. Defaults to
// [observe.DefaultMetrics]; tests inject their own to avoid cross-test
// pollution.
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// Pipeline composes the alignment stages for one prepared script: confidence
// gate → stable-prefix extraction → disfluency filter → fuzzy location →
// cursor arbitration.
//
// Pipeline is not goroutine-safe. The owning session confines Observe,
// Resync, and SessionRestarted to a single goroutine (the serialized
// execution context shared with the scroll loop).
type Pipeline struct {
	index   *script.Index
	locator *Locator
	arbiter *Arbiter

	confidenceThreshold float64
	metrics             *observe.Metrics

	// previousStableTokens is the gated token sequence of the last processed
	// hypothesis; the next stable prefix is computed against it.
	previousStableTokens []string
}

// NewPipeline creates a [Pipeline] over the given script index.
func NewPipeline(ix *script.Index, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		index:               ix,
		confidenceThreshold: DefaultConfidenceThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if p.locator == nil {
		p.locator = NewLocator()
	}
	if p.arbiter == nil {
		p.arbiter = NewArbiter()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Confirmed returns the current confirmed script index.
func (p *Pipeline) Confirmed() int { return p.arbiter.Confirmed() }

// DisplayIndex returns the look-ahead-compensated display index.
func (p *Pipeline) DisplayIndex() int {
	return p.arbiter.DisplayIndex(p.index.Len() - 1)
}

// Observe processes one recognition hypothesis. It returns a [CursorUpdate]
// and true when the confirmed cursor advanced; otherwise the zero value and
// false. Observe never fails: unusable hypotheses (too little stable signal,
// no in-window match) simply produce no update.
func (p *Pipeline) Observe(ctx context.Context, h stt.Hypothesis) (CursorUpdate, bool) {
	ctx, span := observe.StartSpan(ctx, "align.Observe",
		trace.WithAttributes(attribute.Int("hypothesis.tokens", len(h.Tokens))),
	)
	defer span.End()

	// Confidence gate, then normalize to the script's token form.
	gated := GateConfidence(h.Tokens, p.confidenceThreshold)
	for i, w := range gated {
		gated[i] = script.Normalize(w)
	}

	stable := StablePrefix(p.previousStableTokens, gated)
	p.previousStableTokens = gated
	p.metrics.StableTokens.Record(ctx, int64(stable))

	if stable < minStableTokens {
		p.metrics.RecordHypothesis(ctx, "too_short")
		return CursorUpdate{}, false
	}

	phrase := FilterFillers(gated[:stable])
	if len(phrase) > p.locator.PhraseLength() {
		phrase = phrase[len(phrase)-p.locator.PhraseLength():]
	}
	if len(phrase) < minStableTokens {
		p.metrics.RecordHypothesis(ctx, "too_short")
		return CursorUpdate{}, false
	}

	start := time.Now()
	candidate, found := p.locator.Locate(p.index, phrase, p.arbiter.Confirmed())
	p.metrics.LocateDuration.Record(ctx, time.Since(start).Seconds())

	if !found {
		p.metrics.RecordHypothesis(ctx, "no_match")
		return CursorUpdate{}, false
	}
	p.metrics.RecordHypothesis(ctx, "matched")

	before := p.arbiter.Confirmed()
	advanced := p.arbiter.Offer(candidate)
	switch {
	case candidate < before:
		p.metrics.RecordJump(ctx, "backward_ignored")
	case !advanced:
		p.metrics.RecordJump(ctx, "large_deferred")
	case candidate-before <= p.arbiter.MaxSmallJump():
		p.metrics.RecordJump(ctx, "small")
	default:
		p.metrics.RecordJump(ctx, "large_committed")
	}

	if !advanced {
		return CursorUpdate{}, false
	}

	slog.Debug("cursor advanced",
		"confirmed", p.arbiter.Confirmed(),
		"candidate", candidate,
		"stable", stable,
	)
	return CursorUpdate{
		Confirmed: p.arbiter.Confirmed(),
		Display:   p.DisplayIndex(),
	}, true
}

// Resync repositions the cursor (e.g., after a manual scroll) and discards
// all hypothesis history so stale phrases cannot re-match the abandoned
// position.
func (p *Pipeline) Resync(ctx context.Context, to int) {
	p.arbiter.Resync(to)
	p.previousStableTokens = nil
	p.metrics.Resyncs.Add(ctx, 1)
	slog.Debug("pipeline resynced", "confirmed", to)
}

// SessionRestarted discards the previous stable token history. Stable-prefix
// comparison across unrelated recognizer sessions is meaningless; the cursor
// itself is left where it was.
func (p *Pipeline) SessionRestarted() {
	p.previousStableTokens = nil
}
