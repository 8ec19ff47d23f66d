package align_test

import (
	"context"
	"testing"

	"github.com/cueline/cueline/internal/align"
	"github.com/cueline/cueline/pkg/provider/stt"
)

// hyp builds a Hypothesis with no confidence scores.
func hyp(words ...string) stt.Hypothesis {
	tokens := make([]stt.Token, len(words))
	for i, w := range words {
		tokens[i] = stt.Token{Text: w}
	}
	return stt.Hypothesis{Tokens: tokens}
}

// scriptWords returns the first n fixture script tokens as spoken words.
func scriptWords(t *testing.T, n int) []string {
	t.Helper()
	ix := prepared(t)
	words := make([]string, n)
	for i := range n {
		words[i] = ix.Token(i)
	}
	return words
}

func TestPipeline_AdvancesAsHypothesesStabilize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	// The very first hypothesis has no predecessor, so nothing is stable.
	if _, ok := p.Observe(ctx, hyp(scriptWords(t, 6)...)); ok {
		t.Fatal("first hypothesis produced an update")
	}

	// The extension confirms the first six words as stable; the cursor lands
	// on the last matched word plus look-ahead for display.
	update, ok := p.Observe(ctx, hyp(scriptWords(t, 8)...))
	if !ok {
		t.Fatal("stable extension produced no update")
	}
	if update.Confirmed != 5 || update.Display != 9 {
		t.Errorf("update = %+v, want Confirmed 5, Display 9", update)
	}

	// The next extension's stable phrase still ends near the cursor; whether
	// or not it advances, the cursor must never move backward.
	p.Observe(ctx, hyp(scriptWords(t, 12)...))
	if p.Confirmed() < 5 {
		t.Fatalf("Confirmed() = %d, cursor moved backward", p.Confirmed())
	}

	update, ok = p.Observe(ctx, hyp(scriptWords(t, 14)...))
	if !ok {
		t.Fatal("later stable extension produced no update")
	}
	if update.Confirmed != 11 || update.Display != 15 {
		t.Errorf("update = %+v, want Confirmed 11, Display 15", update)
	}
}

func TestPipeline_NormalizesSpokenTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	// Raw recognizer output with casing and punctuation must match the
	// normalized script.
	spoken := []string{"Good", "evening,", "everyone!", "and", "Welcome", "to"}
	p.Observe(ctx, hyp(spoken...))
	update, ok := p.Observe(ctx, hyp(append(spoken, "tonight's", "broadcast.")...))
	if !ok {
		t.Fatal("punctuated hypothesis produced no update")
	}
	if update.Confirmed != 5 {
		t.Errorf("Confirmed = %d, want 5", update.Confirmed)
	}
}

func TestPipeline_DropsLowConfidenceTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	tokens := []stt.Token{
		{Text: "good", Confidence: 0.9},
		{Text: "evening", Confidence: 0.9},
		{Text: "everyone", Confidence: 0.9},
		{Text: "and", Confidence: 0.9},
		{Text: "welcome", Confidence: 0.9},
		{Text: "banana", Confidence: 0.2}, // recognizer noise, gated out
		{Text: "to", Confidence: 0.9},
		{Text: "tonights", Confidence: 0.9},
	}
	h := stt.Hypothesis{Tokens: tokens}

	p.Observe(ctx, h)
	update, ok := p.Observe(ctx, h)
	if !ok {
		t.Fatal("gated hypothesis produced no update")
	}
	// Trailing six of the seven surviving words: evening .. tonights.
	if update.Confirmed != 6 {
		t.Errorf("Confirmed = %d, want 6", update.Confirmed)
	}
}

func TestPipeline_FiltersFillersBeforeMatching(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))
	p.Resync(ctx, 8)

	spoken := []string{"we", "begin", "um", "with", "breaking", "you", "know", "developments", "from"}
	p.Observe(ctx, hyp(spoken...))
	update, ok := p.Observe(ctx, hyp(spoken...))
	if !ok {
		t.Fatal("filler-laden hypothesis produced no update")
	}
	if update.Confirmed != 13 {
		t.Errorf("Confirmed = %d, want 13", update.Confirmed)
	}
}

func TestPipeline_HoldsOnUnmatchableHypothesis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	off := []string{"totally", "unrelated", "improvised", "remarks", "here", "now"}
	p.Observe(ctx, hyp(off...))
	if _, ok := p.Observe(ctx, hyp(off...)); ok {
		t.Error("off-script hypothesis moved the cursor")
	}
	if p.Confirmed() != 0 {
		t.Errorf("Confirmed() = %d, want 0", p.Confirmed())
	}
}

func TestPipeline_ResyncDiscardsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	words := scriptWords(t, 8)
	p.Observe(ctx, hyp(words...))

	p.Resync(ctx, 20)
	if p.Confirmed() != 20 {
		t.Fatalf("Confirmed() = %d after Resync, want 20", p.Confirmed())
	}

	// The pre-resync hypothesis is stale history now; repeating it must not
	// count as a stable confirmation.
	if _, ok := p.Observe(ctx, hyp(words...)); ok {
		t.Error("stale hypothesis produced an update after Resync")
	}
}

func TestPipeline_SessionRestartKeepsCursor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := align.NewPipeline(prepared(t))

	words := scriptWords(t, 8)
	p.Observe(ctx, hyp(words...))
	p.Observe(ctx, hyp(words...))
	confirmed := p.Confirmed()
	if confirmed == 0 {
		t.Fatal("setup: cursor did not advance")
	}

	p.SessionRestarted()
	if p.Confirmed() != confirmed {
		t.Errorf("Confirmed() = %d after restart, want %d", p.Confirmed(), confirmed)
	}
	// A new recognizer's first hypothesis has no usable predecessor.
	if _, ok := p.Observe(ctx, hyp(scriptWords(t, 14)...)); ok {
		t.Error("first post-restart hypothesis produced an update")
	}
}
