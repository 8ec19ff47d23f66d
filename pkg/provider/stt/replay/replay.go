// Package replay provides an stt.Provider that replays a recorded stream of
// recognition hypotheses from a YAML fixture file. It is the deterministic
// backend used by pipeline tests and by the "replay" provider entry in the
// server config: no audio, no network, fully reproducible revision sequences.
//
// Fixture format:
//
//	hypotheses:
//	  - after_ms: 200
//	    words: ["the", "quick"]
//	  - after_ms: 450
//	    words: ["the", "quick", "brown", "fox"]
//	    confidences: [0.98, 0.95, 0.4, 0.91]
//
// after_ms is the delay before the hypothesis is emitted, relative to the
// previous one. confidences is optional; when present it must have one entry
// per word.
package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cueline/cueline/pkg/provider/stt"
)

// Step is one recorded hypothesis emission.
type Step struct {
	// AfterMs is the delay in milliseconds before this hypothesis is
	// emitted, relative to the previous step.
	AfterMs int `yaml:"after_ms"`

	// Words is the full token sequence of the hypothesis.
	Words []string `yaml:"words"`

	// Confidences optionally carries one per-word confidence per entry in
	// Words. Empty means no confidence data (accept all).
	Confidences []float64 `yaml:"confidences"`
}

// fixture is the YAML document structure.
type fixture struct {
	Hypotheses []Step `yaml:"hypotheses"`
}

// Provider implements stt.Provider by replaying a fixed hypothesis script.
type Provider struct {
	steps []Step
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Load reads a fixture file and returns a Provider replaying it.
func Load(path string) (*Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read %q: %w", path, err)
	}
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("replay: parse %q: %w", path, err)
	}
	return New(fx.Hypotheses)
}

// New returns a Provider replaying the given steps.
func New(steps []Step) (*Provider, error) {
	for i, s := range steps {
		if len(s.Confidences) > 0 && len(s.Confidences) != len(s.Words) {
			return nil, fmt.Errorf("replay: step %d: %d confidences for %d words", i, len(s.Confidences), len(s.Words))
		}
		if s.AfterMs < 0 {
			return nil, fmt.Errorf("replay: step %d: negative after_ms", i)
		}
	}
	return &Provider{steps: steps}, nil
}

// StartStream begins replaying the fixture. The StreamConfig is ignored —
// there is no audio. The Hypotheses channel is closed after the last step.
func (p *Provider) StartStream(ctx context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("replay: context already cancelled: %w", err)
	}

	s := &session{
		hyps: make(chan stt.Hypothesis, 16),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.play(ctx, p.steps)
	return s, nil
}

// session is one replay run. It implements stt.SessionHandle.
type session struct {
	hyps chan stt.Hypothesis
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio accepts and discards audio so callers wired for a real provider
// keep working against the replay backend.
func (s *session) SendAudio(_ []byte) error {
	select {
	case <-s.done:
		return errors.New("replay: session is closed")
	default:
		return nil
	}
}

// Hypotheses returns the replayed hypothesis stream.
func (s *session) Hypotheses() <-chan stt.Hypothesis { return s.hyps }

// Close stops the replay. Safe to call more than once.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// play emits the steps with their recorded delays.
func (s *session) play(ctx context.Context, steps []Step) {
	defer s.wg.Done()
	defer close(s.hyps)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for _, step := range steps {
		timer.Reset(time.Duration(step.AfterMs) * time.Millisecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}

		tokens := make([]stt.Token, len(step.Words))
		for i, w := range step.Words {
			tokens[i] = stt.Token{Text: w}
			if i < len(step.Confidences) {
				tokens[i].Confidence = step.Confidences[i]
			}
		}

		select {
		case s.hyps <- stt.Hypothesis{Tokens: tokens}:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}
