// Package whisper provides a local whisper.cpp-backed STT provider using the
// whisper.cpp CGO bindings. The static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// whisper.cpp is a batch transcription engine; it has no native streaming
// mode. The provider simulates one by re-transcribing a rolling window of
// buffered PCM audio on a fixed cadence. Each pass yields a revised guess
// for the windowed audio — later passes see more context and routinely
// rewrite the tail of the previous guess, which is precisely the revisable
// hypothesis contract the alignment pipeline consumes. When the window
// overflows, its oldest half is dropped and the corresponding transcription
// prefix is committed, so emitted hypotheses always cover the utterance so
// far.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/cueline/cueline/pkg/provider/stt"
)

const (
	defaultLanguage      = "en"
	defaultSampleRate    = 16000
	defaultPassInterval  = 700 * time.Millisecond
	defaultWindowSeconds = 15

	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// whisper.cpp expects.
	bitsPerSample = 16
)

// Option is a functional option for configuring a [Provider].
type Option func(*Provider)

// WithLanguage sets the language code for transcription (e.g., "en", "de").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz. This must match the PCM
// data delivered via SendAudio. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithPassInterval sets how often the rolling window is re-transcribed.
// Shorter intervals reduce latency at the cost of CPU. Defaults to 700 ms.
func WithPassInterval(d time.Duration) Option {
	return func(p *Provider) { p.passInterval = d }
}

// WithWindowSeconds sets the rolling audio window length in seconds. When
// the buffer exceeds this, its oldest half is committed. Defaults to 15.
func WithWindowSeconds(s int) Option {
	return func(p *Provider) { p.windowSeconds = s }
}

// Provider implements stt.Provider using the whisper.cpp Go bindings (CGO).
// The model is loaded once at construction and shared across all sessions;
// each session creates its own whisper context, so sessions do not interfere.
type Provider struct {
	model    whisperlib.Model
	language string

	sampleRate    int
	passInterval  time.Duration
	windowSeconds int
}

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// New creates a Provider that loads the whisper.cpp model from modelPath.
// The caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:         model,
		language:      defaultLanguage,
		sampleRate:    defaultSampleRate,
		passInterval:  defaultPassInterval,
		windowSeconds: defaultWindowSeconds,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. It respects cfg.SampleRate,
// cfg.Channels, and cfg.Language; zero/empty values fall back to the
// provider defaults.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &session{
		model:        p.model,
		language:     lang,
		sampleRate:   sr,
		channels:     ch,
		passInterval: p.passInterval,
		windowBytes:  p.windowSeconds * sr * ch * (bitsPerSample / 8),

		audioCh: make(chan []byte, 256),
		hyps:    make(chan stt.Hypothesis, 64),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// ---- session ----------------------------------------------------------------

// session is a live whisper transcription session. It implements
// stt.SessionHandle. All buffering state is confined to the processLoop
// goroutine.
type session struct {
	model        whisperlib.Model
	language     string
	sampleRate   int
	channels     int
	passInterval time.Duration
	windowBytes  int

	audioCh chan []byte
	hyps    chan stt.Hypothesis

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Hypotheses returns the channel of revised hypotheses.
func (s *session) Hypotheses() <-chan stt.Hypothesis { return s.hyps }

// Close terminates the session and closes the Hypotheses channel.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop buffers audio and re-transcribes the rolling window on the
// pass cadence. committed holds tokens for audio already dropped from the
// window; every emitted hypothesis is committed + current window guess.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.hyps)

	var (
		buffer    []byte
		dirty     bool
		committed []stt.Token
	)

	ticker := time.NewTicker(s.passInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.done:
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				return
			}
			buffer = append(buffer, chunk...)
			dirty = true

			if s.windowBytes > 0 && len(buffer) > s.windowBytes {
				// Commit the guess for the half being dropped so its words
				// survive in subsequent hypotheses.
				half := len(buffer) / 2
				text, err := s.infer(buffer[:half])
				if err != nil {
					slog.Error("whisper window-commit inference failed", "error", err)
				} else {
					committed = append(committed, tokenize(text)...)
				}
				buffer = append([]byte(nil), buffer[half:]...)
			}

		case <-ticker.C:
			if !dirty || len(buffer) == 0 {
				continue
			}
			dirty = false

			text, err := s.infer(buffer)
			if err != nil {
				slog.Error("whisper inference failed", "error", err)
				continue
			}

			current := tokenize(text)
			tokens := make([]stt.Token, 0, len(committed)+len(current))
			tokens = append(tokens, committed...)
			tokens = append(tokens, current...)

			select {
			case s.hyps <- stt.Hypothesis{Tokens: tokens}:
			default:
				// The pipeline only cares about the latest guess; dropping
				// a stale one is harmless.
			}
		}
	}
}

// infer converts the buffered PCM to float32 mono, runs whisper.cpp
// inference with a fresh context, and returns the concatenated segment text.
// A context is not thread-safe but the shared model is.
func (s *session) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32Mono(pcm, s.channels)

	wctx, err := s.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(s.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", s.language, "error", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// tokenize splits transcribed text into tokens. whisper.cpp reports no
// per-word confidence, so Confidence is left zero (accept).
func tokenize(text string) []stt.Token {
	fields := strings.Fields(text)
	tokens := make([]stt.Token, len(fields))
	for i, f := range fields {
		tokens[i] = stt.Token{Text: f}
	}
	return tokens
}
