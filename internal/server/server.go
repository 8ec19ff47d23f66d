// Package server exposes the scroll engine to display clients over HTTP.
//
// A display client connects to /ws and drives one tracking session:
//
//   - Text (JSON) messages carry control operations inbound — script
//     preparation, layout/position maps, viewport metrics, manual scroll
//     deltas, mode toggles, and session-restart signals — and frame state
//     outbound.
//   - Binary messages carry raw PCM microphone audio, forwarded to the
//     configured speech-to-text provider.
//
// The remaining routes are operational: /metrics (Prometheus), /healthz and
// /readyz (probes).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cueline/cueline/internal/health"
	"github.com/cueline/cueline/internal/observe"
	"github.com/cueline/cueline/internal/scroll"
	"github.com/cueline/cueline/internal/session"
	"github.com/cueline/cueline/pkg/provider/stt"
)

// shutdownTimeout bounds the graceful HTTP shutdown on context cancellation.
const shutdownTimeout = 10 * time.Second

// Config holds the server dependencies.
type Config struct {
	// ListenAddr is the TCP address to listen on (e.g., ":8080").
	ListenAddr string

	// Provider is the speech-to-text backend. Nil disables voice tracking;
	// constant-speed scrolling still works.
	Provider stt.Provider

	// StreamConfig is passed to Provider.StartStream for each client.
	StreamConfig stt.StreamConfig

	// SessionOptions are applied to every client session.
	SessionOptions []session.Option

	// Metrics defaults to observe.DefaultMetrics when nil.
	Metrics *observe.Metrics
}

// Server serves the display-client WebSocket and operational endpoints.
type Server struct {
	cfg     Config
	metrics *observe.Metrics
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &Server{cfg: cfg, metrics: m}
}

// Handler builds the full HTTP routing surface: the display-client
// WebSocket, Prometheus metrics, and health probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(
		health.Checker{Name: "provider", Check: func(context.Context) error {
			if s.cfg.Provider == nil {
				return errors.New("no speech-to-text provider configured")
			}
			return nil
		}},
	)
	h.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run starts the HTTP listener and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}

// inbound is the JSON envelope for client control messages.
type inbound struct {
	Type string `json:"type"`

	// script
	Text string `json:"text,omitempty"`

	// layout
	Positions      []float64 `json:"positions,omitempty"`
	ViewportHeight float64   `json:"viewportHeight,omitempty"`
	FontSize       float64   `json:"fontSize,omitempty"`
	LineSpacing    float64   `json:"lineSpacing,omitempty"`

	// mode
	Mode string `json:"mode,omitempty"`

	// scroll
	Delta float64 `json:"delta,omitempty"`

	// wpm
	WPM float64 `json:"wpm,omitempty"`
}

// outboundFrame wraps a session frame for the wire.
type outboundFrame struct {
	Type  string        `json:"type"`
	Frame session.Frame `json:"frame"`
}

// outboundResync notifies the client of a cursor resynchronisation.
type outboundResync struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// handleWS upgrades the connection and runs one tracking session for its
// lifetime. Client disconnect stops the session; Stop is idempotent so a
// concurrent server shutdown is safe.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "session ended")

	ctx := r.Context()
	sess := session.New(s.cfg.SessionOptions...)
	if err := sess.Start(ctx); err != nil {
		slog.Error("session start failed", "err", err)
		return
	}
	defer sess.Stop()

	var rec stt.SessionHandle
	if s.cfg.Provider != nil {
		rec, err = s.cfg.Provider.StartStream(ctx, s.cfg.StreamConfig)
		if err != nil {
			// Recognizer failure is not fatal: constant mode still works.
			slog.Error("recognizer start failed", "err", err)
		} else {
			defer rec.Close()
			if err := sess.AttachRecognizer(rec.Hypotheses()); err != nil {
				slog.Error("recognizer attach failed", "err", err)
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx, conn, sess, rec) })
	g.Go(func() error { return s.writeLoop(ctx, conn, sess) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Info("client disconnected", "err", err)
	}
	conn.Close(websocket.StatusNormalClosure, "bye")
}

// readLoop dispatches inbound messages to the session. Binary frames are
// microphone audio for the recognizer; text frames are control JSON.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session, rec stt.SessionHandle) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if typ == websocket.MessageBinary {
			if rec != nil {
				if err := rec.SendAudio(data); err != nil {
					slog.Warn("audio forward failed", "err", err)
				}
			}
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("bad client message", "err", err)
			continue
		}
		if err := s.dispatch(sess, msg); err != nil {
			slog.Warn("client operation failed", "type", msg.Type, "err", err)
		}
	}
}

// dispatch applies one control message to the session.
func (s *Server) dispatch(sess *session.Session, msg inbound) error {
	switch msg.Type {
	case "script":
		return sess.PrepareScript(msg.Text)
	case "layout":
		if msg.Positions != nil {
			sess.Layout().SetPositions(msg.Positions)
		}
		if msg.ViewportHeight > 0 {
			sess.Layout().SetViewportHeight(msg.ViewportHeight)
		}
		if msg.FontSize > 0 || msg.LineSpacing > 0 {
			return sess.SetFontMetrics(msg.FontSize, msg.LineSpacing)
		}
		return nil
	case "mode":
		return sess.SetMode(scroll.Mode(msg.Mode))
	case "play":
		return sess.SetPlaying(true)
	case "pause":
		return sess.SetPlaying(false)
	case "scroll":
		return sess.ManualScroll(msg.Delta)
	case "wpm":
		return sess.SetWPM(msg.WPM)
	case "restart-session":
		return sess.NotifyRecognizerRestart()
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

// writeLoop forwards frames and resync notifications to the client.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-sess.Frames():
			if err := writeJSON(ctx, conn, outboundFrame{Type: "frame", Frame: f}); err != nil {
				return err
			}
		case idx := <-sess.Resyncs():
			if err := writeJSON(ctx, conn, outboundResync{Type: "resync", Index: idx}); err != nil {
				return err
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
