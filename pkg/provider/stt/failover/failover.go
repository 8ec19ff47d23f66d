// Package failover composes multiple speech-to-text backends into a single
// [stt.Provider] with automatic failover.
//
// A [Chain] holds a primary backend and zero or more fallbacks, each guarded
// by its own circuit breaker. StartStream tries backends in registration
// order, skipping any whose breaker is open, so a broadcast keeps its voice
// tracking when the cloud provider is down and a local model is configured
// as a fallback.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cueline/cueline/pkg/provider/stt"
)

// ErrAllBackendsFailed is returned by [Chain.StartStream] when every backend
// fails or has an open breaker.
var ErrAllBackendsFailed = errors.New("all stt backends failed")

// backend pairs a provider with its dedicated breaker.
type backend struct {
	name     string
	provider stt.Provider
	breaker  *Breaker
}

// Chain implements [stt.Provider] over an ordered list of backends.
// Safe for concurrent use once assembled; AddFallback must not be called
// concurrently with StartStream.
type Chain struct {
	backends []backend
	breaker  BreakerConfig
}

var _ stt.Provider = (*Chain)(nil)

// NewChain creates a [Chain] with primary as the preferred backend. The
// breaker config applies to every backend registered on the chain.
func NewChain(name string, primary stt.Provider, cfg BreakerConfig) *Chain {
	c := &Chain{breaker: cfg}
	c.AddFallback(name, primary)
	return c
}

// AddFallback appends a backend, tried after all previously registered ones.
func (c *Chain) AddFallback(name string, provider stt.Provider) {
	c.backends = append(c.backends, backend{
		name:     name,
		provider: provider,
		breaker:  NewBreaker(name, c.breaker),
	})
}

// StartStream opens a session against the first healthy backend. Backends
// with an open breaker are skipped; any other failure counts against that
// backend's breaker and the next one is tried.
func (c *Chain) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	var lastErr error
	for i := range c.backends {
		be := &c.backends[i]
		var handle stt.SessionHandle
		err := be.breaker.Do(func() error {
			var err error
			handle, err = be.provider.StartStream(ctx, cfg)
			return err
		})
		if err == nil {
			if i > 0 {
				slog.Info("stt session on fallback backend", "backend", be.name)
			}
			return handle, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping stt backend", "backend", be.name, "reason", "breaker open")
		} else {
			slog.Warn("stt backend failed, trying next", "backend", be.name, "err", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}
