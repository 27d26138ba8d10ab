// File: forward/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package forward

import (
	"log"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/control"
)

// Option customizes engine initialization.
type Option func(*Engine)

// WithHooks replaces the default logging hooks.
func WithHooks(h api.Hooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithLogger sets the logger for engine messages and the default hooks.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMultiplexer supplies the readiness multiplexer. The engine takes
// ownership and closes it in Close.
func WithMultiplexer(m api.Multiplexer) Option {
	return func(e *Engine) {
		e.mux = m
	}
}

// WithControl shares a metrics/debug registry with the caller.
func WithControl(c *control.Control) Option {
	return func(e *Engine) {
		e.ctrl = c
	}
}

// WithBufferPool sets the pool used for queued output.
func WithBufferPool(p api.BytePool) Option {
	return func(e *Engine) {
		e.bufs = p
	}
}
