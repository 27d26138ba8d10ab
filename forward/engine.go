// File: forward/engine.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine lifecycle: construction, startup, event loop and shutdown.

package forward

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/netip"
	"sync"

	"github.com/momentics/hioload-fwd/adapters"
	"github.com/momentics/hioload-fwd/affinity"
	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/control"
	"github.com/momentics/hioload-fwd/internal/registry"
	"github.com/momentics/hioload-fwd/internal/transport"
	"github.com/momentics/hioload-fwd/pool"
	"github.com/momentics/hioload-fwd/reactor"
)

// Engine forwards every connection accepted on a local port to one fixed
// remote endpoint. Run, Listen and Close must not be called concurrently;
// Addr, Pairs, Watched and Stats are safe from any goroutine.
type Engine struct {
	cfg    Config
	log    *log.Logger
	hooks  api.Hooks
	mux    api.Multiplexer
	ctrl   *control.Control
	bufs   api.BytePool
	reg    *registry.Registry[*pair]
	relay  []byte
	report api.Report

	listenAt netip.AddrPort
	remoteAt netip.AddrPort
	listener *transport.Socket
	dial     dialFunc
	nextID   uint64

	mu     sync.Mutex
	addr   netip.AddrPort
	closed bool
}

// New validates cfg, resolves both endpoints and prepares the multiplexer.
// Nothing is bound until Listen or Run.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.ListenHost == "" {
		cfg.ListenHost = DefaultConfig().ListenHost
	}
	if cfg.Backlog == 0 {
		cfg.Backlog = transport.DefaultBacklog
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, dial: transport.DialTCP}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.Default()
	}
	if e.hooks == nil {
		e.hooks = adapters.NewLogHooks(e.log)
	}
	if e.ctrl == nil {
		e.ctrl = control.NewControl()
	}
	if e.bufs == nil {
		e.bufs = pool.NewBytePool(cfg.BufferSize)
	}

	ctx := context.Background()
	var err error
	if e.listenAt, err = transport.ResolveAddress(ctx, cfg.ListenHost, cfg.LocalPort); err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}
	if e.remoteAt, err = transport.ResolveAddress(ctx, cfg.RemoteHost, cfg.RemotePort); err != nil {
		return nil, fmt.Errorf("remote address: %w", err)
	}
	if e.mux == nil {
		if e.mux, err = reactor.New(); err != nil {
			return nil, fmt.Errorf("create multiplexer: %w", err)
		}
	}

	e.reg = registry.New[*pair](e.mux)
	e.relay = make([]byte, cfg.BufferSize)
	e.registerProbes()
	return e, nil
}

func (e *Engine) registerProbes() {
	e.ctrl.RegisterDebugProbe("registry.pairs", func() any { return e.reg.Pairs() })
	e.ctrl.RegisterDebugProbe("registry.watched", func() any { return e.reg.Watched() })
	if bp, ok := e.bufs.(interface{ Stats() pool.Stats }); ok {
		e.ctrl.RegisterDebugProbe("pool.in_use", func() any { return bp.Stats().InUse })
	}
	e.ctrl.SetMetric(control.MetricActivePairs, int64(0))
}

// Listen binds the local port and starts watching it. On failure nothing
// stays open or watched.
func (e *Engine) Listen() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return api.ErrClosed
	}
	if e.listener != nil {
		return nil
	}
	ln, err := transport.ListenTCP(e.listenAt, e.cfg.Backlog)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.listenAt, err)
	}
	if err := e.reg.RegisterListener(ln.FD()); err != nil {
		ln.Close()
		return err
	}
	e.listener = ln
	e.mu.Lock()
	e.addr = ln.LocalAddr()
	e.mu.Unlock()
	e.log.Printf("[forward] listening on %s, forwarding to %s", ln.LocalAddr(), e.remoteAt)
	return nil
}

// Run starts listening if needed and services events until ctx is done,
// returning nil, or until a fatal error, which is reported to OnError and
// returned. Open pairs survive Run; Close tears them down.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Listen(); err != nil {
		e.hooks.OnError(err.Error())
		return err
	}
	if !e.cfg.PinLoop {
		return e.loop(ctx)
	}
	errc := make(chan error, 1)
	go func() {
		if err := affinity.Pin(e.cfg.LoopCPU); err != nil {
			errc <- e.fatal(err)
			return
		}
		errc <- e.loop(ctx)
	}()
	return <-errc
}

func (e *Engine) loop(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = e.mux.Wake() })
	defer stop()

	for ctx.Err() == nil {
		if err := e.mux.Wait(&e.report); err != nil {
			return e.fatal(fmt.Errorf("wait: %w", err))
		}
		for _, ev := range e.report.Events {
			if err := e.dispatch(ev); err != nil {
				return e.fatal(err)
			}
		}
	}
	return nil
}

func (e *Engine) fatal(err error) error {
	e.log.Printf("[forward] fatal: %v", err)
	e.hooks.OnError(err.Error())
	return err
}

// dispatch routes one readiness event. Descriptors torn down earlier in
// the same report are no longer registered and their events are dropped.
func (e *Engine) dispatch(ev api.Event) error {
	switch {
	case e.reg.IsListener(ev.FD):
		return e.accept()
	case e.reg.IsRegistered(ev.FD):
		e.service(ev)
	}
	return nil
}

// accept takes one pending client, connects it to the remote endpoint and
// registers the pair. Only listener failures are returned.
func (e *Engine) accept() error {
	client, err := e.listener.Accept()
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrWouldBlock):
		return nil
	case transport.IsTransientAccept(err):
		e.ctrl.AddMetric(control.MetricAcceptTransient, 1)
		e.hooks.OnError(err.Error())
		return nil
	default:
		return fmt.Errorf("listener failed: %w", err)
	}
	e.ctrl.AddMetric(control.MetricAccepted, 1)

	e.nextID++
	p := newPair(e.nextID, client)
	if err := p.connect(e.remoteAt, e.cfg.DialTimeout, e.dial); err != nil {
		e.ctrl.AddMetric(control.MetricConnectFailed, 1)
		e.hooks.OnError(fmt.Sprintf("client %s: %v", p.peerAddr, err))
		return nil
	}
	if err := e.reg.RegisterPair(p.clientFD, p.remoteFD, p); err != nil {
		p.client.Close()
		p.remote.Close()
		p.state = api.PairClosed
		e.hooks.OnError(fmt.Sprintf("client %s: %v", p.peerAddr, err))
		return nil
	}
	p.state = api.PairEstablished
	e.ctrl.SetMetric(control.MetricActivePairs, int64(e.reg.Pairs()))

	if !e.hooks.OnNewConnection(p.info(api.SideClient)) {
		e.ctrl.AddMetric(control.MetricHookVetoes, 1)
		e.teardown(p, api.SideClient, nil)
	}
	return nil
}

// Close tears down every pair, the listener and the multiplexer.
// Pairs still open are reported to OnConnectionClosed with api.ErrClosed.
// It must not be called while Run is active; further calls are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	pairs, err := e.reg.Drain()
	errs := []error{err}
	for _, p := range pairs {
		errs = append(errs, e.finish(p, api.SideNone, api.ErrClosed))
	}
	if e.listener != nil {
		errs = append(errs, e.reg.UnregisterListener(e.listener.FD()), e.listener.Close())
	}
	errs = append(errs, e.mux.Close())
	return errors.Join(errs...)
}

// Addr returns the bound listen address, invalid before Listen.
func (e *Engine) Addr() netip.AddrPort {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// RemoteAddr returns the resolved remote endpoint.
func (e *Engine) RemoteAddr() netip.AddrPort { return e.remoteAt }

// Pairs returns the number of established pairs.
func (e *Engine) Pairs() int { return e.reg.Pairs() }

// Watched returns the number of watched descriptors, the listener included.
func (e *Engine) Watched() int { return e.reg.Watched() }

// Stats returns metrics merged with debug probes.
func (e *Engine) Stats() map[string]any { return e.ctrl.Stats() }
