// File: forward/relay.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-pair data path: read, forward, queue short writes, flush, teardown.

package forward

import (
	"errors"
	"fmt"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/control"
	"github.com/momentics/hioload-fwd/internal/transport"
)

// service handles readiness of one side of a registered pair.
func (e *Engine) service(ev api.Event) {
	p, err := e.reg.Lookup(ev.FD)
	if err != nil {
		return
	}
	side := p.sideOf(ev.FD)

	if ev.Ready.Has(api.Writable) && p.pending(side).Length() > 0 {
		if err := e.flush(p, side); err != nil {
			e.teardown(p, side, err)
			return
		}
	}

	interest, _ := e.reg.Interest(ev.FD)
	switch {
	case interest.Has(api.Readable) && (ev.Ready.Has(api.Readable) || ev.Ready.Has(api.Hangup)):
		e.relayOnce(p, side)
	case ev.Ready.Has(api.Hangup):
		// Reading is paused while the peer drains, but this side is gone.
		e.teardown(p, side, fmt.Errorf("%s hung up", side))
	}
}

// relayOnce performs a single read on side src and forwards the result.
func (e *Engine) relayOnce(p *pair, src api.Side) {
	n, err := p.socket(src).Recv(e.relay)
	switch {
	case errors.Is(err, transport.ErrWouldBlock):
		return
	case err != nil:
		e.teardown(p, src, err)
		return
	case n == 0:
		e.teardown(p, src, nil)
		return
	}
	data := e.relay[:n]
	if err := e.forward(p, src.Peer(), data); err != nil {
		e.teardown(p, src.Peer(), err)
		return
	}
	e.ctrl.AddMetric(control.MetricBytesRelayed, int64(n))
	if !e.hooks.OnNewData(p.info(src), data) {
		e.ctrl.AddMetric(control.MetricHookVetoes, 1)
		e.teardown(p, src, nil)
	}
}

// forward writes data to side dst. Whatever the socket does not take
// right now is copied into a pooled chunk and queued for write readiness.
func (e *Engine) forward(p *pair, dst api.Side, data []byte) error {
	q := p.pending(dst)
	off := 0
	if q.Length() == 0 {
		n, err := p.socket(dst).Send(data)
		if err != nil {
			return err
		}
		off = n
	}
	if off == len(data) {
		return nil
	}
	buf := e.bufs.Acquire(len(data) - off)
	copy(buf, data[off:])
	q.Add(&chunk{buf: buf})
	e.ctrl.AddMetric(control.MetricShortWrites, 1)
	return e.rewatch(p)
}

// flush writes queued chunks to side dst until the queue is empty or the
// socket stops accepting data.
func (e *Engine) flush(p *pair, dst api.Side) error {
	q := p.pending(dst)
	sock := p.socket(dst)
	for q.Length() > 0 {
		c := q.Peek().(*chunk)
		n, err := sock.Send(c.rest())
		if err != nil {
			return err
		}
		c.off += n
		if c.off < len(c.buf) {
			break
		}
		q.Remove()
		e.bufs.Release(c.buf)
	}
	return e.rewatch(p)
}

// rewatch brings the watch interest of both sides in line with the queues.
func (e *Engine) rewatch(p *pair) error {
	for _, s := range []api.Side{api.SideClient, api.SideRemote} {
		if err := e.reg.SetInterest(p.fd(s), p.interest(s)); err != nil {
			return err
		}
	}
	return nil
}

// teardown unregisters the pair and closes it. by is the side whose
// event triggered the close; cause is nil for an orderly close or a veto.
func (e *Engine) teardown(p *pair, by api.Side, cause error) {
	if p.state >= api.PairClosing {
		return
	}
	p.state = api.PairClosing
	if _, err := e.reg.RemovePair(p.clientFD); err != nil {
		e.log.Printf("[forward] #%d unwatch: %v", p.id, err)
	}
	if err := e.finish(p, by, cause); err != nil {
		e.log.Printf("[forward] #%d close: %v", p.id, err)
	}
}

// finish closes both sockets of an already unregistered pair and reports
// the closure exactly once.
func (e *Engine) finish(p *pair, by api.Side, cause error) error {
	p.state = api.PairClosing
	err := errors.Join(p.client.Close(), p.remote.Close())
	p.release(e.bufs)
	p.state = api.PairClosed
	e.ctrl.AddMetric(control.MetricClosed, 1)
	e.ctrl.SetMetric(control.MetricActivePairs, int64(e.reg.Pairs()))

	info := p.info(by)
	info.Err = cause
	e.hooks.OnConnectionClosed(info)
	return err
}
