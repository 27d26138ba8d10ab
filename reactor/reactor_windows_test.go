//go:build windows

package reactor_test

import (
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/internal/transport"
	"github.com/momentics/hioload-fwd/reactor"
)

// loopbackPair returns both ends of a connected loopback TCP connection.
func loopbackPair(t *testing.T) (*transport.Socket, *transport.Socket) {
	t.Helper()
	ln, err := transport.ListenTCP(netip.MustParseAddrPort("127.0.0.1:0"), 0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	a, err := transport.DialTCP(ln.LocalAddr(), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	deadline := time.Now().Add(2 * time.Second)
	for {
		b, err := ln.Accept()
		if err == nil {
			t.Cleanup(func() { b.Close() })
			return a, b
		}
		if !errors.Is(err, transport.ErrWouldBlock) || time.Now().After(deadline) {
			t.Fatalf("accept: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newMux(t *testing.T) api.Multiplexer {
	t.Helper()
	m, err := reactor.New()
	if err != nil {
		t.Fatalf("reactor.New: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func readyOf(r *api.Report, fd int) (api.Interest, bool) {
	for _, ev := range r.Events {
		if ev.FD == fd {
			return ev.Ready, true
		}
	}
	return 0, false
}

func TestWSAPollReadableIsLevelTriggered(t *testing.T) {
	m := newMux(t)
	a, b := loopbackPair(t)
	if err := m.Add(a.FD(), api.Readable); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Send([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	var r api.Report
	for i := 0; i < 2; i++ {
		if err := m.Wait(&r); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if ready, ok := readyOf(&r, a.FD()); !ok || !ready.Has(api.Readable) {
			t.Fatalf("iteration %d: not readable: %+v", i, r.Events)
		}
	}
}

func TestWSAPollPeerCloseReadsAsEOF(t *testing.T) {
	m := newMux(t)
	a, b := loopbackPair(t)
	if err := m.Add(a.FD(), api.Readable); err != nil {
		t.Fatal(err)
	}
	b.Close()
	var r api.Report
	if err := m.Wait(&r); err != nil {
		t.Fatal(err)
	}
	if ready, ok := readyOf(&r, a.FD()); !ok || !ready.Has(api.Readable) {
		t.Fatalf("peer close not reported readable: %+v", r.Events)
	}
	if n, err := a.Recv(make([]byte, 8)); n != 0 || err != nil {
		t.Fatalf("Recv after peer close: n=%d err=%v", n, err)
	}
}

func TestWSAPollPausedSocketIsSilent(t *testing.T) {
	m := newMux(t)
	a, b := loopbackPair(t)
	if err := m.Add(a.FD(), 0); err != nil {
		t.Fatal(err)
	}
	b.Close()
	m.Wake()
	var r api.Report
	if err := m.Wait(&r); err != nil {
		t.Fatal(err)
	}
	if _, ok := readyOf(&r, a.FD()); ok {
		t.Fatalf("paused socket reported: %+v", r.Events)
	}
}

func TestWSAPollWakeFromAnotherGoroutine(t *testing.T) {
	m := newMux(t)
	done := make(chan error, 1)
	go func() {
		var r api.Report
		done <- m.Wait(&r)
	}()
	time.Sleep(20 * time.Millisecond)
	if err := m.Wake(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wake did not interrupt Wait")
	}
}
