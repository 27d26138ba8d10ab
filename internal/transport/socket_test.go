//go:build unix || windows

package transport_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/internal/transport"
)

var loopback = netip.MustParseAddrPort("127.0.0.1:0")

// retry calls fn until it stops returning ErrWouldBlock or the deadline passes.
func retry(t *testing.T, fn func() error) error {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		err := fn()
		if !errors.Is(err, transport.ErrWouldBlock) {
			return err
		}
		if time.Now().After(deadline) {
			t.Fatal("operation kept returning ErrWouldBlock")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestListenAcceptSendRecv(t *testing.T) {
	ln, err := transport.ListenTCP(loopback, 0)
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	defer ln.Close()
	if ln.LocalAddr().Port() == 0 {
		t.Fatal("expected an ephemeral port to be assigned")
	}

	if _, err := ln.Accept(); !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("Accept on idle listener: got %v, want ErrWouldBlock", err)
	}

	client, err := net.Dial("tcp", ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var srv *transport.Socket
	if err := retry(t, func() (err error) {
		srv, err = ln.Accept()
		return err
	}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer srv.Close()
	if srv.RemoteAddr().String() != client.LocalAddr().String() {
		t.Errorf("peer address %s, want %s", srv.RemoteAddr(), client.LocalAddr())
	}

	buf := make([]byte, 64)
	if _, err := srv.Recv(buf); !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("Recv with no data: got %v, want ErrWouldBlock", err)
	}

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := retry(t, func() (err error) {
		n, err = srv.Recv(buf)
		return err
	}); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("got %q", buf[:n])
	}

	if w, err := srv.Send([]byte("pong")); err != nil || w != 4 {
		t.Fatalf("Send: n=%d err=%v", w, err)
	}
	got := make([]byte, 4)
	if _, err := io.ReadFull(client, got); err != nil || string(got) != "pong" {
		t.Fatalf("client read %q, %v", got, err)
	}

	client.Close()
	if err := retry(t, func() (err error) {
		n, err = srv.Recv(buf)
		return err
	}); err != nil || n != 0 {
		t.Fatalf("orderly close: n=%d err=%v", n, err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := transport.ListenTCP(loopback, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if s.FD() != -1 || !s.Closed() {
		t.Fatal("closed socket still reports a descriptor")
	}
	if _, err := s.Send([]byte("x")); !errors.Is(err, api.ErrClosed) {
		t.Fatalf("Send after Close: %v", err)
	}
}

func TestTransferInvalidatesSource(t *testing.T) {
	s, err := transport.ListenTCP(loopback, 0)
	if err != nil {
		t.Fatal(err)
	}
	fd := s.FD()
	moved := s.Transfer()
	defer moved.Close()
	if s.FD() != -1 {
		t.Fatal("source still owns the descriptor")
	}
	if moved.FD() != fd {
		t.Fatalf("moved fd %d, want %d", moved.FD(), fd)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if moved.Closed() {
		t.Fatal("closing the source closed the moved handle")
	}
}

func TestDialRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := netip.MustParseAddrPort(l.Addr().String())
	l.Close()

	s, err := transport.DialTCP(addr, time.Second)
	if err == nil {
		s.Close()
		t.Fatal("expected connect to a closed port to fail")
	}
	if !errors.Is(err, transport.ErrConnect) {
		t.Fatalf("error %v does not wrap ErrConnect", err)
	}
}

func TestDialSucceeds(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	addr := netip.MustParseAddrPort(l.Addr().String())

	s, err := transport.DialTCP(addr, time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer s.Close()
	if s.RemoteAddr() != addr {
		t.Errorf("remote %s, want %s", s.RemoteAddr(), addr)
	}
	if !s.LocalAddr().IsValid() {
		t.Error("local address not recorded")
	}
}

func TestListenOnOccupiedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	addr := netip.MustParseAddrPort(l.Addr().String())

	s, err := transport.ListenTCP(addr, 0)
	if err == nil {
		s.Close()
		t.Fatal("expected bind on an occupied port to fail")
	}
}

func TestResolveAddress(t *testing.T) {
	ctx := context.Background()
	a, err := transport.ResolveAddress(ctx, "127.0.0.1", 8080)
	if err != nil || a.String() != "127.0.0.1:8080" {
		t.Fatalf("literal: %v %v", a, err)
	}
	a, err = transport.ResolveAddress(ctx, "", 0)
	if err != nil || !a.Addr().IsUnspecified() {
		t.Fatalf("empty host: %v %v", a, err)
	}
	a, err = transport.ResolveAddress(ctx, "localhost", 22)
	if err != nil || !a.Addr().IsLoopback() {
		t.Fatalf("localhost: %v %v", a, err)
	}
	if _, err := transport.ResolveAddress(ctx, "127.0.0.1", 70000); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("out of range port: %v", err)
	}
}
