//go:build unix || windows

package forward_test

import (
	"context"
	"io"
	"log"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/forward"
)

// recorder captures hook calls. Hooks run on the engine goroutine.
type recorder struct {
	mu       sync.Mutex
	conns    []api.ConnInfo
	closed   []api.ConnInfo
	errs     []string
	bytes    int
	vetoConn bool
	vetoData bool
}

func (r *recorder) OnNewConnection(info api.ConnInfo) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = append(r.conns, info)
	return !r.vetoConn
}

func (r *recorder) OnNewData(info api.ConnInfo, data []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes += len(data)
	return !r.vetoData
}

func (r *recorder) OnConnectionClosed(info api.ConnInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, info)
}

func (r *recorder) OnError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *recorder) closedInfo() []api.ConnInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.ConnInfo(nil), r.closed...)
}

func (r *recorder) errorLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errs...)
}

func (r *recorder) connCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

var quiet = log.New(io.Discard, "", 0)

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startRemote runs handle for every connection accepted on a loopback port.
func startRemote(t *testing.T, handle func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("remote listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(c)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func echo(c net.Conn) {
	defer c.Close()
	io.Copy(c, c)
}

// unusedPort returns a loopback port with nothing listening on it.
func unusedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

type running struct {
	*forward.Engine
	stop func() error
}

// startEngine runs an engine forwarding an ephemeral local port to remotePort.
func startEngine(t *testing.T, remotePort int, opts ...forward.Option) *running {
	t.Helper()
	cfg := forward.DefaultConfig()
	cfg.RemoteHost = "127.0.0.1"
	cfg.RemotePort = remotePort
	return startEngineConfig(t, cfg, opts...)
}

func startEngineConfig(t *testing.T, cfg forward.Config, opts ...forward.Option) *running {
	t.Helper()
	e, err := forward.New(cfg, append([]forward.Option{forward.WithLogger(quiet)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Listen(); err != nil {
		e.Close()
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-done:
			case <-time.After(2 * time.Second):
				t.Error("Run did not return after cancel")
			}
		})
		return runErr
	}
	t.Cleanup(func() {
		stop()
		e.Close()
	})
	return &running{Engine: e, stop: stop}
}

func (r *running) dial(t *testing.T) net.Conn {
	t.Helper()
	c, err := net.Dial("tcp", r.Addr().String())
	if err != nil {
		t.Fatalf("dial forwarder: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// expectEOF reads from c until it is closed by the other end.
func expectEOF(t *testing.T, c net.Conn) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	for {
		_, err := c.Read(buf)
		if err == nil {
			continue
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			t.Fatal("connection was not closed")
		}
		return
	}
}
