//go:build windows

// File: reactor/waker_windows.go
// Author: momentics <momentics@gmail.com>
//
// Loopback UDP socket connected to itself; a datagram interrupts a blocked
// WSAPoll from another goroutine.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

type waker struct {
	mu     sync.Mutex
	sock   windows.Handle
	closed bool
}

func newWaker() (*waker, error) {
	s, err := windows.Socket(windows.AF_INET, windows.SOCK_DGRAM, windows.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("waker socket: %w", err)
	}
	fail := func(op string, err error) (*waker, error) {
		windows.Closesocket(s)
		return nil, fmt.Errorf("waker %s: %w", op, err)
	}
	_ = windows.SetHandleInformation(s, windows.HANDLE_FLAG_INHERIT, 0)
	if err := windows.Bind(s, &windows.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}); err != nil {
		return fail("bind", err)
	}
	self, err := windows.Getsockname(s)
	if err != nil {
		return fail("getsockname", err)
	}
	if err := windows.Connect(s, self); err != nil {
		return fail("connect", err)
	}
	mode := uint32(1)
	if r, _, callErr := procIoctlsocket.Call(uintptr(s), uintptr(fionbio), uintptr(unsafe.Pointer(&mode))); r != 0 {
		return fail("ioctlsocket FIONBIO", lastErr(callErr))
	}
	return &waker{sock: s}, nil
}

// wake queues one datagram. A full socket buffer already guarantees a wakeup.
func (w *waker) wake() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	b := [1]byte{1}
	buf := windows.WSABuf{Len: 1, Buf: &b[0]}
	var n uint32
	err := windows.WSASend(w.sock, &buf, 1, &n, 0, nil, nil)
	if err != nil && !errors.Is(err, wsaEWOULDBLOCK) {
		return fmt.Errorf("wake: %w", err)
	}
	return nil
}

func (w *waker) drain() {
	var b [64]byte
	buf := windows.WSABuf{Len: uint32(len(b)), Buf: &b[0]}
	for {
		var n, flags uint32
		if err := windows.WSARecv(w.sock, &buf, 1, &n, &flags, nil, nil); err != nil {
			return
		}
	}
}

func (w *waker) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return windows.Closesocket(w.sock)
}
