//go:build unix

// File: reactor/waker_unix.go
// Author: momentics <momentics@gmail.com>
//
// Self-pipe used to interrupt a blocked Wait from another goroutine.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

type waker struct {
	mu     sync.Mutex
	rfd    int
	wfd    int
	closed bool
}

func newWaker() (*waker, error) {
	var p [2]int
	syscall.ForkLock.RLock()
	err := unix.Pipe(p[:])
	if err == nil {
		unix.CloseOnExec(p[0])
		unix.CloseOnExec(p[1])
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("waker pipe: %w", err)
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, fmt.Errorf("waker nonblock: %w", err)
		}
	}
	return &waker{rfd: p[0], wfd: p[1]}, nil
}

// wake makes the read end readable. A full pipe already guarantees a wakeup.
func (w *waker) wake() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	_, err := unix.Write(w.wfd, []byte{1})
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("wake: %w", err)
	}
	return nil
}

func (w *waker) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.rfd, buf[:])
		if err != nil || n < len(buf) {
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
	return errors.Join(unix.Close(w.rfd), unix.Close(w.wfd))
}
