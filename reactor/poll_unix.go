//go:build unix && !linux

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// poll(2) multiplexer for unix systems without epoll (BSDs, macOS, Solaris).

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-fwd/api"
	"golang.org/x/sys/unix"
)

type pollMultiplexer struct {
	interest map[int]api.Interest
	fds      []unix.PollFd
	waker    *waker
}

func newMultiplexer() (api.Multiplexer, error) {
	w, err := newWaker()
	if err != nil {
		return nil, err
	}
	return &pollMultiplexer{
		interest: make(map[int]api.Interest),
		fds:      make([]unix.PollFd, 0, defaultEvents),
		waker:    w,
	}, nil
}

func (m *pollMultiplexer) Add(fd int, interest api.Interest) error {
	if _, ok := m.interest[fd]; ok {
		return fmt.Errorf("poll add fd %d: %w", fd, unix.EEXIST)
	}
	m.interest[fd] = interest
	return nil
}

func (m *pollMultiplexer) Modify(fd int, interest api.Interest) error {
	if _, ok := m.interest[fd]; !ok {
		return fmt.Errorf("poll mod fd %d: %w", fd, unix.ENOENT)
	}
	m.interest[fd] = interest
	return nil
}

func (m *pollMultiplexer) Remove(fd int) error {
	if _, ok := m.interest[fd]; !ok {
		return fmt.Errorf("poll del fd %d: %w", fd, unix.ENOENT)
	}
	delete(m.interest, fd)
	return nil
}

// Wait rebuilds the pollfd array from the interest map on every call.
func (m *pollMultiplexer) Wait(report *api.Report) error {
	report.Reset()
	m.fds = m.fds[:0]
	m.fds = append(m.fds, unix.PollFd{Fd: int32(m.waker.rfd), Events: unix.POLLIN})
	for fd, interest := range m.interest {
		var ev int16
		if interest&api.Readable != 0 {
			ev |= unix.POLLIN
		}
		if interest&api.Writable != 0 {
			ev |= unix.POLLOUT
		}
		m.fds = append(m.fds, unix.PollFd{Fd: int32(fd), Events: ev})
	}
	for {
		_, err := unix.Poll(m.fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll wait: %w", err)
		}
		break
	}
	if m.fds[0].Revents != 0 {
		m.waker.drain()
	}
	for _, p := range m.fds[1:] {
		if p.Revents == 0 {
			continue
		}
		var ready api.Interest
		if p.Revents&unix.POLLIN != 0 {
			ready |= api.Readable
		}
		if p.Revents&unix.POLLOUT != 0 {
			ready |= api.Writable
		}
		if p.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			ready |= api.Hangup
		}
		report.Events = append(report.Events, api.Event{FD: int(p.Fd), Ready: ready})
	}
	return nil
}

func (m *pollMultiplexer) Wake() error {
	return m.waker.wake()
}

func (m *pollMultiplexer) Close() error {
	m.interest = nil
	return m.waker.close()
}
