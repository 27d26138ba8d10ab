//go:build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-fwd/api"
	"golang.org/x/sys/unix"
)

// epollMultiplexer implements api.Multiplexer using level-triggered epoll.
type epollMultiplexer struct {
	epfd   int
	events []unix.EpollEvent
	waker  *waker
}

func newMultiplexer() (api.Multiplexer, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	w, err := newWaker()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(w.rfd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, w.rfd, &ev); err != nil {
		w.close()
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add waker: %w", err)
	}
	return &epollMultiplexer{
		epfd:   epfd,
		events: make([]unix.EpollEvent, defaultEvents),
		waker:  w,
	}, nil
}

func epollEvents(interest api.Interest) uint32 {
	var ev uint32
	if interest&api.Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Add registers fd with the given interest.
func (m *epollMultiplexer) Add(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Modify replaces the interest set of fd.
func (m *epollMultiplexer) Modify(fd int, interest api.Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Remove drops fd from the interest list.
func (m *epollMultiplexer) Remove(fd int) error {
	// Kernels before 2.6.9 require a non-nil event for EPOLL_CTL_DEL.
	var ev unix.EpollEvent
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until readiness or Wake and fills report.
func (m *epollMultiplexer) Wait(report *api.Report) error {
	report.Reset()
	for {
		n, err := unix.EpollWait(m.epfd, m.events, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("epoll wait: %w", err)
		}
		for i := 0; i < n; i++ {
			ev := m.events[i]
			fd := int(ev.Fd)
			if fd == m.waker.rfd {
				m.waker.drain()
				continue
			}
			var ready api.Interest
			if ev.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
				ready |= api.Readable
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				ready |= api.Writable
			}
			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				ready |= api.Hangup
			}
			report.Events = append(report.Events, api.Event{FD: fd, Ready: ready})
		}
		// A full buffer means more descriptors may be pending; they stay
		// ready and show up next time, but give the next call more room.
		if n == len(m.events) && len(m.events) < maxEvents {
			m.events = make([]unix.EpollEvent, 2*len(m.events))
		}
		return nil
	}
}

// Wake interrupts Wait.
func (m *epollMultiplexer) Wake() error {
	return m.waker.wake()
}

// Close releases the epoll descriptor and the waker.
func (m *epollMultiplexer) Close() error {
	werr := m.waker.close()
	if err := unix.Close(m.epfd); err != nil {
		return fmt.Errorf("epoll close: %w", err)
	}
	return werr
}
