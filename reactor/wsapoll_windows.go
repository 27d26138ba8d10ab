//go:build windows

// File: reactor/wsapoll_windows.go
// Author: momentics <momentics@gmail.com>
//
// WSAPoll multiplexer for Windows. Level-triggered like poll(2); the
// pollfd array is rebuilt from the interest map on every Wait.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"github.com/momentics/hioload-fwd/api"
	"golang.org/x/sys/windows"
)

const (
	pollRdNorm = 0x0100
	pollRdBand = 0x0200
	pollWrNorm = 0x0010
	pollErr    = 0x0001
	pollHup    = 0x0002
	pollNval   = 0x0004

	wsaEINTR       = syscall.Errno(10004)
	wsaEWOULDBLOCK = syscall.Errno(10035)
	fionbio        = 0x8004667e
)

var (
	modws2_32       = windows.NewLazySystemDLL("ws2_32.dll")
	procWSAPoll     = modws2_32.NewProc("WSAPoll")
	procIoctlsocket = modws2_32.NewProc("ioctlsocket")

	wsaOnce sync.Once
	wsaErr  error
)

// pollFD mirrors WSAPOLLFD.
type pollFD struct {
	fd      windows.Handle
	events  int16
	revents int16
}

func startup() error {
	wsaOnce.Do(func() {
		var data windows.WSAData
		if err := windows.WSAStartup(uint32(0x202), &data); err != nil {
			wsaErr = fmt.Errorf("WSAStartup: %w", err)
		}
	})
	return wsaErr
}

func lastErr(err error) error {
	var en syscall.Errno
	if errors.As(err, &en) && en != 0 {
		return en
	}
	return syscall.EINVAL
}

type wsaPollMultiplexer struct {
	interest map[int]api.Interest
	fds      []pollFD
	waker    *waker
}

func newMultiplexer() (api.Multiplexer, error) {
	if err := startup(); err != nil {
		return nil, err
	}
	w, err := newWaker()
	if err != nil {
		return nil, err
	}
	return &wsaPollMultiplexer{
		interest: make(map[int]api.Interest),
		fds:      make([]pollFD, 0, defaultEvents),
		waker:    w,
	}, nil
}

func (m *wsaPollMultiplexer) Add(fd int, interest api.Interest) error {
	if _, ok := m.interest[fd]; ok {
		return fmt.Errorf("wsapoll add socket %d: already watched", fd)
	}
	m.interest[fd] = interest
	return nil
}

func (m *wsaPollMultiplexer) Modify(fd int, interest api.Interest) error {
	if _, ok := m.interest[fd]; !ok {
		return fmt.Errorf("wsapoll mod socket %d: not watched", fd)
	}
	m.interest[fd] = interest
	return nil
}

func (m *wsaPollMultiplexer) Remove(fd int) error {
	if _, ok := m.interest[fd]; !ok {
		return fmt.Errorf("wsapoll del socket %d: not watched", fd)
	}
	delete(m.interest, fd)
	return nil
}

func (m *wsaPollMultiplexer) Wait(report *api.Report) error {
	report.Reset()
	m.fds = m.fds[:0]
	m.fds = append(m.fds, pollFD{fd: m.waker.sock, events: pollRdNorm})
	for fd, interest := range m.interest {
		// WSAPoll reports POLLHUP whatever the mask, so a paused socket
		// stays out of the set until it is interesting again.
		if interest == 0 {
			continue
		}
		var ev int16
		if interest&api.Readable != 0 {
			ev |= pollRdNorm
		}
		if interest&api.Writable != 0 {
			ev |= pollWrNorm
		}
		m.fds = append(m.fds, pollFD{fd: windows.Handle(fd), events: ev})
	}
	timeout := -1
	for {
		r, _, callErr := procWSAPoll.Call(uintptr(unsafe.Pointer(&m.fds[0])), uintptr(len(m.fds)), uintptr(timeout))
		if int32(r) >= 0 {
			break
		}
		err := lastErr(callErr)
		if errors.Is(err, wsaEINTR) {
			continue
		}
		return fmt.Errorf("wsapoll wait: %w", err)
	}
	if m.fds[0].revents != 0 {
		m.waker.drain()
	}
	for _, p := range m.fds[1:] {
		if p.revents == 0 {
			continue
		}
		// A graceful FIN arrives as POLLHUP; the next read returns 0.
		var ready api.Interest
		if p.revents&(pollRdNorm|pollRdBand) != 0 || (p.revents&pollHup != 0 && p.events&pollRdNorm != 0) {
			ready |= api.Readable
		}
		if p.revents&pollWrNorm != 0 {
			ready |= api.Writable
		}
		if p.revents&(pollErr|pollNval) != 0 {
			ready |= api.Hangup
		}
		if ready == 0 {
			continue
		}
		report.Events = append(report.Events, api.Event{FD: int(p.fd), Ready: ready})
	}
	return nil
}

func (m *wsaPollMultiplexer) Wake() error {
	return m.waker.wake()
}

func (m *wsaPollMultiplexer) Close() error {
	m.interest = nil
	return m.waker.close()
}
