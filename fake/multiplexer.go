// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for all core interfaces.

package fake

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-fwd/api"
)

// Multiplexer is an in-memory api.Multiplexer. Tests queue reports with
// Push and inject failures through the exported error fields.
type Multiplexer struct {
	mu      sync.Mutex
	watched map[int]api.Interest
	reports [][]api.Event
	wakeCh  chan struct{}
	closed  bool

	AddErr  map[int]error // per-descriptor Add failures
	WaitErr error         // returned by every Wait once set
	Adds    int
	Removes int
	Wakes   int
}

// NewMultiplexer creates an empty fake multiplexer.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{
		watched: make(map[int]api.Interest),
		wakeCh:  make(chan struct{}, 1),
		AddErr:  make(map[int]error),
	}
}

func (m *Multiplexer) Add(fd int, interest api.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.AddErr[fd]; ok {
		return err
	}
	if _, ok := m.watched[fd]; ok {
		return fmt.Errorf("fake add fd %d: already watched", fd)
	}
	m.watched[fd] = interest
	m.Adds++
	return nil
}

func (m *Multiplexer) Modify(fd int, interest api.Interest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[fd]; !ok {
		return fmt.Errorf("fake mod fd %d: not watched", fd)
	}
	m.watched[fd] = interest
	return nil
}

func (m *Multiplexer) Remove(fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.watched[fd]; !ok {
		return fmt.Errorf("fake del fd %d: not watched", fd)
	}
	delete(m.watched, fd)
	m.Removes++
	return nil
}

// Push queues a report for a future Wait.
func (m *Multiplexer) Push(events ...api.Event) {
	m.mu.Lock()
	m.reports = append(m.reports, events)
	m.mu.Unlock()
	m.Wake()
}

// Wait returns WaitErr if set, else the oldest queued report, else blocks
// until Push or Wake.
func (m *Multiplexer) Wait(report *api.Report) error {
	report.Reset()
	for {
		m.mu.Lock()
		if m.WaitErr != nil {
			err := m.WaitErr
			m.mu.Unlock()
			return err
		}
		if len(m.reports) > 0 {
			report.Events = append(report.Events, m.reports[0]...)
			m.reports = m.reports[1:]
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()
		if _, ok := <-m.wakeCh; !ok {
			return nil
		}
		m.mu.Lock()
		empty := len(m.reports) == 0 && m.WaitErr == nil
		m.mu.Unlock()
		if empty {
			return nil
		}
	}
}

func (m *Multiplexer) Wake() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.Wakes++
	select {
	case m.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

func (m *Multiplexer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.wakeCh)
	}
	return nil
}

// Watched returns a copy of the watch set.
func (m *Multiplexer) Watched() map[int]api.Interest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]api.Interest, len(m.watched))
	for fd, i := range m.watched {
		out[fd] = i
	}
	return out
}

// SetWaitErr makes every subsequent Wait fail with err.
func (m *Multiplexer) SetWaitErr(err error) {
	m.mu.Lock()
	m.WaitErr = err
	m.mu.Unlock()
	m.Wake()
}

var _ api.Multiplexer = (*Multiplexer)(nil)
