// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for readiness-based multiplexers
// used to drive the forwarding loop over epoll, poll(2), or test fakes.

package api

// Interest is a bitmask of readiness conditions.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
	// Hangup marks error or hang-up conditions. It is reported regardless of
	// the registered interest and never needs to be requested.
	Hangup
)

// Has reports whether all bits of o are set.
func (i Interest) Has(o Interest) bool { return i&o == o }

// Event is a single readiness notification.
type Event struct {
	FD    int
	Ready Interest
}

// Report is the per-iteration snapshot produced by Multiplexer.Wait.
// Its contents are overwritten by the next Wait call.
type Report struct {
	Events []Event
}

// Reset empties the report while keeping its storage.
func (r *Report) Reset() { r.Events = r.Events[:0] }

// Len returns the number of ready descriptors.
func (r *Report) Len() int { return len(r.Events) }

// Multiplexer watches descriptors for readiness.
// It is owned by a single goroutine; only Wake may be called concurrently.
type Multiplexer interface {
	// Add starts watching fd with the given interest.
	Add(fd int, interest Interest) error
	// Modify replaces the interest of an already watched fd.
	Modify(fd int, interest Interest) error
	// Remove stops watching fd. It must be called before fd is closed.
	Remove(fd int) error
	// Wait blocks until at least one watched fd is ready or Wake is called,
	// and fills report. Errors are unrecoverable for the caller.
	Wait(report *Report) error
	// Wake interrupts a blocked or the next Wait, which then returns an empty report.
	Wake() error
	// Close releases the polling mechanism.
	Close() error
}
