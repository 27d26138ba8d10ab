// File: internal/registry/registry.go
// Package registry
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pair registry: symmetric descriptor -> peer mapping kept in lockstep with
// the multiplexer watch set. A descriptor is watched if and only if it is
// registered, either as one side of a pair or as a listener.

package registry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/momentics/hioload-fwd/api"
)

type entry[T any] struct {
	peer     int
	value    T
	interest api.Interest
}

// Registry maps each paired descriptor to its peer and a shared value.
// Mutating methods must be called from the goroutine that owns the
// multiplexer. Pairs and Watched may be read from anywhere.
type Registry[T any] struct {
	mux       api.Multiplexer
	entries   map[int]*entry[T]
	listeners map[int]struct{}

	pairs   atomic.Int64
	watched atomic.Int64
}

// New creates an empty registry driving mux.
func New[T any](mux api.Multiplexer) *Registry[T] {
	return &Registry[T]{
		mux:       mux,
		entries:   make(map[int]*entry[T]),
		listeners: make(map[int]struct{}),
	}
}

func (r *Registry[T]) known(fd int) bool {
	if _, ok := r.entries[fd]; ok {
		return true
	}
	_, ok := r.listeners[fd]
	return ok
}

func alreadyRegistered(fd int) error {
	return api.NewError(api.ErrCodeAlreadyRegistered, "descriptor already registered").WithContext("fd", fd)
}

func notRegistered(fd int) error {
	return api.NewError(api.ErrCodeNotRegistered, "descriptor not registered").WithContext("fd", fd)
}

// RegisterListener watches fd for readability permanently, without a peer.
func (r *Registry[T]) RegisterListener(fd int) error {
	if fd < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "negative descriptor").WithContext("fd", fd)
	}
	if r.known(fd) {
		return alreadyRegistered(fd)
	}
	if err := r.mux.Add(fd, api.Readable); err != nil {
		return fmt.Errorf("watch listener: %w", err)
	}
	r.listeners[fd] = struct{}{}
	r.watched.Add(1)
	return nil
}

// UnregisterListener stops watching a listener. Only used at shutdown.
func (r *Registry[T]) UnregisterListener(fd int) error {
	if _, ok := r.listeners[fd]; !ok {
		return notRegistered(fd)
	}
	delete(r.listeners, fd)
	r.watched.Add(-1)
	if err := r.mux.Remove(fd); err != nil {
		return fmt.Errorf("unwatch listener: %w", err)
	}
	return nil
}

// RegisterPair binds a and b as peers and starts watching both for
// readability. Neither may be registered already. On failure nothing
// stays registered or watched.
func (r *Registry[T]) RegisterPair(a, b int, value T) error {
	if a < 0 || b < 0 || a == b {
		return api.NewError(api.ErrCodeInvalidArgument, "invalid descriptor pair").
			WithContext("a", a).WithContext("b", b)
	}
	if r.known(a) {
		return alreadyRegistered(a)
	}
	if r.known(b) {
		return alreadyRegistered(b)
	}
	if err := r.mux.Add(a, api.Readable); err != nil {
		return fmt.Errorf("watch fd %d: %w", a, err)
	}
	if err := r.mux.Add(b, api.Readable); err != nil {
		_ = r.mux.Remove(a)
		return fmt.Errorf("watch fd %d: %w", b, err)
	}
	r.entries[a] = &entry[T]{peer: b, value: value, interest: api.Readable}
	r.entries[b] = &entry[T]{peer: a, value: value, interest: api.Readable}
	r.pairs.Add(1)
	r.watched.Add(2)
	return nil
}

// LookupPeer returns the peer of fd.
func (r *Registry[T]) LookupPeer(fd int) (int, error) {
	e, ok := r.entries[fd]
	if !ok {
		return -1, notRegistered(fd)
	}
	return e.peer, nil
}

// Lookup returns the value stored with the pair fd belongs to.
func (r *Registry[T]) Lookup(fd int) (T, error) {
	e, ok := r.entries[fd]
	if !ok {
		var zero T
		return zero, notRegistered(fd)
	}
	return e.value, nil
}

// RemovePair unregisters fd and its peer and stops watching both, whichever
// side fd is. The pair is gone from the registry even if the multiplexer
// reports an error; that error is returned alongside the value.
func (r *Registry[T]) RemovePair(fd int) (T, error) {
	e, ok := r.entries[fd]
	if !ok {
		var zero T
		return zero, notRegistered(fd)
	}
	peer := e.peer
	delete(r.entries, fd)
	delete(r.entries, peer)
	r.pairs.Add(-1)
	r.watched.Add(-2)
	if err := errors.Join(r.mux.Remove(fd), r.mux.Remove(peer)); err != nil {
		return e.value, fmt.Errorf("unwatch pair %d/%d: %w", fd, peer, err)
	}
	return e.value, nil
}

// SetInterest changes what a paired descriptor is watched for.
// An empty interest keeps the descriptor watched for hang-ups only.
func (r *Registry[T]) SetInterest(fd int, interest api.Interest) error {
	e, ok := r.entries[fd]
	if !ok {
		return notRegistered(fd)
	}
	if e.interest == interest {
		return nil
	}
	if err := r.mux.Modify(fd, interest); err != nil {
		return fmt.Errorf("rewatch fd %d: %w", fd, err)
	}
	e.interest = interest
	return nil
}

// Interest returns the current interest of a paired descriptor.
func (r *Registry[T]) Interest(fd int) (api.Interest, bool) {
	e, ok := r.entries[fd]
	if !ok {
		return 0, false
	}
	return e.interest, true
}

// IsRegistered reports whether fd is one side of a registered pair.
func (r *Registry[T]) IsRegistered(fd int) bool {
	_, ok := r.entries[fd]
	return ok
}

// IsListener reports whether fd is a registered listener.
func (r *Registry[T]) IsListener(fd int) bool {
	_, ok := r.listeners[fd]
	return ok
}

// Pairs returns the number of registered pairs.
func (r *Registry[T]) Pairs() int { return int(r.pairs.Load()) }

// Watched returns the number of watched descriptors, listeners included.
func (r *Registry[T]) Watched() int { return int(r.watched.Load()) }

// Range calls fn once per pair until fn returns false.
func (r *Registry[T]) Range(fn func(a, b int, value T) bool) {
	for fd, e := range r.entries {
		if fd > e.peer {
			continue
		}
		if !fn(fd, e.peer, e.value) {
			return
		}
	}
}

// Drain removes every pair and returns their values.
func (r *Registry[T]) Drain() ([]T, error) {
	var fds []int
	r.Range(func(a, _ int, _ T) bool {
		fds = append(fds, a)
		return true
	})
	values := make([]T, 0, len(fds))
	var errs []error
	for _, fd := range fds {
		v, err := r.RemovePair(fd)
		values = append(values, v)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return values, errors.Join(errs...)
}
