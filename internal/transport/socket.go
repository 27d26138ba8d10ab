// File: internal/transport/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral part of the socket handle: ownership, addresses, errors.

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/momentics/hioload-fwd/api"
)

var (
	// ErrWouldBlock is returned by Recv and Accept when nothing is ready yet.
	// It is not a failure.
	ErrWouldBlock = errors.New("operation would block")

	// ErrConnect wraps every outbound connect failure.
	ErrConnect = errors.New("connect failed")

	// ErrClosed is returned by operations on a closed or transferred handle.
	ErrClosed = api.ErrClosed
)

// Socket owns exactly one stream socket descriptor.
// A Socket is not safe for concurrent use.
type Socket struct {
	fd     int
	family int
	local  netip.AddrPort
	remote netip.AddrPort
}

// FD returns the descriptor, or -1 once the handle is closed or transferred.
func (s *Socket) FD() int {
	if s == nil {
		return -1
	}
	return s.fd
}

// LocalAddr returns the bound local address.
func (s *Socket) LocalAddr() netip.AddrPort { return s.local }

// RemoteAddr returns the peer address of an accepted or connected socket.
func (s *Socket) RemoteAddr() netip.AddrPort { return s.remote }

// Closed reports whether the handle no longer owns a descriptor.
func (s *Socket) Closed() bool { return s == nil || s.fd < 0 }

// Transfer moves ownership of the descriptor to a new handle and
// invalidates s. Closing s afterwards is a no-op.
func (s *Socket) Transfer() *Socket {
	moved := *s
	s.fd = -1
	s.local = netip.AddrPort{}
	s.remote = netip.AddrPort{}
	return &moved
}

func (s *Socket) String() string {
	if s.Closed() {
		return "socket(closed)"
	}
	if s.remote.IsValid() {
		return fmt.Sprintf("socket(fd=%d %s->%s)", s.fd, s.local, s.remote)
	}
	return fmt.Sprintf("socket(fd=%d %s)", s.fd, s.local)
}

// ListenTCP creates a non-blocking listening socket bound to addr.
// Nothing is left open on failure.
func ListenTCP(addr netip.AddrPort, backlog int) (*Socket, error) {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	s, err := NewSocket(familyOf(addr))
	if err != nil {
		return nil, err
	}
	if err := s.Bind(addr); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Listen(backlog); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// DialTCP connects to addr with blocking-connect semantics. A timeout <= 0
// waits for the operating system's connect timeout. The returned socket is
// non-blocking.
func DialTCP(addr netip.AddrPort, timeout time.Duration) (*Socket, error) {
	s, err := NewSocket(familyOf(addr))
	if err != nil {
		return nil, err
	}
	if err := s.Connect(addr, timeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
