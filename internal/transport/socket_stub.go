//go:build !unix && !windows

// File: internal/transport/socket_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for platforms without unix or Winsock sockets.

package transport

import (
	"net/netip"
	"time"

	"github.com/momentics/hioload-fwd/api"
)

// DefaultBacklog is the listen queue length used when none is given.
const DefaultBacklog = 128

// NewSocket returns api.ErrNotSupported on this platform.
func NewSocket(family int) (*Socket, error) { return nil, api.ErrNotSupported }

func (s *Socket) Bind(netip.AddrPort) error                   { return api.ErrNotSupported }
func (s *Socket) Listen(int) error                            { return api.ErrNotSupported }
func (s *Socket) Connect(netip.AddrPort, time.Duration) error { return api.ErrNotSupported }
func (s *Socket) Accept() (*Socket, error)                    { return nil, api.ErrNotSupported }
func (s *Socket) Send([]byte) (int, error)                    { return 0, api.ErrNotSupported }
func (s *Socket) Recv([]byte) (int, error)                    { return 0, api.ErrNotSupported }

// Close marks the handle closed.
func (s *Socket) Close() error {
	if s != nil {
		s.fd = -1
	}
	return nil
}

// IsTransientAccept always reports false on this platform.
func IsTransientAccept(error) bool { return false }

func familyOf(netip.AddrPort) int { return 0 }
