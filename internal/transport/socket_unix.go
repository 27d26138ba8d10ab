//go:build unix

// File: internal/transport/socket_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unix socket handle on top of golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultBacklog is the listen queue length used when none is given.
// The kernel clamps it to net.core.somaxconn or its BSD equivalent.
const DefaultBacklog = unix.SOMAXCONN

// NewSocket creates a close-on-exec TCP stream socket for the given family
// (unix.AF_INET or unix.AF_INET6).
func NewSocket(family int) (*Socket, error) {
	// Same ForkLock discipline as the standard library: the descriptor must
	// not leak into a child forked between socket and CloseOnExec.
	syscall.ForkLock.RLock()
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	return &Socket{fd: fd, family: family}, nil
}

// Bind assigns the local address.
func (s *Socket) Bind(addr netip.AddrPort) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(s.fd, toSockaddr(addr)); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.local = addr
	if sa, err := unix.Getsockname(s.fd); err == nil {
		s.local = fromSockaddr(sa)
	}
	return nil
}

// Listen switches the socket to non-blocking listening mode.
func (s *Socket) Listen(backlog int) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return fmt.Errorf("set nonblock: %w", err)
	}
	if err := unix.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("listen %s: %w", s.local, err)
	}
	return nil
}

// Connect establishes an outbound connection. The call blocks until the
// connection succeeds, is refused, or timeout expires (timeout <= 0 leaves
// the limit to the kernel). The socket is left non-blocking.
func (s *Socket) Connect(addr netip.AddrPort, timeout time.Duration) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return fmt.Errorf("set nonblock: %w", err)
	}
	switch err := unix.Connect(s.fd, toSockaddr(addr)); err {
	case nil:
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		if err := waitWritable(s.fd, timeout); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
		}
		soerr, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return fmt.Errorf("%w: %s: getsockopt SO_ERROR: %w", ErrConnect, addr, err)
		}
		if soerr != 0 {
			return fmt.Errorf("%w: %s: %w", ErrConnect, addr, unix.Errno(soerr))
		}
	default:
		return fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}
	_ = unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	s.remote = addr
	if sa, err := unix.Getsockname(s.fd); err == nil {
		s.local = fromSockaddr(sa)
	}
	return nil
}

// Accept takes one pending connection off a listening socket.
// It returns ErrWouldBlock when the queue is empty.
func (s *Socket) Accept() (*Socket, error) {
	if s.Closed() {
		return nil, ErrClosed
	}
	for {
		syscall.ForkLock.RLock()
		nfd, sa, err := unix.Accept(s.fd)
		if err == nil {
			unix.CloseOnExec(nfd)
		}
		syscall.ForkLock.RUnlock()
		switch {
		case err == nil:
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return nil, ErrWouldBlock
		default:
			return nil, fmt.Errorf("accept: %w", err)
		}
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			return nil, fmt.Errorf("accept: set nonblock: %w", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		c := &Socket{fd: nfd, family: s.family, remote: fromSockaddr(sa)}
		if lsa, err := unix.Getsockname(nfd); err == nil {
			c.local = fromSockaddr(lsa)
		}
		return c, nil
	}
}

// Send writes as much of p as the socket accepts right now and returns the
// count. A full send buffer yields (0, nil); callers must handle short writes.
func (s *Socket) Send(p []byte) (int, error) {
	if s.Closed() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, nil
		default:
			return 0, fmt.Errorf("send fd %d: %w", s.fd, err)
		}
	}
}

// Recv reads into p. (0, nil) is an orderly close by the peer,
// (0, ErrWouldBlock) means no data yet.
func (s *Socket) Recv(p []byte) (int, error) {
	if s.Closed() {
		return 0, ErrClosed
	}
	for {
		n, err := unix.Read(s.fd, p)
		switch {
		case err == nil:
			return n, nil
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("recv fd %d: %w", s.fd, err)
		}
	}
}

// Close releases the descriptor. Subsequent calls are no-ops.
func (s *Socket) Close() error {
	if s.Closed() {
		return nil
	}
	fd := s.fd
	s.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close fd %d: %w", fd, err)
	}
	return nil
}

// IsTransientAccept reports whether an Accept error concerns only the
// connection being accepted, leaving the listener usable.
func IsTransientAccept(err error) bool {
	return errors.Is(err, unix.ECONNABORTED) ||
		errors.Is(err, unix.EPROTO) ||
		errors.Is(err, unix.EPERM) ||
		errors.Is(err, unix.EINTR)
}

func waitWritable(fd int, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		ms := -1
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return unix.ETIMEDOUT
			}
			ms = int((left + time.Millisecond - 1) / time.Millisecond)
		}
		n, err := unix.Poll(fds, ms)
		switch {
		case err == unix.EINTR:
			continue
		case err != nil:
			return fmt.Errorf("poll: %w", err)
		case n == 0:
			return unix.ETIMEDOUT
		}
		return nil
	}
}

func familyOf(addr netip.AddrPort) int {
	if addr.Addr().Unmap().Is4() {
		return unix.AF_INET
	}
	return unix.AF_INET6
}

func toSockaddr(addr netip.AddrPort) unix.Sockaddr {
	ip := addr.Addr().Unmap()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	}
	return &unix.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
}

func fromSockaddr(sa unix.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr).Unmap(), uint16(v.Port))
	}
	return netip.AddrPort{}
}
