//go:build windows

// File: internal/transport/socket_windows.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Windows socket handle on top of golang.org/x/sys/windows (Winsock 2).

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultBacklog is the listen queue length used when none is given.
// Winsock picks its own maximum for SOMAXCONN.
const DefaultBacklog = windows.SOMAXCONN

// Winsock error codes and constants not exported by x/sys/windows.
const (
	wsaEINTR        = syscall.Errno(10004)
	wsaEWOULDBLOCK  = syscall.Errno(10035)
	wsaEINPROGRESS  = syscall.Errno(10036)
	wsaEALREADY     = syscall.Errno(10037)
	wsaECONNABORTED = syscall.Errno(10053)
	wsaECONNRESET   = syscall.Errno(10054)
	wsaETIMEDOUT    = syscall.Errno(10060)
	wsaECONNREFUSED = syscall.Errno(10061)

	soError = 0x1007
	fionbio = 0x8004667e

	pollWrNorm = 0x0010
	pollErr    = 0x0001
	pollHup    = 0x0002
)

var (
	modws2_32       = windows.NewLazySystemDLL("ws2_32.dll")
	procAccept      = modws2_32.NewProc("accept")
	procIoctlsocket = modws2_32.NewProc("ioctlsocket")
	procWSAPoll     = modws2_32.NewProc("WSAPoll")

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

// lastErr turns the error of a lazy proc call into an errno.
func lastErr(err error) error {
	var en syscall.Errno
	if errors.As(err, &en) && en != 0 {
		return en
	}
	return syscall.EINVAL
}

func setNonblock(h windows.Handle) error {
	mode := uint32(1)
	r, _, err := procIoctlsocket.Call(uintptr(h), uintptr(fionbio), uintptr(unsafe.Pointer(&mode)))
	if r != 0 {
		return fmt.Errorf("ioctlsocket FIONBIO: %w", lastErr(err))
	}
	return nil
}

// NewSocket creates a non-inheritable TCP stream socket for the given
// family (windows.AF_INET or windows.AF_INET6).
func NewSocket(family int) (*Socket, error) {
	if err := startup(); err != nil {
		return nil, err
	}
	h, err := windows.Socket(family, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("socket create: %w", err)
	}
	_ = windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, 0)
	return &Socket{fd: int(h), family: family}, nil
}

func (s *Socket) handle() windows.Handle { return windows.Handle(s.fd) }

// Bind assigns the local address. SO_REUSEADDR is not set: on Windows it
// lets another socket steal a port that is already in use.
func (s *Socket) Bind(addr netip.AddrPort) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := windows.Bind(s.handle(), toSockaddr(addr)); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	s.local = addr
	if sa, err := windows.Getsockname(s.handle()); err == nil {
		s.local = fromSockaddr(sa)
	}
	return nil
}

// Listen switches the socket to non-blocking listening mode.
func (s *Socket) Listen(backlog int) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := setNonblock(s.handle()); err != nil {
		return err
	}
	if err := windows.Listen(s.handle(), backlog); err != nil {
		return fmt.Errorf("listen %s: %w", s.local, err)
	}
	return nil
}

// Connect establishes an outbound connection, waiting at most timeout
// (timeout <= 0 leaves the limit to Winsock). The socket is left non-blocking.
func (s *Socket) Connect(addr netip.AddrPort, timeout time.Duration) error {
	if s.Closed() {
		return ErrClosed
	}
	if err := setNonblock(s.handle()); err != nil {
		return err
	}
	switch err := windows.Connect(s.handle(), toSockaddr(addr)); {
	case err == nil:
	case errors.Is(err, wsaEWOULDBLOCK), errors.Is(err, wsaEINPROGRESS), errors.Is(err, wsaEALREADY):
		revents, err := waitWritable(s.handle(), timeout)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
		}
		soerr, err := windows.GetsockoptInt(s.handle(), windows.SOL_SOCKET, soError)
		if err != nil {
			return fmt.Errorf("%w: %s: getsockopt SO_ERROR: %w", ErrConnect, addr, err)
		}
		if soerr != 0 {
			return fmt.Errorf("%w: %s: %w", ErrConnect, addr, syscall.Errno(soerr))
		}
		if revents&(pollErr|pollHup) != 0 {
			return fmt.Errorf("%w: %s: %w", ErrConnect, addr, wsaECONNREFUSED)
		}
	default:
		return fmt.Errorf("%w: %s: %w", ErrConnect, addr, err)
	}
	_ = windows.SetsockoptInt(s.handle(), windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
	s.remote = addr
	if sa, err := windows.Getsockname(s.handle()); err == nil {
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
		r, _, callErr := procAccept.Call(uintptr(s.handle()), 0, 0)
		h := windows.Handle(r)
		if h == windows.InvalidHandle {
			err := lastErr(callErr)
			switch {
			case errors.Is(err, wsaEINTR):
				continue
			case errors.Is(err, wsaEWOULDBLOCK):
				return nil, ErrWouldBlock
			}
			return nil, fmt.Errorf("accept: %w", err)
		}
		_ = windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, 0)
		if err := setNonblock(h); err != nil {
			windows.Closesocket(h)
			return nil, fmt.Errorf("accept: %w", err)
		}
		_ = windows.SetsockoptInt(h, windows.IPPROTO_TCP, windows.TCP_NODELAY, 1)
		c := &Socket{fd: int(h), family: s.family}
		if sa, err := windows.Getpeername(h); err == nil {
			c.remote = fromSockaddr(sa)
		}
		if sa, err := windows.Getsockname(h); err == nil {
			c.local = fromSockaddr(sa)
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
	buf := windows.WSABuf{Len: uint32(len(p)), Buf: &p[0]}
	for {
		var n uint32
		err := windows.WSASend(s.handle(), &buf, 1, &n, 0, nil, nil)
		switch {
		case err == nil:
			return int(n), nil
		case errors.Is(err, wsaEINTR):
			continue
		case errors.Is(err, wsaEWOULDBLOCK):
			return 0, nil
		default:
			return 0, fmt.Errorf("send socket %d: %w", s.fd, err)
		}
	}
}

// Recv reads into p. (0, nil) is an orderly close by the peer,
// (0, ErrWouldBlock) means no data yet.
func (s *Socket) Recv(p []byte) (int, error) {
	if s.Closed() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	buf := windows.WSABuf{Len: uint32(len(p)), Buf: &p[0]}
	for {
		var n, flags uint32
		err := windows.WSARecv(s.handle(), &buf, 1, &n, &flags, nil, nil)
		switch {
		case err == nil:
			return int(n), nil
		case errors.Is(err, wsaEINTR):
			continue
		case errors.Is(err, wsaEWOULDBLOCK):
			return 0, ErrWouldBlock
		default:
			return 0, fmt.Errorf("recv socket %d: %w", s.fd, err)
		}
	}
}

// Close releases the socket. Subsequent calls are no-ops.
func (s *Socket) Close() error {
	if s.Closed() {
		return nil
	}
	h := s.handle()
	s.fd = -1
	if err := windows.Closesocket(h); err != nil {
		return fmt.Errorf("closesocket %d: %w", h, err)
	}
	return nil
}

// IsTransientAccept reports whether an Accept error concerns only the
// connection being accepted, leaving the listener usable.
func IsTransientAccept(err error) bool {
	return errors.Is(err, wsaECONNRESET) ||
		errors.Is(err, wsaECONNABORTED) ||
		errors.Is(err, wsaEINTR)
}

// waitWritable polls h for write readiness and returns the reported events.
func waitWritable(h windows.Handle, timeout time.Duration) (int16, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	fds := []pollFD{{fd: h, events: pollWrNorm}}
	for {
		ms := -1
		if timeout > 0 {
			left := time.Until(deadline)
			if left <= 0 {
				return 0, wsaETIMEDOUT
			}
			ms = int((left + time.Millisecond - 1) / time.Millisecond)
		}
		r, _, callErr := procWSAPoll.Call(uintptr(unsafe.Pointer(&fds[0])), uintptr(len(fds)), uintptr(ms))
		switch n := int32(r); {
		case n < 0:
			err := lastErr(callErr)
			if errors.Is(err, wsaEINTR) {
				continue
			}
			return 0, fmt.Errorf("WSAPoll: %w", err)
		case n == 0:
			return 0, wsaETIMEDOUT
		}
		return fds[0].revents, nil
	}
}

func familyOf(addr netip.AddrPort) int {
	if addr.Addr().Unmap().Is4() {
		return windows.AF_INET
	}
	return windows.AF_INET6
}

func toSockaddr(addr netip.AddrPort) windows.Sockaddr {
	ip := addr.Addr().Unmap()
	if ip.Is4() {
		return &windows.SockaddrInet4{Port: int(addr.Port()), Addr: ip.As4()}
	}
	return &windows.SockaddrInet6{Port: int(addr.Port()), Addr: ip.As16()}
}

func fromSockaddr(sa windows.Sockaddr) netip.AddrPort {
	switch v := sa.(type) {
	case *windows.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(v.Addr), uint16(v.Port))
	case *windows.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(v.Addr).Unmap(), uint16(v.Port))
	}
	return netip.AddrPort{}
}
