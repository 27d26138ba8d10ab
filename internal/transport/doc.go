// File: internal/transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package transport owns raw TCP socket descriptors for the forwarding loop.
// Sockets are created through golang.org/x/sys/unix instead of net.Conn so the
// engine's own multiplexer, not the Go runtime netpoller, decides readiness.
// Non-unix platforms get a stub that reports api.ErrNotSupported.
package transport
