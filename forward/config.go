// File: forward/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package forward

import (
	"time"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/internal/transport"
)

// Config holds the forwarder parameters.
type Config struct {
	ListenHost  string        // local bind address, loopback by default
	LocalPort   int           // local port; 0 picks an ephemeral port
	RemoteHost  string        // remote host name or literal IP
	RemotePort  int           // remote port, 1-65535
	BufferSize  int           // relay buffer size in bytes
	Backlog     int           // listen queue length, 0 = platform maximum
	DialTimeout time.Duration // outbound connect limit, 0 = OS default
	PinLoop     bool          // run the event loop on a thread bound to LoopCPU
	LoopCPU     int
}

// DefaultConfig returns defaults for everything but the ports and remote host.
func DefaultConfig() Config {
	return Config{
		ListenHost:  "127.0.0.1",
		BufferSize:  1024,
		Backlog:     transport.DefaultBacklog,
		DialTimeout: 0,
	}
}

// Validate checks ranges. Errors satisfy errors.Is(err, api.ErrInvalidArgument).
func (c Config) Validate() error {
	invalid := func(msg string, key string, v any) error {
		return api.NewError(api.ErrCodeInvalidArgument, msg).WithContext(key, v)
	}
	switch {
	case c.LocalPort < 0 || c.LocalPort > 65535:
		return invalid("local port out of range", "port", c.LocalPort)
	case c.RemotePort < 1 || c.RemotePort > 65535:
		return invalid("remote port out of range", "port", c.RemotePort)
	case c.RemoteHost == "":
		return invalid("remote host is empty", "host", c.RemoteHost)
	case c.BufferSize <= 0:
		return invalid("buffer size must be positive", "size", c.BufferSize)
	case c.Backlog < 0:
		return invalid("negative backlog", "backlog", c.Backlog)
	case c.DialTimeout < 0:
		return invalid("negative dial timeout", "timeout", c.DialTimeout)
	case c.PinLoop && c.LoopCPU < 0:
		return invalid("negative loop cpu", "cpu", c.LoopCPU)
	}
	return nil
}
