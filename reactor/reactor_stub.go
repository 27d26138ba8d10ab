//go:build !unix && !windows

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"

	"github.com/momentics/hioload-fwd/api"
)

func newMultiplexer() (api.Multiplexer, error) {
	return nil, fmt.Errorf("reactor: %w on this platform", api.ErrNotSupported)
}
