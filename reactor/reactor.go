// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral factory for readiness multiplexers.

package reactor

import "github.com/momentics/hioload-fwd/api"

// defaultEvents is the initial capacity of the per-Wait event buffer.
const defaultEvents = 128

// maxEvents bounds how far the event buffer grows under load.
const maxEvents = 4096

// New constructs the platform-specific multiplexer.
func New() (api.Multiplexer, error) {
	return newMultiplexer()
}
