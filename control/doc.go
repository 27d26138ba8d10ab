// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for the forwarding engine.
//
// Provides concurrent-safe state handling primitives including:
//   - Counter and gauge metrics updated from the event loop
//   - Named debug probes evaluated on demand
//   - A combined Stats snapshot readable from any goroutine
package control
