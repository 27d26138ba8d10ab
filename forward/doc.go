// Package forward
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Readiness-driven TCP port forwarder.
//
// An Engine listens on one local port and, for every accepted client,
// opens a connection to a single fixed remote endpoint. Bytes are relayed
// in both directions by one goroutine driving an api.Multiplexer until
// either side closes, at which point both sockets are torn down together.
//
// Key features:
//   - One read per ready descriptor per loop iteration
//   - Short writes are queued and flushed on write readiness, pausing the
//     reading side until the queue drains
//   - Hooks observe and may veto connections and data
//   - Metrics and debug probes through control.Control
package forward
