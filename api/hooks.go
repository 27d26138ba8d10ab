// File: api/hooks.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Hooks observes the forwarding engine. All methods run inline on the
// engine goroutine and must return quickly.
type Hooks interface {
	// OnNewConnection is called once a pair is established.
	// Returning false tears the pair down immediately.
	OnNewConnection(info ConnInfo) bool

	// OnNewData is called after data read from info.Side has been relayed.
	// data is only valid for the duration of the call.
	// Returning false tears the pair down.
	OnNewData(info ConnInfo, data []byte) bool

	// OnConnectionClosed is called exactly once per established pair.
	OnConnectionClosed(info ConnInfo)

	// OnError reports recoverable and fatal engine errors.
	OnError(msg string)
}
