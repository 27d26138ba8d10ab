// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "net/netip"

// PairState enumerates the lifecycle of a forwarded connection pair.
type PairState int

const (
	PairAccepted PairState = iota
	PairConnecting
	PairEstablished
	PairClosing
	PairClosed
)

func (s PairState) String() string {
	switch s {
	case PairAccepted:
		return "accepted"
	case PairConnecting:
		return "connecting"
	case PairEstablished:
		return "established"
	case PairClosing:
		return "closing"
	case PairClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Side identifies one half of a connection pair.
type Side int

const (
	SideNone Side = iota
	SideClient
	SideRemote
)

func (s Side) String() string {
	switch s {
	case SideClient:
		return "client"
	case SideRemote:
		return "remote"
	default:
		return "none"
	}
}

// Peer returns the opposite side.
func (s Side) Peer() Side {
	switch s {
	case SideClient:
		return SideRemote
	case SideRemote:
		return SideClient
	default:
		return SideNone
	}
}

// ConnInfo describes a connection pair to hooks.
// It is a value snapshot; hooks may retain it.
type ConnInfo struct {
	ID         uint64         // engine-local sequence number, starts at 1
	ClientAddr netip.AddrPort // address of the accepted client
	RemoteAddr netip.AddrPort // address of the fixed remote endpoint
	ClientFD   int
	RemoteFD   int
	Side       Side      // side that produced the event (data or close)
	State      PairState // state at the time of the event
	Err        error     // cause of an abnormal close, nil otherwise
}

// BytePool provides reusable []byte buffers for relay I/O.
type BytePool interface {
	// Acquire returns a slice of exactly n bytes.
	Acquire(n int) []byte

	// Release returns a buffer to the pool.
	Release(buf []byte)
}
