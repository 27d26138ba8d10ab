// File: forward/pair.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package forward

import (
	"net/netip"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-fwd/api"
	"github.com/momentics/hioload-fwd/internal/transport"
)

// chunk is a queued tail of a short write.
type chunk struct {
	buf []byte
	off int
}

func (c *chunk) rest() []byte { return c.buf[c.off:] }

// pair is one client connection and its outbound twin.
type pair struct {
	id       uint64
	client   *transport.Socket
	remote   *transport.Socket
	clientFD int
	remoteFD int
	peerAddr netip.AddrPort
	dstAddr  netip.AddrPort
	state    api.PairState

	// Output accepted from one side but not yet written to the other,
	// keyed by destination.
	toClient *queue.Queue
	toRemote *queue.Queue
}

// dialFunc opens the outbound connection of a pair.
type dialFunc func(addr netip.AddrPort, timeout time.Duration) (*transport.Socket, error)

// newPair wraps a freshly accepted client. The remote side is attached by connect.
func newPair(id uint64, client *transport.Socket) *pair {
	return &pair{
		id:       id,
		client:   client,
		clientFD: client.FD(),
		remoteFD: -1,
		peerAddr: client.RemoteAddr(),
		state:    api.PairAccepted,
		toClient: queue.New(),
		toRemote: queue.New(),
	}
}

// connect dials addr and attaches the result as the remote side. On failure
// the client is closed and the pair ends up PairClosed.
func (p *pair) connect(addr netip.AddrPort, timeout time.Duration, dial dialFunc) error {
	p.state = api.PairConnecting
	p.dstAddr = addr
	remote, err := dial(addr, timeout)
	if err != nil {
		p.client.Close()
		p.state = api.PairClosed
		return err
	}
	p.remote = remote
	p.remoteFD = remote.FD()
	p.dstAddr = remote.RemoteAddr()
	return nil
}

func (p *pair) sideOf(fd int) api.Side {
	switch fd {
	case p.clientFD:
		return api.SideClient
	case p.remoteFD:
		return api.SideRemote
	}
	return api.SideNone
}

func (p *pair) fd(s api.Side) int {
	if s == api.SideClient {
		return p.clientFD
	}
	return p.remoteFD
}

func (p *pair) socket(s api.Side) *transport.Socket {
	if s == api.SideClient {
		return p.client
	}
	return p.remote
}

// pending returns the output queue of destination s.
func (p *pair) pending(s api.Side) *queue.Queue {
	if s == api.SideClient {
		return p.toClient
	}
	return p.toRemote
}

// interest derives what the descriptor of side s must be watched for:
// read only while its peer has nothing queued, write while s has output queued.
func (p *pair) interest(s api.Side) api.Interest {
	var i api.Interest
	if p.pending(s.Peer()).Length() == 0 {
		i |= api.Readable
	}
	if p.pending(s).Length() > 0 {
		i |= api.Writable
	}
	return i
}

func (p *pair) info(side api.Side) api.ConnInfo {
	return api.ConnInfo{
		ID:         p.id,
		ClientAddr: p.peerAddr,
		RemoteAddr: p.dstAddr,
		ClientFD:   p.clientFD,
		RemoteFD:   p.remoteFD,
		Side:       side,
		State:      p.state,
	}
}

// release returns every queued chunk to bp.
func (p *pair) release(bp api.BytePool) {
	for _, q := range []*queue.Queue{p.toClient, p.toRemote} {
		for q.Length() > 0 {
			bp.Release(q.Remove().(*chunk).buf)
		}
	}
}
