package rpc

import (
	"errors"
	"sync"

	"xdao.co/txfin/flow"
	"xdao.co/txfin/identity"
)

// PeerDialer resolves party names to clients via the directory's endpoints,
// caching one connection per party. It satisfies flow.Dialer.
type PeerDialer struct {
	dir  identity.Directory
	opts DialOptions

	mu    sync.Mutex
	conns map[string]*Client
}

var _ flow.Dialer = (*PeerDialer)(nil)

func NewPeerDialer(dir identity.Directory, opts DialOptions) *PeerDialer {
	return &PeerDialer{dir: dir, opts: opts, conns: make(map[string]*Client)}
}

func (d *PeerDialer) Peer(name string) (flow.Peer, error) {
	return d.Client(name)
}

// Client returns the cached client for a party, dialing on first use. The
// dial itself is lazy; connection establishment happens on the first RPC.
func (d *PeerDialer) Client(name string) (*Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.conns[name]; ok {
		return c, nil
	}
	party, ok := d.dir.Lookup(name)
	if !ok {
		return nil, errors.New("rpc: unknown party " + name)
	}
	if party.Endpoint == "" {
		return nil, errors.New("rpc: party " + name + " has no endpoint")
	}
	c, err := Dial(party.Endpoint, d.opts)
	if err != nil {
		return nil, err
	}
	d.conns[name] = c
	return c, nil
}

// Close closes every cached connection, keeping the first error.
func (d *PeerDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var first error
	for name, c := range d.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(d.conns, name)
	}
	return first
}
