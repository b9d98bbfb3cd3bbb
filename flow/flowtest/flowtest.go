// Package flowtest builds in-process networks for protocol tests: every
// party gets a node with an in-memory vault, peers talk through direct
// method calls, and the named notary keeps an in-memory consumed log.
package flowtest

import (
	"context"
	"crypto/sha256"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"xdao.co/txfin/flow"
	"xdao.co/txfin/identity"
	"xdao.co/txfin/notary"
	"xdao.co/txfin/resolve"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault/memvault"
)

// Network is a set of wired nodes sharing one directory.
type Network struct {
	Dir     *identity.StaticDirectory
	Signers map[string]*identity.Signer
	Vaults  map[string]*memvault.Vault
	Nodes   map[string]*flow.Node
	Log     *notary.MemoryLog
}

// SeedFor derives a stable ed25519 seed from a party name, so fixtures are
// reproducible across runs.
func SeedFor(name string) []byte {
	sum := sha256.Sum256([]byte("flowtest:" + name))
	return sum[:]
}

// NewNetwork builds a network. notaryName must be one of names.
func NewNetwork(t *testing.T, notaryName string, names ...string) *Network {
	t.Helper()

	net := &Network{
		Signers: make(map[string]*identity.Signer),
		Vaults:  make(map[string]*memvault.Vault),
		Nodes:   make(map[string]*flow.Node),
		Log:     notary.NewMemoryLog(),
	}

	var parties []identity.Party
	for _, name := range names {
		signer, err := identity.NewEd25519Signer(name, SeedFor(name))
		if err != nil {
			t.Fatalf("signer %s: %v", name, err)
		}
		net.Signers[name] = signer
		parties = append(parties, signer.Party())
	}
	dir, err := identity.NewStaticDirectory(parties, notaryName)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	net.Dir = dir

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	for _, name := range names {
		v := memvault.New()
		net.Vaults[name] = v

		var remotes []resolve.Fetcher
		others := append([]string(nil), names...)
		sort.Strings(others)
		for _, other := range others {
			if other != name {
				remotes = append(remotes, &peerFetcher{net: net, name: other})
			}
		}

		var not *notary.Notary
		if name == notaryName {
			if not, err = notary.New(net.Signers[name], dir, net.Log); err != nil {
				t.Fatalf("notary: %v", err)
			}
		}
		node, err := flow.NewNode(flow.Config{
			Signer:    net.Signers[name],
			Directory: dir,
			Vault:     v,
			Resolver:  resolve.New(v, remotes...),
			Notary:    not,
			Dialer:    &loopback{net: net},
			Log:       log,
		})
		if err != nil {
			t.Fatalf("node %s: %v", name, err)
		}
		net.Nodes[name] = node
	}
	return net
}

// Node returns the named party's node.
func (n *Network) Node(t *testing.T, name string) *flow.Node {
	t.Helper()
	node, ok := n.Nodes[name]
	if !ok {
		t.Fatalf("no node %s", name)
	}
	return node
}

// loopback dials peers by direct method call.
type loopback struct{ net *Network }

func (l *loopback) Peer(name string) (flow.Peer, error) {
	node, ok := l.net.Nodes[name]
	if !ok {
		return nil, tx.NewError(tx.KindInternal, "TXF-TEST-001", "no node "+name)
	}
	return node, nil
}

// peerFetcher serves committed state from another node, lazily, so fetchers
// can be wired before every node exists.
type peerFetcher struct {
	net  *Network
	name string
}

func (f *peerFetcher) FetchHead(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error) {
	node, ok := f.net.Nodes[f.name]
	if !ok {
		return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-TEST-002", "no node "+f.name)
	}
	return node.Head(ctx, linearID)
}

func (f *peerFetcher) FetchState(ctx context.Context, ref tx.StateRef) (tx.StateBody, error) {
	node, ok := f.net.Nodes[f.name]
	if !ok {
		return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-TEST-002", "no node "+f.name)
	}
	return node.State(ctx, ref)
}
