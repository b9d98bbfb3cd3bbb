// Package flow drives protocol instances between nodes: proposal
// construction and local validation, parallel signature collection,
// notarization, the finality broadcast and the receive-side handlers that
// make a node a counterparty.
package flow

import (
	"context"
	"time"

	"xdao.co/txfin/tx"
)

// Peer is one remote node as seen by a flow. rpc.Client satisfies it.
type Peer interface {
	Propose(ctx context.Context, sp *tx.SignedProposal) (tx.PartialSignature, error)
	Notarize(ctx context.Context, sp *tx.SignedProposal) (tx.Certificate, error)
	Finalize(ctx context.Context, f *tx.FinalizedTransaction) error
}

// Dialer resolves a party name to a Peer. Implementations cache connections;
// flows never dial directly.
type Dialer interface {
	Peer(name string) (Peer, error)
}

// ViolationPolicy selects how a node treats a notarized transaction that
// fails its own validation. Such a transaction is evidence of a rule
// disagreement between nodes, which should be impossible on a correctly
// configured network.
//
// Reject refuses and keeps serving; Halt refuses and reports the node as
// compromised through Options.OnFatal.
type ViolationPolicy int

const (
	Reject ViolationPolicy = iota
	Halt
)

// Options tunes flow behavior. The zero value is usable.
type Options struct {
	// MaxAttempts bounds per-peer delivery attempts. Zero means 3.
	MaxAttempts int

	// RetryBackoff is the pause between attempts. Zero means 200ms.
	RetryBackoff time.Duration

	// Policy applies to received finalized transactions that fail local
	// validation.
	Policy ViolationPolicy

	// OnFatal is invoked under the Halt policy before the rejection is
	// returned. Nil is ignored.
	OnFatal func(error)
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	return o
}
