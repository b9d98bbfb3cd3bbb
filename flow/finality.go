package flow

import (
	"context"
	"sort"

	"xdao.co/txfin/tx"
)

// Report describes the outcome of a finality broadcast. Unreached lists
// participants that did not acknowledge delivery; the transaction is final
// regardless, and those parties catch up by state fetch or re-delivery.
type Report struct {
	TxID      string
	Delivered []string
	Unreached []string
}

// Finality takes a fully signed proposal through notarization, commits the
// finalized transaction locally, then broadcasts it to every participant.
// The commit happens as soon as the certificate verifies: finality is the
// notary's decision, not the broadcast's success.
//
// A double-spend refusal from the notary is returned as-is, permanently;
// the caller must rebuild against current state.
func (n *Node) Finality(ctx context.Context, sp *tx.SignedProposal) (*tx.FinalizedTransaction, *Report, error) {
	if err := sp.RequireFullySigned(); err != nil {
		return nil, nil, err
	}
	if err := sp.VerifySignatures(n.dir); err != nil {
		return nil, nil, err
	}
	txID, err := sp.Proposal.TxID()
	if err != nil {
		return nil, nil, err
	}
	log := n.log.WithField("txid", txID)

	rp, err := n.resolver.ResolveProposal(ctx, &sp.Proposal)
	if err != nil {
		return nil, nil, err
	}

	if n.dial == nil {
		return nil, nil, tx.NewError(tx.KindInternal, "TXF-FLW-104",
			"no dialer configured, cannot reach notary")
	}
	peer, err := n.dial.Peer(sp.Proposal.Notary)
	if err != nil {
		return nil, nil, err
	}
	var cert tx.Certificate
	err = n.withRetry(ctx, log.WithField("notary", sp.Proposal.Notary), func() error {
		var err error
		cert, err = peer.Notarize(ctx, sp)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if cert.TxID != txID {
		return nil, nil, tx.NewError(tx.KindSignature, "TXF-FLW-105",
			"certificate binds "+cert.TxID+", expected "+txID)
	}
	notaryParty, ok := n.dir.Lookup(cert.Notary)
	if !ok {
		return nil, nil, tx.NewError(tx.KindSignature, "TXF-FLW-106", "unknown notary "+cert.Notary)
	}
	if err := tx.VerifyCertificate(cert, notaryParty.Key); err != nil {
		return nil, nil, err
	}

	f := &tx.FinalizedTransaction{SignedProposal: *sp, Certificate: cert}
	if err := n.commit(f); err != nil {
		return nil, nil, err
	}
	log.Info("finality: committed")

	report := &Report{TxID: txID}
	recipients := n.recipients(rp)
	type delivery struct {
		name string
		err  error
	}
	results := make(chan delivery, len(recipients))
	for _, name := range recipients {
		go func(name string) {
			peer, err := n.dial.Peer(name)
			if err == nil {
				err = n.withRetry(ctx, log.WithField("recipient", name), func() error {
					return peer.Finalize(ctx, f)
				})
			}
			results <- delivery{name: name, err: err}
		}(name)
	}
	for range recipients {
		r := <-results
		if r.err != nil {
			log.WithError(r.err).WithField("recipient", r.name).Warn("finality: delivery failed")
			report.Unreached = append(report.Unreached, r.name)
			continue
		}
		report.Delivered = append(report.Delivered, r.name)
	}
	sort.Strings(report.Delivered)
	sort.Strings(report.Unreached)
	return f, report, nil
}

// recipients is the broadcast set: every participant of an output or of a
// consumed input body, minus this node.
func (n *Node) recipients(rp *tx.ResolvedProposal) []string {
	seen := make(map[string]bool)
	for _, name := range rp.Proposal.OutputParticipants() {
		seen[name] = true
	}
	for _, body := range rp.InputBodies {
		for _, name := range body.Participants {
			seen[name] = true
		}
	}
	delete(seen, n.signer.Name())
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
