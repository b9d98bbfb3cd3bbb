package flow

import (
	"context"

	"github.com/sirupsen/logrus"

	"xdao.co/txfin/tx"
)

// CollectSignatures validates a proposal locally, endorses it if this node
// is a required signer, then gathers the remaining endorsements from the
// other required signers in parallel. It returns a FullySigned proposal or
// fails; a partially signed proposal is never handed to the caller.
func (n *Node) CollectSignatures(ctx context.Context, p *tx.Proposal) (*tx.SignedProposal, error) {
	txID, err := p.TxID()
	if err != nil {
		return nil, err
	}
	log := n.log.WithFields(logrus.Fields{"txid": txID, "action": p.Command.Action})

	rp, err := n.resolver.ResolveProposal(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := tx.Validate(rp); err != nil {
		return nil, err
	}

	sp := tx.NewSignedProposal(p)
	if requiredSigner(p, n.signer.Name()) {
		own, err := tx.SignProposal(p, n.signer)
		if err != nil {
			return nil, err
		}
		if sp, err = sp.Merge(own); err != nil {
			return nil, err
		}
	}

	missing := sp.MissingSigners()
	if len(missing) > 0 && n.dial == nil {
		return nil, tx.NewError(tx.KindInternal, "TXF-FLW-101",
			"no dialer configured, cannot reach signers")
	}

	type endorsement struct {
		signer string
		ps     tx.PartialSignature
		err    error
	}
	results := make(chan endorsement, len(missing))
	for _, name := range missing {
		go func(name string) {
			peer, err := n.dial.Peer(name)
			if err != nil {
				results <- endorsement{signer: name, err: err}
				return
			}
			var ps tx.PartialSignature
			err = n.withRetry(ctx, log.WithField("signer", name), func() error {
				var err error
				ps, err = peer.Propose(ctx, sp)
				return err
			})
			results <- endorsement{signer: name, ps: ps, err: err}
		}(name)
	}

	collected := make([]tx.PartialSignature, 0, len(missing))
	var firstErr error
	for range missing {
		r := <-results
		switch {
		case r.err != nil:
			log.WithError(r.err).WithField("signer", r.signer).Warn("collect: endorsement failed")
			if firstErr == nil {
				firstErr = r.err
			}
		case r.ps.Signer != r.signer:
			if firstErr == nil {
				firstErr = tx.NewError(tx.KindSignature, "TXF-FLW-102",
					r.signer+" returned an endorsement signed by "+r.ps.Signer)
			}
		default:
			collected = append(collected, r.ps)
		}
	}
	if firstErr != nil {
		return nil, tx.WrapError(tx.KindSignature, "TXF-FLW-103",
			"signature collection failed for "+txID, firstErr)
	}

	if sp, err = sp.Merge(collected...); err != nil {
		return nil, err
	}
	if err := sp.RequireFullySigned(); err != nil {
		return nil, err
	}
	if err := sp.VerifySignatures(n.dir); err != nil {
		return nil, err
	}
	log.Info("collect: fully signed")
	return sp, nil
}
