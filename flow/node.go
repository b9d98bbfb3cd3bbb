package flow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/notary"
	"xdao.co/txfin/resolve"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault"
)

// Node is one party's protocol engine: the receive-side handlers that make
// it a counterparty and the initiator-side flows. It satisfies rpc.Backend.
type Node struct {
	signer   *identity.Signer
	dir      identity.Directory
	vault    vault.Vault
	resolver *resolve.Resolver
	notary   *notary.Notary
	dial     Dialer
	log      logrus.FieldLogger
	opts     Options
}

// Config wires a Node. Notary is nil on non-notary nodes.
type Config struct {
	Signer    *identity.Signer
	Directory identity.Directory
	Vault     vault.Vault
	Resolver  *resolve.Resolver
	Notary    *notary.Notary
	Dialer    Dialer
	Log       logrus.FieldLogger
	Options   Options
}

func NewNode(cfg Config) (*Node, error) {
	if cfg.Signer == nil || cfg.Directory == nil || cfg.Vault == nil || cfg.Resolver == nil {
		return nil, errors.New("flow: signer, directory, vault and resolver are required")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Node{
		signer:   cfg.Signer,
		dir:      cfg.Directory,
		vault:    cfg.Vault,
		resolver: cfg.Resolver,
		notary:   cfg.Notary,
		dial:     cfg.Dialer,
		log:      log.WithField("party", cfg.Signer.Name()),
		opts:     cfg.Options.withDefaults(),
	}, nil
}

// Name returns the node's party name.
func (n *Node) Name() string { return n.signer.Name() }

// Resolver returns the node's resolver, for proposal building.
func (n *Node) Resolver() *resolve.Resolver { return n.resolver }

// Directory returns the node's party directory snapshot.
func (n *Node) Directory() identity.Directory { return n.dir }

// Vault returns the node's ledger store.
func (n *Node) Vault() vault.Vault { return n.vault }

// Propose handles an incoming signing request: verify what is already
// signed, resolve, validate, and endorse only proposals this node is a
// required signer of. Validation failure refuses the endorsement and leaves
// the initiator to abort.
func (n *Node) Propose(ctx context.Context, sp *tx.SignedProposal) (tx.PartialSignature, error) {
	txID, err := sp.Proposal.TxID()
	if err != nil {
		return tx.PartialSignature{}, err
	}
	log := n.log.WithFields(logrus.Fields{"txid": txID, "action": sp.Proposal.Command.Action})

	if err := sp.VerifySignatures(n.dir); err != nil {
		log.WithError(err).Warn("propose: rejected carried signatures")
		return tx.PartialSignature{}, err
	}
	if !requiredSigner(&sp.Proposal, n.signer.Name()) {
		return tx.PartialSignature{}, tx.NewError(tx.KindViolation, "TXF-FLW-201",
			n.signer.Name()+" is not a required signer of "+txID)
	}
	rp, err := n.resolver.ResolveProposal(ctx, &sp.Proposal)
	if err != nil {
		log.WithError(err).Warn("propose: resolution failed")
		return tx.PartialSignature{}, err
	}
	if err := tx.Validate(rp); err != nil {
		log.WithError(err).Warn("propose: refused to endorse")
		return tx.PartialSignature{}, err
	}
	ps, err := tx.SignProposal(&sp.Proposal, n.signer)
	if err != nil {
		return tx.PartialSignature{}, err
	}
	log.Info("propose: endorsed")
	return ps, nil
}

// Notarize handles an incoming notarization request. Only the notary node
// serves it.
func (n *Node) Notarize(ctx context.Context, sp *tx.SignedProposal) (tx.Certificate, error) {
	_ = ctx
	if n.notary == nil {
		return tx.Certificate{}, tx.NewError(tx.KindSignature, "TXF-FLW-202",
			n.signer.Name()+" is not the notary")
	}
	cert, err := n.notary.Notarize(sp)
	if err != nil {
		n.log.WithError(err).Warn("notarize: refused")
		return tx.Certificate{}, err
	}
	n.log.WithField("txid", cert.TxID).Info("notarize: certified")
	return cert, nil
}

// Finalize handles an incoming finality broadcast: verify the certificate
// and threshold signatures, re-run validation independently, then commit.
// Re-delivery of an already committed transaction is a no-op.
//
// A certified transaction that fails local validation is rejected, never
// committed; under the Halt policy the rejection is also reported as fatal.
func (n *Node) Finalize(ctx context.Context, f *tx.FinalizedTransaction) error {
	txID := f.TxID()
	log := n.log.WithField("txid", txID)

	if n.vault.HasTransaction(txID) {
		log.Debug("finalize: already committed")
		return nil
	}
	if err := tx.VerifyFinalized(f, n.dir); err != nil {
		log.WithError(err).Warn("finalize: rejected")
		return err
	}
	rp, err := n.resolver.ResolveProposal(ctx, &f.SignedProposal.Proposal)
	if err != nil {
		log.WithError(err).Warn("finalize: resolution failed")
		return err
	}
	if err := tx.Validate(rp); err != nil {
		log.WithError(err).Error("finalize: certified transaction failed local validation")
		if n.opts.Policy == Halt && n.opts.OnFatal != nil {
			n.opts.OnFatal(err)
		}
		return err
	}
	if err := n.commit(f); err != nil {
		return err
	}
	log.Info("finalize: committed")
	return nil
}

// Head serves the latest committed version of a lineage.
func (n *Node) Head(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error) {
	_ = ctx
	body, err := n.vault.Head(linearID)
	if vault.IsNotFound(err) {
		return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-FLW-301",
			"no committed head for "+linearID.String())
	}
	return body, err
}

// State serves one exact committed version from history.
func (n *Node) State(ctx context.Context, ref tx.StateRef) (tx.StateBody, error) {
	_ = ctx
	body, err := n.vault.State(ref)
	if vault.IsNotFound(err) {
		return tx.StateBody{}, tx.NewError(tx.KindUnresolved, "TXF-FLW-302",
			"no committed state "+ref.String())
	}
	return body, err
}

func (n *Node) commit(f *tx.FinalizedTransaction) error {
	if err := n.vault.PutTransaction(f); err != nil {
		return err
	}
	for _, ref := range f.SignedProposal.Proposal.Inputs {
		n.resolver.Invalidate(ref.LinearID)
	}
	for _, out := range f.SignedProposal.Proposal.Outputs {
		n.resolver.Observe(out)
	}
	return nil
}

func requiredSigner(p *tx.Proposal, name string) bool {
	for _, s := range p.Command.RequiredSigners {
		if s == name {
			return true
		}
	}
	return false
}
