package tx

import (
	"sort"
	"strings"

	"xdao.co/txfin/identity"
)

// SigningState is the signature collection state machine. FullySigned is the
// only state from which a proposal may proceed to notarization.
type SigningState string

const (
	Unsigned        SigningState = "Unsigned"
	PartiallySigned SigningState = "PartiallySigned"
	FullySigned     SigningState = "FullySigned"
)

// SignedProposal is a proposal plus the endorsements collected so far.
// Signatures are kept sorted by signer name; the value is immutable; Merge
// returns a new SignedProposal.
type SignedProposal struct {
	Proposal Proposal
	Sigs     []PartialSignature
}

// SignProposal produces one party's endorsement: a signature over the
// canonical proposal bytes.
func SignProposal(p *Proposal, signer *identity.Signer) (PartialSignature, error) {
	b, err := EncodeProposal(p)
	if err != nil {
		return PartialSignature{}, err
	}
	sig, err := signer.Sign(b)
	if err != nil {
		return PartialSignature{}, WrapError(KindSignature, "TXF-SIG-101", "signing failed", err)
	}
	return PartialSignature{Signer: signer.Name(), Sig: sig}, nil
}

// NewSignedProposal starts the collection state machine at Unsigned.
func NewSignedProposal(p *Proposal) *SignedProposal {
	return &SignedProposal{Proposal: *p}
}

// Merge returns a new SignedProposal with the given endorsements added.
// Signers outside the command's required set are rejected; duplicate
// endorsements from one signer must be byte-identical.
func (sp *SignedProposal) Merge(sigs ...PartialSignature) (*SignedProposal, error) {
	required := make(map[string]bool, len(sp.Proposal.Command.RequiredSigners))
	for _, name := range sp.Proposal.Command.RequiredSigners {
		required[name] = true
	}

	bySigner := make(map[string]PartialSignature, len(sp.Sigs)+len(sigs))
	for _, ps := range sp.Sigs {
		bySigner[ps.Signer] = ps
	}
	for _, ps := range sigs {
		if !required[ps.Signer] {
			return nil, NewError(KindSignature, "TXF-SIG-102", "signer "+ps.Signer+" is not required by the command")
		}
		if prev, ok := bySigner[ps.Signer]; ok {
			if prev != ps {
				return nil, NewError(KindSignature, "TXF-SIG-103", "conflicting signatures from "+ps.Signer)
			}
			continue
		}
		bySigner[ps.Signer] = ps
	}

	merged := make([]PartialSignature, 0, len(bySigner))
	for _, ps := range bySigner {
		merged = append(merged, ps)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Signer < merged[j].Signer })
	return &SignedProposal{Proposal: sp.Proposal, Sigs: merged}, nil
}

// SigningState reports where the proposal stands in the collection machine.
func (sp *SignedProposal) SigningState() SigningState {
	if len(sp.Sigs) == 0 {
		return Unsigned
	}
	if len(sp.MissingSigners()) > 0 {
		return PartiallySigned
	}
	return FullySigned
}

// MissingSigners returns the required signers that have not yet endorsed,
// sorted.
func (sp *SignedProposal) MissingSigners() []string {
	have := make(map[string]bool, len(sp.Sigs))
	for _, ps := range sp.Sigs {
		have[ps.Signer] = true
	}
	var missing []string
	for _, name := range sp.Proposal.Command.RequiredSigners {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// RequireFullySigned gates notarization: it fails with IncompleteSignatures
// unless every required signer has endorsed.
func (sp *SignedProposal) RequireFullySigned() error {
	if missing := sp.MissingSigners(); len(missing) > 0 {
		return NewError(KindSignature, "TXF-SIG-201",
			"incomplete signatures: missing "+strings.Join(missing, ", "))
	}
	if len(sp.Sigs) == 0 {
		return NewError(KindSignature, "TXF-SIG-201", "incomplete signatures: none collected")
	}
	return nil
}

// VerifySignatures checks every collected endorsement against the directory.
func (sp *SignedProposal) VerifySignatures(dir identity.Directory) error {
	b, err := EncodeProposal(&sp.Proposal)
	if err != nil {
		return err
	}
	for _, ps := range sp.Sigs {
		party, ok := dir.Lookup(ps.Signer)
		if !ok {
			return NewError(KindSignature, "TXF-SIG-111", "unknown signer "+ps.Signer)
		}
		if err := identity.Verify(party.Key, b, ps.Sig); err != nil {
			return WrapError(KindSignature, "TXF-SIG-112", "signature from "+ps.Signer+" does not verify", err)
		}
	}
	return nil
}

// certificateMessage is the byte scope the notary signs: a domain separator
// plus the transaction identifier.
func certificateMessage(txID string) []byte {
	return []byte("txfin-certificate-v1\n" + txID)
}

// SignCertificate issues the notarization certificate for txID.
func SignCertificate(txID string, notary *identity.Signer) (Certificate, error) {
	sig, err := notary.Sign(certificateMessage(txID))
	if err != nil {
		return Certificate{}, WrapError(KindSignature, "TXF-SIG-121", "certificate signing failed", err)
	}
	return Certificate{TxID: txID, Notary: notary.Name(), Sig: sig}, nil
}

// VerifyCertificate checks the certificate against the notary's key.
func VerifyCertificate(cert Certificate, notaryKey string) error {
	if err := identity.Verify(notaryKey, certificateMessage(cert.TxID), cert.Sig); err != nil {
		return WrapError(KindSignature, "TXF-SIG-122", "notarization certificate does not verify", err)
	}
	return nil
}

// VerifyFinalized checks the full artifact: the certificate must bind this
// exact proposal, the notary named by the proposal must have issued it, and
// every required signature must verify.
func VerifyFinalized(f *FinalizedTransaction, dir identity.Directory) error {
	txID, err := f.SignedProposal.Proposal.TxID()
	if err != nil {
		return err
	}
	if f.Certificate.TxID != txID {
		return NewError(KindSignature, "TXF-SIG-131", "certificate does not bind this transaction")
	}
	if f.Certificate.Notary != f.SignedProposal.Proposal.Notary {
		return NewError(KindSignature, "TXF-SIG-132", "certificate issued by wrong notary")
	}
	notary, ok := dir.Lookup(f.Certificate.Notary)
	if !ok {
		return NewError(KindSignature, "TXF-SIG-133", "unknown notary "+f.Certificate.Notary)
	}
	if err := VerifyCertificate(f.Certificate, notary.Key); err != nil {
		return err
	}
	if err := f.SignedProposal.RequireFullySigned(); err != nil {
		return err
	}
	return f.SignedProposal.VerifySignatures(dir)
}
