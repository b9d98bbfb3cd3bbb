// Package tx defines the transaction data model and the deterministic core
// of the propose/validate/notarize/commit protocol: proposal construction,
// contract validation, signature collection and the terminal finalized
// transaction artifact.
package tx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/txid"
)

// LinkedReference is a non-consuming pointer to external state, used only to
// supply validation context. Immutable once created: resolving it must yield
// a state whose Kind matches ExpectedKind.
type LinkedReference struct {
	ID           uuid.UUID
	ExpectedKind string
}

func (r LinkedReference) String() string {
	return r.ID.String() + ":" + r.ExpectedKind
}

// ParseLinkedReference parses the "<uuid>:<kind>" wire form.
func ParseLinkedReference(s string) (LinkedReference, error) {
	idStr, kind, ok := strings.Cut(s, ":")
	if !ok || kind == "" {
		return LinkedReference{}, NewError(KindWire, "TXF-ENC-011", "malformed linked reference "+strconv.Quote(s))
	}
	id, err := txid.ParseLinear(idStr)
	if err != nil {
		return LinkedReference{}, WrapError(KindWire, "TXF-ENC-012", "invalid linked reference identifier", err)
	}
	return LinkedReference{ID: id, ExpectedKind: kind}, nil
}

// StateRef points at one committed version of a state lineage. Consuming
// proposals name their inputs this way.
type StateRef struct {
	LinearID uuid.UUID
	Version  uint64
}

func (r StateRef) String() string {
	return r.LinearID.String() + "@" + strconv.FormatUint(r.Version, 10)
}

// Key returns the consumed-log entry for this ref. The notary's append-only
// record is keyed by exactly this string.
func (r StateRef) Key() string { return r.String() }

// ParseStateRef parses the "<uuid>@<version>" wire form.
func ParseStateRef(s string) (StateRef, error) {
	idStr, verStr, ok := strings.Cut(s, "@")
	if !ok {
		return StateRef{}, NewError(KindWire, "TXF-ENC-021", "malformed state ref "+strconv.Quote(s))
	}
	id, err := txid.ParseLinear(idStr)
	if err != nil {
		return StateRef{}, WrapError(KindWire, "TXF-ENC-022", "invalid state ref identifier", err)
	}
	ver, err := strconv.ParseUint(verStr, 10, 64)
	if err != nil || ver == 0 {
		return StateRef{}, NewError(KindWire, "TXF-ENC-023", "invalid state ref version "+strconv.Quote(verStr))
	}
	return StateRef{LinearID: id, Version: ver}, nil
}

// StateBody is a versioned, immutable participant-visible fact. Amendments
// never mutate: they produce a new body with the same LinearID and a higher
// Version. Participants lists every party entitled to receive a copy.
type StateBody struct {
	LinearID     uuid.UUID
	Version      uint64
	Kind         string
	Participants []string
	Fields       map[string]string
}

// Ref returns the StateRef naming this exact body version.
func (s StateBody) Ref() StateRef {
	return StateRef{LinearID: s.LinearID, Version: s.Version}
}

func (s StateBody) HasParticipant(name string) bool {
	for _, p := range s.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// Field returns a field value, or "".
func (s StateBody) Field(key string) string { return s.Fields[key] }

// Command names the action a proposal performs and the identities that must
// sign before notarization. Exactly one command per proposal.
type Command struct {
	Action          string
	RequiredSigners []string
}

// Proposal is an unsigned, immutable description of a desired state
// transition: consumed inputs, non-consumed validation references, new
// outputs and one command. Build proposals through Builder; a built proposal
// is never mutated.
type Proposal struct {
	Notary     string
	Inputs     []StateRef
	References []LinkedReference
	Outputs    []StateBody
	Command    Command
}

// TxID returns the content identifier of the proposal: the CIDv1 of its
// canonical wire bytes. Signatures and the notarization certificate do not
// alter it.
func (p *Proposal) TxID() (string, error) {
	b, err := EncodeProposal(p)
	if err != nil {
		return "", err
	}
	id := txid.StringForBytes(b)
	if id == "" {
		return "", NewError(KindInternal, "TXF-ENC-001", "cid computation failed")
	}
	return id, nil
}

// OutputParticipants returns the sorted union of participants across all
// outputs. Input-side participants are only known after resolution; the
// finality broadcast set is the union of this and the resolved input
// bodies' participants.
func (p *Proposal) OutputParticipants() []string {
	seen := make(map[string]bool)
	for _, out := range p.Outputs {
		for _, name := range out.Participants {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PartialSignature is one required signer's endorsement of a proposal.
type PartialSignature struct {
	Signer string
	Sig    identity.Signature
}

// FormatPartialSignature renders the compact wire form
// "<signer>|<alg>|<hash-alg>|<base64>".
func FormatPartialSignature(ps PartialSignature) string {
	return ps.Signer + "|" + ps.Sig.Alg + "|" + ps.Sig.HashAlg + "|" + ps.Sig.B64
}

// ParsePartialSignature parses the compact wire form.
func ParsePartialSignature(s string) (PartialSignature, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return PartialSignature{}, NewError(KindWire, "TXF-ENC-031", "malformed partial signature")
	}
	return PartialSignature{
		Signer: parts[0],
		Sig:    identity.Signature{Alg: parts[1], HashAlg: parts[2], B64: parts[3]},
	}, nil
}

// Certificate is the notary's uniqueness certification: a signature binding
// the transaction identifier, issued at most once per consumed input set.
type Certificate struct {
	TxID   string
	Notary string
	Sig    identity.Signature
}

// FormatCertificate renders the compact wire form
// "<tx-id>|<notary>|<alg>|<hash-alg>|<base64>".
func FormatCertificate(c Certificate) string {
	return c.TxID + "|" + c.Notary + "|" + c.Sig.Alg + "|" + c.Sig.HashAlg + "|" + c.Sig.B64
}

// ParseCertificate parses the compact wire form.
func ParseCertificate(s string) (Certificate, error) {
	parts := strings.Split(s, "|")
	if len(parts) != 5 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" || parts[4] == "" {
		return Certificate{}, NewError(KindWire, "TXF-ENC-032", "malformed certificate")
	}
	return Certificate{
		TxID:   parts[0],
		Notary: parts[1],
		Sig:    identity.Signature{Alg: parts[2], HashAlg: parts[3], B64: parts[4]},
	}, nil
}

// FinalizedTransaction is the terminal artifact: a fully signed proposal
// plus its notarization certificate. Immutable; persisted exactly once per
// participant ledger, idempotent by TxID.
type FinalizedTransaction struct {
	SignedProposal SignedProposal
	Certificate    Certificate
}

// TxID returns the transaction identifier certified by the notary.
func (f *FinalizedTransaction) TxID() string { return f.Certificate.TxID }

func fmtIndexKey(prefix string, i int) string {
	return fmt.Sprintf("%s-%04d", prefix, i+1)
}
