// Package notary implements the single notarization authority: the sole
// arbiter of input consumption. It keeps an append-only record of consumed
// input identifiers and certifies, at most once per input set, that a
// transaction's inputs were not consumed elsewhere.
package notary

import (
	"errors"
	"sync"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/tx"
)

// Log is the append-only consumed-input record.
//
// Consume must be atomic: either every entry is recorded for txID, or (when
// any entry is already held by a different transaction) nothing is recorded
// and a *ConflictError is returned. Re-consuming entries already held by the
// same txID is a no-op.
type Log interface {
	Consume(entries []string, txID string) error
	ConsumedBy(entry string) (string, bool)
}

// ConflictError reports the first input found consumed by another
// transaction.
type ConflictError struct {
	Entry string
	TxID  string
}

func (e *ConflictError) Error() string {
	return "notary: input " + e.Entry + " already consumed by " + e.TxID
}

// MemoryLog is an in-memory Log for tests and ephemeral notaries.
type MemoryLog struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{m: make(map[string]string)}
}

func (l *MemoryLog) Consume(entries []string, txID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range entries {
		if owner, ok := l.m[entry]; ok && owner != txID {
			return &ConflictError{Entry: entry, TxID: owner}
		}
	}
	for _, entry := range entries {
		l.m[entry] = txID
	}
	return nil
}

func (l *MemoryLog) ConsumedBy(entry string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.m[entry]
	return owner, ok
}

// Notary certifies uniqueness and ordering for its assigned input set.
type Notary struct {
	signer *identity.Signer
	dir    identity.Directory
	log    Log

	// mu serializes admission: two proposals consuming the same input are
	// strictly ordered here, nowhere else.
	mu     sync.Mutex
	issued map[string]tx.Certificate
}

// New builds a notary. The signer's party must be the directory's notary.
func New(signer *identity.Signer, dir identity.Directory, log Log) (*Notary, error) {
	if signer == nil || dir == nil || log == nil {
		return nil, errors.New("notary: signer, directory and log are required")
	}
	if dir.Notary().Name != signer.Name() {
		return nil, errors.New("notary: signer " + signer.Name() + " is not the directory's notary")
	}
	return &Notary{signer: signer, dir: dir, log: log, issued: make(map[string]tx.Certificate)}, nil
}

// Notarize checks threshold signatures and input uniqueness, then issues the
// certificate. Re-submission of an already-certified transaction returns the
// original certificate (idempotent); a proposal consuming an input held by a
// different transaction fails with a KindDoubleSpend error, permanently.
func (n *Notary) Notarize(sp *tx.SignedProposal) (tx.Certificate, error) {
	if err := sp.RequireFullySigned(); err != nil {
		return tx.Certificate{}, err
	}
	if err := sp.VerifySignatures(n.dir); err != nil {
		return tx.Certificate{}, err
	}
	if sp.Proposal.Notary != n.signer.Name() {
		return tx.Certificate{}, tx.NewError(tx.KindSignature, "TXF-NTR-101",
			"proposal is assigned to notary "+sp.Proposal.Notary+", not "+n.signer.Name())
	}
	txID, err := sp.Proposal.TxID()
	if err != nil {
		return tx.Certificate{}, err
	}

	entries := make([]string, 0, len(sp.Proposal.Inputs))
	for _, ref := range sp.Proposal.Inputs {
		entries = append(entries, ref.Key())
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if cert, ok := n.issued[txID]; ok {
		return cert, nil
	}
	if err := n.log.Consume(entries, txID); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return tx.Certificate{}, tx.WrapError(tx.KindDoubleSpend, "TXF-NTR-301",
				"input "+conflict.Entry+" already consumed", err)
		}
		return tx.Certificate{}, err
	}
	cert, err := tx.SignCertificate(txID, n.signer)
	if err != nil {
		return tx.Certificate{}, err
	}
	n.issued[txID] = cert
	return cert, nil
}
