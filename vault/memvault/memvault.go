// Package memvault provides an in-memory Vault, used by tests and by
// short-lived tooling that does not need durability.
package memvault

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault"
)

type Vault struct {
	mu     sync.RWMutex
	txs    map[string][]byte
	heads  map[uuid.UUID]tx.StateBody
	states map[string]tx.StateBody
	closed bool
}

var _ vault.Vault = (*Vault)(nil)

func New() *Vault {
	return &Vault{
		txs:    make(map[string][]byte),
		heads:  make(map[uuid.UUID]tx.StateBody),
		states: make(map[string]tx.StateBody),
	}
}

func (v *Vault) PutTransaction(f *tx.FinalizedTransaction) error {
	b, err := tx.EncodeFinalized(f)
	if err != nil {
		return err
	}
	txID := f.TxID()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return vault.ErrClosed
	}
	if prev, ok := v.txs[txID]; ok {
		if !bytes.Equal(prev, b) {
			return vault.ErrImmutable
		}
		return nil
	}
	v.txs[txID] = b
	for _, out := range f.SignedProposal.Proposal.Outputs {
		v.states[out.Ref().Key()] = out
		if head, ok := v.heads[out.LinearID]; !ok || out.Version > head.Version {
			v.heads[out.LinearID] = out
		}
	}
	return nil
}

func (v *Vault) GetTransaction(txID string) (*tx.FinalizedTransaction, error) {
	v.mu.RLock()
	b, ok := v.txs[txID]
	closed := v.closed
	v.mu.RUnlock()
	if closed {
		return nil, vault.ErrClosed
	}
	if !ok {
		return nil, vault.ErrNotFound
	}
	return tx.DecodeFinalized(b)
}

func (v *Vault) HasTransaction(txID string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.txs[txID]
	return ok && !v.closed
}

func (v *Vault) Head(linearID uuid.UUID) (tx.StateBody, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return tx.StateBody{}, vault.ErrClosed
	}
	head, ok := v.heads[linearID]
	if !ok {
		return tx.StateBody{}, vault.ErrNotFound
	}
	return head, nil
}

func (v *Vault) State(ref tx.StateRef) (tx.StateBody, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return tx.StateBody{}, vault.ErrClosed
	}
	body, ok := v.states[ref.Key()]
	if !ok {
		return tx.StateBody{}, vault.ErrNotFound
	}
	return body, nil
}

func (v *Vault) ListTransactions() ([]string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, vault.ErrClosed
	}
	ids := make([]string, 0, len(v.txs))
	for id := range v.txs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}
