// Package vault defines the persistent ledger store each party keeps: the
// finalized transactions it has committed and the latest committed head of
// every state lineage it participates in.
package vault

import (
	"errors"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
)

var (
	ErrNotFound  = errors.New("vault: not found")
	ErrImmutable = errors.New("vault: committed transaction mismatch")
	ErrClosed    = errors.New("vault: closed")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Vault is a party's durable ledger view.
//
// Contract:
//   - PutTransaction MUST be idempotent by transaction identifier:
//     re-delivery of a committed transaction is a no-op, never a duplicate.
//   - Committed transactions MUST be immutable; differing bytes under the
//     same identifier are an ErrImmutable violation.
//   - Head MUST return ErrNotFound when no committed version of the lineage
//     exists; it never returns unfinalized state.
//   - State serves committed history: every output version ever committed
//     remains retrievable by exact ref, immutably.
type Vault interface {
	PutTransaction(f *tx.FinalizedTransaction) error
	GetTransaction(txID string) (*tx.FinalizedTransaction, error)
	HasTransaction(txID string) bool
	Head(linearID uuid.UUID) (tx.StateBody, error)
	State(ref tx.StateRef) (tx.StateBody, error)
	ListTransactions() ([]string, error)
	Close() error
}
