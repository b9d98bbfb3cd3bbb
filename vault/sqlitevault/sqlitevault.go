// Package sqlitevault provides a SQLite-backed Vault plus the notary's
// durable consumed-input log, so a single database file carries a party's
// full ledger view.
package sqlitevault

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"xdao.co/txfin/notary"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	tx_id TEXT PRIMARY KEY,
	body  BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS heads (
	linear_id TEXT PRIMARY KEY,
	version   INTEGER NOT NULL,
	body      BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS states (
	linear_id TEXT    NOT NULL,
	version   INTEGER NOT NULL,
	body      BLOB    NOT NULL,
	PRIMARY KEY (linear_id, version)
);
CREATE TABLE IF NOT EXISTS consumed (
	entry TEXT PRIMARY KEY,
	tx_id TEXT NOT NULL
);
`

// Vault is a file-backed ledger store. It also satisfies notary.Log so a
// notary node can keep its append-only consumed record in the same file.
type Vault struct {
	db *sql.DB
}

var _ vault.Vault = (*Vault)(nil)
var _ notary.Log = (*Vault)(nil)

// Open opens (creating if needed) the vault database at path.
func Open(path string) (*Vault, error) {
	if path == "" {
		return nil, errors.New("sqlitevault: database path is required")
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY churn under concurrent commits.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitevault: ensure schema: %w", err)
	}
	return &Vault{db: db}, nil
}

func (v *Vault) PutTransaction(f *tx.FinalizedTransaction) error {
	b, err := tx.EncodeFinalized(f)
	if err != nil {
		return err
	}
	txID := f.TxID()

	dbtx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	var prev []byte
	err = dbtx.QueryRow(`SELECT body FROM transactions WHERE tx_id = ?`, txID).Scan(&prev)
	switch {
	case err == nil:
		if !bytes.Equal(prev, b) {
			return vault.ErrImmutable
		}
		return dbtx.Commit()
	case errors.Is(err, sql.ErrNoRows):
		// first delivery
	default:
		return err
	}

	if _, err := dbtx.Exec(`INSERT INTO transactions (tx_id, body) VALUES (?, ?)`, txID, b); err != nil {
		return err
	}
	for _, out := range f.SignedProposal.Proposal.Outputs {
		sb, err := tx.EncodeState(out)
		if err != nil {
			return err
		}
		if _, err := dbtx.Exec(`INSERT OR IGNORE INTO states (linear_id, version, body) VALUES (?, ?, ?)`,
			out.LinearID.String(), out.Version, sb); err != nil {
			return err
		}
		_, err = dbtx.Exec(`
			INSERT INTO heads (linear_id, version, body) VALUES (?, ?, ?)
			ON CONFLICT(linear_id) DO UPDATE SET version = excluded.version, body = excluded.body
			WHERE excluded.version > heads.version`,
			out.LinearID.String(), out.Version, sb)
		if err != nil {
			return err
		}
	}
	return dbtx.Commit()
}

func (v *Vault) GetTransaction(txID string) (*tx.FinalizedTransaction, error) {
	var b []byte
	err := v.db.QueryRow(`SELECT body FROM transactions WHERE tx_id = ?`, txID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vault.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return tx.DecodeFinalized(b)
}

func (v *Vault) HasTransaction(txID string) bool {
	var one int
	err := v.db.QueryRow(`SELECT 1 FROM transactions WHERE tx_id = ?`, txID).Scan(&one)
	return err == nil
}

func (v *Vault) Head(linearID uuid.UUID) (tx.StateBody, error) {
	var b []byte
	err := v.db.QueryRow(`SELECT body FROM heads WHERE linear_id = ?`, linearID.String()).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.StateBody{}, vault.ErrNotFound
	}
	if err != nil {
		return tx.StateBody{}, err
	}
	return tx.DecodeState(b)
}

func (v *Vault) State(ref tx.StateRef) (tx.StateBody, error) {
	var b []byte
	err := v.db.QueryRow(`SELECT body FROM states WHERE linear_id = ? AND version = ?`,
		ref.LinearID.String(), ref.Version).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return tx.StateBody{}, vault.ErrNotFound
	}
	if err != nil {
		return tx.StateBody{}, err
	}
	return tx.DecodeState(b)
}

func (v *Vault) ListTransactions() ([]string, error) {
	rows, err := v.db.Query(`SELECT tx_id FROM transactions ORDER BY tx_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Consume implements notary.Log: it atomically records txID as the consumer
// of every entry, or fails without recording anything if any entry is
// already held by a different transaction.
func (v *Vault) Consume(entries []string, txID string) error {
	dbtx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	for _, entry := range entries {
		var owner string
		err := dbtx.QueryRow(`SELECT tx_id FROM consumed WHERE entry = ?`, entry).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// free
		case err != nil:
			return err
		case owner != txID:
			return &notary.ConflictError{Entry: entry, TxID: owner}
		}
	}
	for _, entry := range entries {
		if _, err := dbtx.Exec(`INSERT OR IGNORE INTO consumed (entry, tx_id) VALUES (?, ?)`, entry, txID); err != nil {
			return err
		}
	}
	return dbtx.Commit()
}

// ConsumedBy implements notary.Log.
func (v *Vault) ConsumedBy(entry string) (string, bool) {
	var owner string
	err := v.db.QueryRow(`SELECT tx_id FROM consumed WHERE entry = ?`, entry).Scan(&owner)
	if err != nil {
		return "", false
	}
	return owner, true
}

func (v *Vault) Close() error {
	return v.db.Close()
}
