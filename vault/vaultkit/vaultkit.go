// Package vaultkit is the conformance suite every Vault implementation must
// pass. Implementations run it from their own tests with a fresh-store
// constructor.
package vaultkit

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/vault"
)

// NewVault constructs a fresh, empty Vault for a test. The returned Vault
// MUST be isolated from other tests.
type NewVault func(t *testing.T) vault.Vault

// Fixture builds a committed-transaction fixture advancing the given
// lineage to version. The signatures are not verifiable; vaults store, they
// do not verify.
func Fixture(t *testing.T, lineage uuid.UUID, version uint64, value string) *tx.FinalizedTransaction {
	t.Helper()

	out := tx.StateBody{
		LinearID:     lineage,
		Version:      version,
		Kind:         "record",
		Participants: []string{"Alice", "Bob"},
		Fields:       map[string]string{"Value": value},
	}
	p := tx.Proposal{
		Notary:  "Notary",
		Outputs: []tx.StateBody{out},
		Command: tx.Command{Action: "record.write", RequiredSigners: []string{"Alice"}},
	}
	if version > 1 {
		p.Inputs = []tx.StateRef{{LinearID: lineage, Version: version - 1}}
	}
	txID, err := p.TxID()
	if err != nil {
		t.Fatalf("TxID failed: %v", err)
	}
	return &tx.FinalizedTransaction{
		SignedProposal: tx.SignedProposal{
			Proposal: p,
			Sigs: []tx.PartialSignature{{
				Signer: "Alice",
				Sig:    identity.Signature{Alg: "ed25519", HashAlg: "sha256", B64: "c2lnLWFsaWNl"},
			}},
		},
		Certificate: tx.Certificate{
			TxID:   txID,
			Notary: "Notary",
			Sig:    identity.Signature{Alg: "ed25519", HashAlg: "sha256", B64: "c2lnLW5vdGFyeQ"},
		},
	}
}

func RunVaultConformance(t *testing.T, newVault NewVault) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		v := newVault(t)
		f := Fixture(t, uuid.New(), 1, "one")

		if err := v.PutTransaction(f); err != nil {
			t.Fatalf("PutTransaction failed: %v", err)
		}
		got, err := v.GetTransaction(f.TxID())
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		wantB, err := tx.EncodeFinalized(f)
		if err != nil {
			t.Fatalf("EncodeFinalized(want) failed: %v", err)
		}
		gotB, err := tx.EncodeFinalized(got)
		if err != nil {
			t.Fatalf("EncodeFinalized(got) failed: %v", err)
		}
		if !bytes.Equal(gotB, wantB) {
			t.Fatalf("round trip changed the transaction")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		v := newVault(t)
		f := Fixture(t, uuid.New(), 1, "one")

		if err := v.PutTransaction(f); err != nil {
			t.Fatalf("PutTransaction(1) failed: %v", err)
		}
		if err := v.PutTransaction(f); err != nil {
			t.Fatalf("re-delivery must be a no-op, got: %v", err)
		}
		if !v.HasTransaction(f.TxID()) {
			t.Fatalf("HasTransaction false after Put")
		}
	})

	t.Run("CommittedImmutable", func(t *testing.T) {
		v := newVault(t)
		f := Fixture(t, uuid.New(), 1, "one")
		if err := v.PutTransaction(f); err != nil {
			t.Fatalf("PutTransaction failed: %v", err)
		}

		// Same proposal, different certificate bytes: the identifier
		// collides but the artifact differs.
		mutated := *f
		mutated.Certificate.Sig.B64 = "Zm9yZ2Vk"
		if err := v.PutTransaction(&mutated); err != vault.ErrImmutable {
			t.Fatalf("mutated re-delivery: got err=%v want ErrImmutable", err)
		}
	})

	t.Run("HeadAdvancesWithHistory", func(t *testing.T) {
		v := newVault(t)
		lineage := uuid.New()
		f1 := Fixture(t, lineage, 1, "one")
		f2 := Fixture(t, lineage, 2, "two")

		if err := v.PutTransaction(f1); err != nil {
			t.Fatalf("PutTransaction(v1) failed: %v", err)
		}
		if err := v.PutTransaction(f2); err != nil {
			t.Fatalf("PutTransaction(v2) failed: %v", err)
		}

		head, err := v.Head(lineage)
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		if head.Version != 2 || head.Field("Value") != "two" {
			t.Fatalf("Head is not the latest version: %+v", head)
		}
		for version, want := range map[uint64]string{1: "one", 2: "two"} {
			body, err := v.State(tx.StateRef{LinearID: lineage, Version: version})
			if err != nil {
				t.Fatalf("State(v%d) failed: %v", version, err)
			}
			if body.Field("Value") != want {
				t.Fatalf("State(v%d): got %q want %q", version, body.Field("Value"), want)
			}
		}
	})

	t.Run("OutOfOrderDeliveryKeepsNewestHead", func(t *testing.T) {
		v := newVault(t)
		lineage := uuid.New()
		f1 := Fixture(t, lineage, 1, "one")
		f2 := Fixture(t, lineage, 2, "two")

		if err := v.PutTransaction(f2); err != nil {
			t.Fatalf("PutTransaction(v2) failed: %v", err)
		}
		if err := v.PutTransaction(f1); err != nil {
			t.Fatalf("PutTransaction(v1) failed: %v", err)
		}
		head, err := v.Head(lineage)
		if err != nil {
			t.Fatalf("Head failed: %v", err)
		}
		if head.Version != 2 {
			t.Fatalf("late v1 delivery moved the head back: %+v", head)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		v := newVault(t)

		if _, err := v.GetTransaction("bafkreibogus"); !vault.IsNotFound(err) {
			t.Fatalf("GetTransaction missing: got err=%v want ErrNotFound", err)
		}
		if v.HasTransaction("bafkreibogus") {
			t.Fatalf("HasTransaction true for missing transaction")
		}
		if _, err := v.Head(uuid.New()); !vault.IsNotFound(err) {
			t.Fatalf("Head missing: got err=%v want ErrNotFound", err)
		}
		if _, err := v.State(tx.StateRef{LinearID: uuid.New(), Version: 1}); !vault.IsNotFound(err) {
			t.Fatalf("State missing: got err=%v want ErrNotFound", err)
		}
	})

	t.Run("ListTransactionsSorted", func(t *testing.T) {
		v := newVault(t)
		f1 := Fixture(t, uuid.New(), 1, "one")
		f2 := Fixture(t, uuid.New(), 1, "two")
		if err := v.PutTransaction(f1); err != nil {
			t.Fatalf("PutTransaction(1) failed: %v", err)
		}
		if err := v.PutTransaction(f2); err != nil {
			t.Fatalf("PutTransaction(2) failed: %v", err)
		}
		ids, err := v.ListTransactions()
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(ids) != 2 {
			t.Fatalf("ListTransactions: got %d ids, want 2", len(ids))
		}
		if ids[0] > ids[1] {
			t.Fatalf("ListTransactions not sorted: %v", ids)
		}
	})
}
