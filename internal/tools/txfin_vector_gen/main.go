// txfin_vector_gen prints a deterministic finalized-transaction vector:
// canonical bytes plus the transaction identifier, for cross-checking
// parsers in other implementations.
package main

import (
	"crypto/ed25519"
	"fmt"
	"os"

	"github.com/google/uuid"

	"xdao.co/txfin/identity"
	"xdao.co/txfin/tx"
)

func mustSigner(name string, b byte) *identity.Signer {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	s, err := identity.NewEd25519Signer(name, seed)
	if err != nil {
		panic(err)
	}
	return s
}

func main() {
	alice := mustSigner("Alice", 0xA1)
	notary := mustSigner("Notary", 0xB2)
	lineage := uuid.MustParse("00000000-0000-4000-8000-000000000001")

	out := tx.StateBody{
		LinearID:     lineage,
		Version:      1,
		Kind:         "record",
		Participants: []string{"Alice"},
		Fields:       map[string]string{"Value": "vector"},
	}
	p, err := tx.NewBuilder("Notary").
		AddOutput(out).
		WithCommand("record.write", "Alice").
		Build()
	if err != nil {
		panic(err)
	}

	ps, err := tx.SignProposal(p, alice)
	if err != nil {
		panic(err)
	}
	sp, err := tx.NewSignedProposal(p).Merge(ps)
	if err != nil {
		panic(err)
	}
	txID, err := p.TxID()
	if err != nil {
		panic(err)
	}
	cert, err := tx.SignCertificate(txID, notary)
	if err != nil {
		panic(err)
	}

	b, err := tx.EncodeFinalized(&tx.FinalizedTransaction{SignedProposal: *sp, Certificate: cert})
	if err != nil {
		panic(err)
	}
	os.Stdout.Write(b)
	fmt.Fprintf(os.Stderr, "\ntx-id: %s\n", txID)
}
