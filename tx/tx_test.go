package tx

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/google/uuid"

	"xdao.co/txfin/identity"
)

func newDilithiumSigner(name string) (*identity.Signer, error) {
	return identity.NewDilithium3Signer(name, rand.Reader)
}

func testSigner(t *testing.T, name string) *identity.Signer {
	t.Helper()
	seed := sha256.Sum256([]byte("tx-test:" + name))
	s, err := identity.NewEd25519Signer(name, seed[:])
	if err != nil {
		t.Fatalf("signer %s: %v", name, err)
	}
	return s
}

func testDirectory(t *testing.T, notaryName string, signers ...*identity.Signer) identity.Directory {
	t.Helper()
	parties := make([]identity.Party, 0, len(signers))
	for _, s := range signers {
		parties = append(parties, s.Party())
	}
	dir, err := identity.NewStaticDirectory(parties, notaryName)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	return dir
}

func recordBody(lineage uuid.UUID, version uint64, value string, participants ...string) StateBody {
	if len(participants) == 0 {
		participants = []string{"Alice", "Bob"}
	}
	return StateBody{
		LinearID:     lineage,
		Version:      version,
		Kind:         "record",
		Participants: participants,
		Fields:       map[string]string{"Value": value},
	}
}

// registerRecordContract installs a minimal contract for the "record" kind:
// every output must carry a non-empty Value field.
func registerRecordContract() {
	RegisterContract("record", []Rule{{
		ID: "REC-001",
		Apply: func(rp *ResolvedProposal) error {
			for _, out := range rp.OutputsOfKind("record") {
				if out.Field("Value") == "" {
					return NewError(KindViolation, "REC-001", "record output has no value")
				}
			}
			return nil
		},
	}})
}

func mustBuild(t *testing.T, b *Builder) *Proposal {
	t.Helper()
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return p
}

func fullySigned(t *testing.T, p *Proposal, signers ...*identity.Signer) *SignedProposal {
	t.Helper()
	sp := NewSignedProposal(p)
	for _, s := range signers {
		ps, err := SignProposal(p, s)
		if err != nil {
			t.Fatalf("SignProposal(%s): %v", s.Name(), err)
		}
		if sp, err = sp.Merge(ps); err != nil {
			t.Fatalf("Merge(%s): %v", s.Name(), err)
		}
	}
	return sp
}
