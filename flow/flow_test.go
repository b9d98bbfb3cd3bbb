package flow_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"xdao.co/txfin/flow"
	"xdao.co/txfin/flow/flowtest"
	"xdao.co/txfin/tx"
)

func init() {
	tx.RegisterContract("record", []tx.Rule{{
		ID: "REC-001",
		Apply: func(rp *tx.ResolvedProposal) error {
			for _, out := range rp.OutputsOfKind("record") {
				if out.Field("Value") == "" {
					return tx.NewError(tx.KindViolation, "REC-001", "record output has no value")
				}
			}
			return nil
		},
	}})
}

func record(lineage uuid.UUID, version uint64, value string, participants ...string) tx.StateBody {
	return tx.StateBody{
		LinearID:     lineage,
		Version:      version,
		Kind:         "record",
		Participants: participants,
		Fields:       map[string]string{"Value": value},
	}
}

// createRecord runs a full create instance from the given node and returns
// the committed lineage.
func createRecord(t *testing.T, net *flowtest.Network, initiator string, value string, participants ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	node := net.Node(t, initiator)
	lineage := uuid.New()

	p, err := tx.NewBuilder("Notary").
		AddOutput(record(lineage, 1, value, participants...)).
		WithCommand("record.write", participants...).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sp, err := node.CollectSignatures(ctx, p)
	if err != nil {
		t.Fatalf("CollectSignatures: %v", err)
	}
	if _, _, err := node.Finality(ctx, sp); err != nil {
		t.Fatalf("Finality: %v", err)
	}
	return lineage
}

func TestEndToEndCreateAndAmend(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	ctx := context.Background()
	alice := net.Node(t, "Alice")

	lineage := createRecord(t, net, "Alice", "one", "Alice", "Bob")

	// both participants hold the head, the notary holds nothing
	for _, name := range []string{"Alice", "Bob"} {
		head, err := net.Vaults[name].Head(lineage)
		if err != nil {
			t.Fatalf("%s head: %v", name, err)
		}
		if head.Version != 1 || head.Field("Value") != "one" {
			t.Fatalf("%s head mismatch: %+v", name, head)
		}
	}
	if _, err := net.Vaults["Notary"].Head(lineage); err == nil {
		t.Fatalf("notary received a broadcast it should not have")
	}

	// amend: consume v1, commit v2 everywhere
	p, err := tx.NewBuilder("Notary").
		AddInput(tx.StateRef{LinearID: lineage, Version: 1}).
		AddOutput(record(lineage, 2, "two", "Alice", "Bob")).
		WithCommand("record.write", "Alice", "Bob").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sp, err := alice.CollectSignatures(ctx, p)
	if err != nil {
		t.Fatalf("CollectSignatures: %v", err)
	}
	if got := sp.SigningState(); got != tx.FullySigned {
		t.Fatalf("state: got %s want FullySigned", got)
	}
	_, report, err := alice.Finality(ctx, sp)
	if err != nil {
		t.Fatalf("Finality: %v", err)
	}
	if len(report.Delivered) != 1 || report.Delivered[0] != "Bob" {
		t.Fatalf("delivered: %v", report.Delivered)
	}
	if len(report.Unreached) != 0 {
		t.Fatalf("unreached: %v", report.Unreached)
	}
	head, err := net.Vaults["Bob"].Head(lineage)
	if err != nil {
		t.Fatalf("Bob head: %v", err)
	}
	if head.Version != 2 || head.Field("Value") != "two" {
		t.Fatalf("Bob head not amended: %+v", head)
	}
}

func TestCollectRefusesInvalidProposal(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	alice := net.Node(t, "Alice")

	p, err := tx.NewBuilder("Notary").
		AddOutput(tx.StateBody{
			LinearID:     uuid.New(),
			Version:      1,
			Kind:         "record",
			Participants: []string{"Alice", "Bob"},
			Fields:       map[string]string{"Other": "x"},
		}).
		WithCommand("record.write", "Alice", "Bob").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = alice.CollectSignatures(context.Background(), p)
	if !tx.IsKind(err, tx.KindViolation) {
		t.Fatalf("got %v want KindViolation", err)
	}
}

func TestCollectFailsWhenSignerUnreachable(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Ghost", "Notary")
	delete(net.Nodes, "Ghost")
	alice := net.Node(t, "Alice")

	p, err := tx.NewBuilder("Notary").
		AddOutput(record(uuid.New(), 1, "v", "Alice", "Ghost")).
		WithCommand("record.write", "Alice", "Ghost").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = alice.CollectSignatures(context.Background(), p)
	if tx.RuleID(err) != "TXF-FLW-103" {
		t.Fatalf("got %v want TXF-FLW-103", err)
	}
}

func TestFinalityRefusesPartiallySignedAndNeverConsumes(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	alice := net.Node(t, "Alice")
	lineage := createRecord(t, net, "Alice", "one", "Alice", "Bob")

	input := tx.StateRef{LinearID: lineage, Version: 1}
	p, err := tx.NewBuilder("Notary").
		AddInput(input).
		AddOutput(record(lineage, 2, "two", "Alice", "Bob")).
		WithCommand("record.write", "Alice", "Bob").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ps, err := tx.SignProposal(p, net.Signers["Alice"])
	if err != nil {
		t.Fatalf("SignProposal: %v", err)
	}
	sp, err := tx.NewSignedProposal(p).Merge(ps)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	_, _, err = alice.Finality(context.Background(), sp)
	if tx.RuleID(err) != "TXF-SIG-201" {
		t.Fatalf("got %v want TXF-SIG-201", err)
	}
	if owner, ok := net.Log.ConsumedBy(input.Key()); ok {
		t.Fatalf("notary consumed %s for %s despite incomplete signatures", input.Key(), owner)
	}
}

func TestDoubleSpendLoserMustRebuild(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	ctx := context.Background()
	lineage := createRecord(t, net, "Alice", "one", "Alice", "Bob")

	build := func(value string) *tx.Proposal {
		p, err := tx.NewBuilder("Notary").
			AddInput(tx.StateRef{LinearID: lineage, Version: 1}).
			AddOutput(record(lineage, 2, value, "Alice", "Bob")).
			WithCommand("record.write", "Alice", "Bob").
			Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return p
	}

	alice := net.Node(t, "Alice")
	bob := net.Node(t, "Bob")

	spA, err := alice.CollectSignatures(ctx, build("from-alice"))
	if err != nil {
		t.Fatalf("CollectSignatures(A): %v", err)
	}
	spB, err := bob.CollectSignatures(ctx, build("from-bob"))
	if err != nil {
		t.Fatalf("CollectSignatures(B): %v", err)
	}

	if _, _, err := alice.Finality(ctx, spA); err != nil {
		t.Fatalf("Finality(A): %v", err)
	}
	_, _, err = bob.Finality(ctx, spB)
	if !tx.IsKind(err, tx.KindDoubleSpend) {
		t.Fatalf("Finality(B): got %v want KindDoubleSpend", err)
	}

	// rebuild against the new head succeeds
	head, err := bob.Resolver().Head(ctx, lineage)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	p, err := tx.NewBuilder("Notary").
		AddInput(head.Ref()).
		AddOutput(record(lineage, head.Version+1, "from-bob-rebuilt", "Alice", "Bob")).
		WithCommand("record.write", "Alice", "Bob").
		Build()
	if err != nil {
		t.Fatalf("Build(rebuilt): %v", err)
	}
	sp, err := bob.CollectSignatures(ctx, p)
	if err != nil {
		t.Fatalf("CollectSignatures(rebuilt): %v", err)
	}
	if _, _, err := bob.Finality(ctx, sp); err != nil {
		t.Fatalf("Finality(rebuilt): %v", err)
	}
}

func TestFinalizeDeliveryIsIdempotent(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	ctx := context.Background()
	lineage := createRecord(t, net, "Alice", "one", "Alice", "Bob")

	head, err := net.Vaults["Bob"].Head(lineage)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	txs, err := net.Vaults["Bob"].ListTransactions()
	if err != nil || len(txs) != 1 {
		t.Fatalf("ListTransactions: %v %v", txs, err)
	}
	f, err := net.Vaults["Bob"].GetTransaction(txs[0])
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}

	// re-delivery is a no-op, not an error
	if err := net.Node(t, "Bob").Finalize(ctx, f); err != nil {
		t.Fatalf("re-delivery: %v", err)
	}
	again, err := net.Vaults["Bob"].Head(lineage)
	if err != nil || again.Ref() != head.Ref() {
		t.Fatalf("head moved on re-delivery: %+v %v", again, err)
	}
}

func TestFinalizeRejectsCertifiedViolation(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	ctx := context.Background()

	// Hand-build a certified transaction that fails the record contract:
	// the notary does not validate, so a certificate alone must not be
	// enough to reach Bob's ledger.
	p, err := tx.NewBuilder("Notary").
		AddOutput(tx.StateBody{
			LinearID:     uuid.New(),
			Version:      1,
			Kind:         "record",
			Participants: []string{"Alice", "Bob"},
			Fields:       map[string]string{"Other": "x"},
		}).
		WithCommand("record.write", "Alice").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ps, err := tx.SignProposal(p, net.Signers["Alice"])
	if err != nil {
		t.Fatalf("SignProposal: %v", err)
	}
	sp, err := tx.NewSignedProposal(p).Merge(ps)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	cert, err := net.Node(t, "Notary").Notarize(ctx, sp)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	f := &tx.FinalizedTransaction{SignedProposal: *sp, Certificate: cert}

	var fatal error
	bob, err := flow.NewNode(flow.Config{
		Signer:    net.Signers["Bob"],
		Directory: net.Dir,
		Vault:     net.Vaults["Bob"],
		Resolver:  net.Node(t, "Bob").Resolver(),
		Options: flow.Options{
			Policy:  flow.Halt,
			OnFatal: func(err error) { fatal = err },
		},
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	err = bob.Finalize(ctx, f)
	if !tx.IsKind(err, tx.KindViolation) {
		t.Fatalf("got %v want KindViolation", err)
	}
	if fatal == nil {
		t.Fatalf("Halt policy did not report fatal")
	}
	if net.Vaults["Bob"].HasTransaction(f.TxID()) {
		t.Fatalf("violating transaction was committed")
	}
}
