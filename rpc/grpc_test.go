package rpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/txfin/flow"
	"xdao.co/txfin/flow/flowtest"
	"xdao.co/txfin/resolve"
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

// serve exposes a backend over an in-memory connection and returns a client
// for it.
func serve(t *testing.T, backend Backend) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterNodeServer(srv, &Server{Backend: backend})
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { cc.Close() })
	return NewClient(cc)
}

type mapDialer map[string]*Client

func (d mapDialer) Peer(name string) (flow.Peer, error) {
	c, ok := d[name]
	if !ok {
		return nil, tx.NewError(tx.KindInternal, "TXF-RPC-201", "no endpoint for "+name)
	}
	return c, nil
}

// TestEndToEndOverGRPC runs a full protocol instance with every remote call
// crossing the wire: Bob endorses, the notary certifies, and the finalized
// transaction is delivered back to Bob.
func TestEndToEndOverGRPC(t *testing.T) {
	network := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	ctx := context.Background()

	bobC := serve(t, network.Node(t, "Bob"))
	notaryC := serve(t, network.Node(t, "Notary"))

	alice, err := flow.NewNode(flow.Config{
		Signer:    network.Signers["Alice"],
		Directory: network.Dir,
		Vault:     network.Vaults["Alice"],
		Resolver:  resolve.New(network.Vaults["Alice"], bobC, notaryC),
		Dialer:    mapDialer{"Bob": bobC, "Notary": notaryC},
	})
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}

	lineage := uuid.New()
	p, err := tx.NewBuilder("Notary").
		AddOutput(tx.StateBody{
			LinearID:     lineage,
			Version:      1,
			Kind:         "record",
			Participants: []string{"Alice", "Bob"},
			Fields:       map[string]string{"Value": "wired"},
		}).
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

	head, err := network.Vaults["Bob"].Head(lineage)
	if err != nil {
		t.Fatalf("Bob head: %v", err)
	}
	if head.Field("Value") != "wired" {
		t.Fatalf("Bob head: %+v", head)
	}

	// committed state is served back over the wire
	got, err := bobC.FetchHead(ctx, lineage)
	if err != nil {
		t.Fatalf("FetchHead: %v", err)
	}
	if got.Ref() != head.Ref() {
		t.Fatalf("FetchHead served %s", got.Ref())
	}
	exact, err := bobC.FetchState(ctx, tx.StateRef{LinearID: lineage, Version: 1})
	if err != nil {
		t.Fatalf("FetchState: %v", err)
	}
	if exact.Field("Value") != "wired" {
		t.Fatalf("FetchState served %+v", exact)
	}
	if _, err := bobC.FetchHead(ctx, uuid.New()); !tx.IsKind(err, tx.KindUnresolved) {
		t.Fatalf("missing head: got %v want KindUnresolved", err)
	}
}

// stubBackend returns a canned error from every method, or canned bodies.
type stubBackend struct {
	err   error
	head  tx.StateBody
	state tx.StateBody
}

func (s *stubBackend) Propose(context.Context, *tx.SignedProposal) (tx.PartialSignature, error) {
	return tx.PartialSignature{}, s.err
}

func (s *stubBackend) Notarize(context.Context, *tx.SignedProposal) (tx.Certificate, error) {
	return tx.Certificate{}, s.err
}

func (s *stubBackend) Finalize(context.Context, *tx.FinalizedTransaction) error {
	return s.err
}

func (s *stubBackend) Head(context.Context, uuid.UUID) (tx.StateBody, error) {
	return s.head, s.err
}

func (s *stubBackend) State(context.Context, tx.StateRef) (tx.StateBody, error) {
	return s.state, s.err
}

func unsignedFixture(t *testing.T) *tx.SignedProposal {
	t.Helper()
	p, err := tx.NewBuilder("Notary").
		AddOutput(tx.StateBody{
			LinearID:     uuid.New(),
			Version:      1,
			Kind:         "record",
			Participants: []string{"Alice"},
			Fields:       map[string]string{"Value": "v"},
		}).
		WithCommand("record.write", "Alice").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return tx.NewSignedProposal(p)
}

// TestErrorTaxonomySurvivesTheWire checks that structured refusals come back
// with the same kind, rule and message the backend raised.
func TestErrorTaxonomySurvivesTheWire(t *testing.T) {
	cases := []struct {
		kind   tx.Kind
		ruleID string
		msg    string
	}{
		{tx.KindDoubleSpend, "TXF-NTR-301", "input aaaa@1 already consumed"},
		{tx.KindSignature, "TXF-SIG-201", "proposal is not fully signed"},
		{tx.KindUnresolved, "TXF-RSV-101", "no party could resolve the reference"},
		{tx.KindViolation, "AUC-221", "a bid must outbid the standing bid"},
		{tx.KindMalformed, "TXF-BLD-101", "output has no participants"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			c := serve(t, &stubBackend{err: tx.NewError(tc.kind, tc.ruleID, tc.msg)})
			_, err := c.Notarize(context.Background(), unsignedFixture(t))
			if !tx.IsKind(err, tc.kind) {
				t.Fatalf("kind: got %v want %s", err, tc.kind)
			}
			if tx.RuleID(err) != tc.ruleID {
				t.Fatalf("rule: got %s want %s", tx.RuleID(err), tc.ruleID)
			}
			var e *tx.Error
			if !errors.As(err, &e) || e.Message != tc.msg {
				t.Fatalf("message: got %v want %q", err, tc.msg)
			}
		})
	}
}

func TestFetchVerifiesServedBody(t *testing.T) {
	lineage := uuid.New()
	other := tx.StateBody{
		LinearID:     uuid.New(),
		Version:      1,
		Kind:         "record",
		Participants: []string{"Alice"},
		Fields:       map[string]string{"Value": "x"},
	}
	c := serve(t, &stubBackend{head: other, state: other})

	if _, err := c.FetchHead(context.Background(), lineage); tx.RuleID(err) != "TXF-RPC-101" {
		t.Fatalf("FetchHead: got %v want TXF-RPC-101", err)
	}
	ref := tx.StateRef{LinearID: other.LinearID, Version: 2}
	if _, err := c.FetchState(context.Background(), ref); tx.RuleID(err) != "TXF-RPC-102" {
		t.Fatalf("FetchState: got %v want TXF-RPC-102", err)
	}
}
