package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"xdao.co/txfin/flow/flowtest"
	"xdao.co/txfin/tx"
)

func issueAsset(t *testing.T, net *flowtest.Network, owner string) uuid.UUID {
	t.Helper()
	tx.RegisterContract(KindAsset, []tx.Rule{{
		ID:    "AST-001",
		Apply: func(*tx.ResolvedProposal) error { return nil },
	}})

	assetID := uuid.New()
	p, err := tx.NewBuilder("Notary").
		AddOutput(tx.StateBody{
			LinearID:     assetID,
			Version:      1,
			Kind:         KindAsset,
			Participants: []string{owner},
			Fields:       map[string]string{"Description": "vintage guitar"},
		}).
		WithCommand("asset.issue", owner).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	node := net.Node(t, owner)
	ctx := context.Background()
	sp, err := node.CollectSignatures(ctx, p)
	if err != nil {
		t.Fatalf("CollectSignatures: %v", err)
	}
	if _, _, err := node.Finality(ctx, sp); err != nil {
		t.Fatalf("Finality: %v", err)
	}
	return assetID
}

// TestAuctionLifecycle drives a full auction across three parties and a
// notary: creation with an asset reference, competing bids, refused bids,
// a premature closing attempt, the closing itself, and a bid after close.
func TestAuctionLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("sleeps past the bid deadline")
	}
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Charlie", "Notary")
	ctx := context.Background()
	Register()

	alice := net.Node(t, "Alice")
	bob := net.Node(t, "Bob")
	charlie := net.Node(t, "Charlie")

	assetID := issueAsset(t, net, "Alice")

	a, report, err := Create(ctx, alice, CreateParams{
		Item:        assetID,
		BasePrice:   100,
		BidDeadline: time.Now().Add(2 * time.Second),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(report.Delivered) != 2 || report.Delivered[0] != "Bob" || report.Delivered[1] != "Charlie" {
		t.Fatalf("create delivered: %v", report.Delivered)
	}

	// opening bid
	opening, _, err := PlaceBid(ctx, bob, a.LinearID, 150)
	if err != nil {
		t.Fatalf("PlaceBid(Bob,150): %v", err)
	}
	if opening.Version != 1 || opening.LinearID != a.BidLineage {
		t.Fatalf("opening bid: %+v", opening)
	}

	// a bid that does not outbid the standing one is refused locally
	if _, _, err := PlaceBid(ctx, charlie, a.LinearID, 120); tx.RuleID(err) != "AUC-221" {
		t.Fatalf("underbid: got %v want AUC-221", err)
	}
	// below base price
	if _, _, err := PlaceBid(ctx, charlie, a.LinearID, 50); !tx.IsKind(err, tx.KindViolation) {
		t.Fatalf("below base: got %v want KindViolation", err)
	}
	// the auctioneer may not bid
	if _, _, err := PlaceBid(ctx, alice, a.LinearID, 300); tx.RuleID(err) != "AUC-216" {
		t.Fatalf("auctioneer bid: got %v want AUC-216", err)
	}

	// Charlie outbids, consuming Bob's bid
	outbid, _, err := PlaceBid(ctx, charlie, a.LinearID, 200)
	if err != nil {
		t.Fatalf("PlaceBid(Charlie,200): %v", err)
	}
	if outbid.Version != 2 {
		t.Fatalf("outbid version: %d", outbid.Version)
	}

	// closing before the deadline is a violation
	if _, _, err := Close(ctx, alice, a.LinearID); tx.RuleID(err) != "AUC-136" {
		t.Fatalf("early close: got %v want AUC-136", err)
	}

	time.Sleep(time.Until(a.BidDeadline.Add(2 * time.Second)))

	closed, _, err := Close(ctx, alice, a.LinearID)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Active || closed.HighestBid != 200 || closed.HighestBidder != "Charlie" {
		t.Fatalf("closed state: %+v", closed)
	}

	// every participant sees the closed head with the recorded winner
	for _, name := range []string{"Alice", "Bob", "Charlie"} {
		head, err := net.Vaults[name].Head(a.LinearID)
		if err != nil {
			t.Fatalf("%s head: %v", name, err)
		}
		got, err := FromBody(head)
		if err != nil {
			t.Fatalf("%s FromBody: %v", name, err)
		}
		if got.Active || got.HighestBidder != "Charlie" || got.HighestBid != 200 {
			t.Fatalf("%s sees %+v", name, got)
		}
	}

	// bidding on a closed auction is refused
	if _, _, err := PlaceBid(ctx, bob, a.LinearID, 400); tx.RuleID(err) != "AUC-213" {
		t.Fatalf("bid after close: got %v want AUC-213", err)
	}
}

func TestPlaceBidUnknownAuction(t *testing.T) {
	net := flowtest.NewNetwork(t, "Notary", "Alice", "Bob", "Notary")
	Register()
	_, _, err := PlaceBid(context.Background(), net.Node(t, "Bob"), uuid.New(), 100)
	if !tx.IsKind(err, tx.KindUnresolved) {
		t.Fatalf("got %v want KindUnresolved", err)
	}
}
