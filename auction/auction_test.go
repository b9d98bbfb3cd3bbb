package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
)

var (
	auctionID = uuid.MustParse("aaaaaaaa-0000-4000-8000-000000000001")
	bidLine   = uuid.MustParse("bbbbbbbb-0000-4000-8000-000000000002")
	assetID   = uuid.MustParse("cccccccc-0000-4000-8000-000000000003")

	createdAt = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	deadline  = createdAt.Add(time.Hour)
)

func openAuction() State {
	return State{
		LinearID:     auctionID,
		Version:      1,
		Auctioneer:   "Alice",
		BidLineage:   bidLine,
		BasePrice:    100,
		BidDeadline:  deadline,
		CreatedAt:    createdAt,
		Active:       true,
		Participants: []string{"Alice", "Bob", "Charlie"},
	}
}

func openingBid(bidder string, amount uint64) Bid {
	return Bid{
		LinearID:     bidLine,
		Version:      1,
		Auction:      auctionID,
		Bidder:       bidder,
		Amount:       amount,
		Participants: []string{"Alice", "Bob", "Charlie"},
	}
}

func TestAuctionBodyRoundTrip(t *testing.T) {
	a := openAuction()
	a.Item = tx.LinkedReference{ID: assetID, ExpectedKind: KindAsset}

	got, err := FromBody(a.Body())
	if err != nil {
		t.Fatalf("FromBody: %v", err)
	}
	if got.LinearID != a.LinearID || got.BidLineage != a.BidLineage ||
		got.Auctioneer != a.Auctioneer || got.BasePrice != a.BasePrice ||
		!got.BidDeadline.Equal(a.BidDeadline) || !got.CreatedAt.Equal(a.CreatedAt) ||
		got.Active != a.Active || got.Item != a.Item {
		t.Fatalf("round trip drifted:\n got %+v\nwant %+v", got, a)
	}
}

func TestClosedAuctionBodyRoundTrip(t *testing.T) {
	a := openAuction()
	a.Version = 2
	a.Active = false
	a.ClosedAt = deadline.Add(time.Minute)
	a.HighestBid = 250
	a.HighestBidder = "Bob"

	got, err := FromBody(a.Body())
	if err != nil {
		t.Fatalf("FromBody: %v", err)
	}
	if got.Active || !got.ClosedAt.Equal(a.ClosedAt) ||
		got.HighestBid != 250 || got.HighestBidder != "Bob" {
		t.Fatalf("closing fields drifted: %+v", got)
	}
}

func TestFromBodyRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*tx.StateBody)
		ruleID string
	}{
		{"WrongKind", func(b *tx.StateBody) { b.Kind = KindBid }, "AUC-001"},
		{"NoAuctioneer", func(b *tx.StateBody) { delete(b.Fields, "Auctioneer") }, "AUC-002"},
		{"NoBidLineage", func(b *tx.StateBody) { b.Fields["Bid-Lineage"] = "not-a-uuid" }, "AUC-003"},
		{"BadBasePrice", func(b *tx.StateBody) { b.Fields["Base-Price"] = "-5" }, "AUC-004"},
		{"BadDeadline", func(b *tx.StateBody) { b.Fields["Bid-Deadline"] = "yesterday" }, "AUC-005"},
		{"BadActive", func(b *tx.StateBody) { b.Fields["Active"] = "maybe" }, "AUC-007"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := openAuction().Body()
			tc.mutate(&body)
			_, err := FromBody(body)
			if tx.RuleID(err) != tc.ruleID {
				t.Fatalf("got %v want %s", err, tc.ruleID)
			}
		})
	}
}

func TestBidBodyRoundTrip(t *testing.T) {
	b := openingBid("Bob", 150)
	got, err := BidFromBody(b.Body())
	if err != nil {
		t.Fatalf("BidFromBody: %v", err)
	}
	if got.LinearID != b.LinearID || got.Auction != b.Auction ||
		got.Bidder != b.Bidder || got.Amount != b.Amount {
		t.Fatalf("round trip drifted: %+v", got)
	}
}

func TestBidFromBodyRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*tx.StateBody)
		ruleID string
	}{
		{"WrongKind", func(b *tx.StateBody) { b.Kind = KindAuction }, "AUC-021"},
		{"NoBidder", func(b *tx.StateBody) { delete(b.Fields, "Bidder") }, "AUC-022"},
		{"BadAuctionID", func(b *tx.StateBody) { b.Fields["Auction-ID"] = "nope" }, "AUC-023"},
		{"BadAmount", func(b *tx.StateBody) { b.Fields["Amount"] = "lots" }, "AUC-024"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := openingBid("Bob", 150).Body()
			tc.mutate(&body)
			_, err := BidFromBody(body)
			if tx.RuleID(err) != tc.ruleID {
				t.Fatalf("got %v want %s", err, tc.ruleID)
			}
		})
	}
}
