package auction

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"xdao.co/txfin/flow"
	"xdao.co/txfin/tx"
	"xdao.co/txfin/txid"
)

// CreateParams configures a new auction. Item optionally names an asset
// lineage carried as a validation reference; uuid.Nil omits it.
type CreateParams struct {
	Item        uuid.UUID
	BasePrice   uint64
	BidDeadline time.Time
}

// Create runs the auction creation protocol instance: snapshot the
// directory, make every party except the auctioneer and the notary a
// bidder, build a zero-input single-output proposal, self-sign and take it
// through finality. Returns the committed transaction and its auction.
func Create(ctx context.Context, node *flow.Node, params CreateParams) (State, *flow.Report, error) {
	dir := node.Directory()
	auctioneer := node.Name()
	notary := dir.Notary().Name

	participants := []string{auctioneer}
	for _, party := range dir.AllParties() {
		if party.Name == auctioneer || party.Name == notary {
			continue
		}
		participants = append(participants, party.Name)
	}
	sort.Strings(participants)

	a := State{
		LinearID:     txid.NewLinear(),
		Version:      1,
		Auctioneer:   auctioneer,
		BidLineage:   txid.NewLinear(),
		BasePrice:    params.BasePrice,
		BidDeadline:  params.BidDeadline.UTC().Truncate(time.Second),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Active:       true,
		Participants: participants,
	}

	b := tx.NewBuilder(notary)
	if params.Item != uuid.Nil {
		a.Item = tx.LinkedReference{ID: params.Item, ExpectedKind: KindAsset}
		b = b.AddReference(a.Item)
	}
	p, err := b.AddOutput(a.Body()).
		WithCommand(ActionCreate, auctioneer).
		Build()
	if err != nil {
		return State{}, nil, err
	}
	sp, err := node.CollectSignatures(ctx, p)
	if err != nil {
		return State{}, nil, err
	}
	_, report, err := node.Finality(ctx, sp)
	if err != nil {
		return State{}, nil, err
	}
	return a, report, nil
}

// PlaceBid advances the auction's bid lineage: the opening bid creates it,
// every later bid consumes the standing head. The auction itself is only
// referenced, so competing bidders race at the notary, not at the auction
// lineage.
func PlaceBid(ctx context.Context, node *flow.Node, auctionID uuid.UUID, amount uint64) (Bid, *flow.Report, error) {
	head, err := node.Resolver().Head(ctx, auctionID)
	if err != nil {
		return Bid{}, nil, err
	}
	a, err := FromBody(head)
	if err != nil {
		return Bid{}, nil, err
	}

	bid := Bid{
		LinearID:     a.BidLineage,
		Version:      1,
		Auction:      a.LinearID,
		Bidder:       node.Name(),
		Amount:       amount,
		Participants: a.Participants,
	}

	b := tx.NewBuilder(proposalNotary(node)).
		AddReference(tx.LinkedReference{ID: a.LinearID, ExpectedKind: KindAuction}).
		WithCommand(ActionBid, node.Name())

	prev, err := node.Resolver().Head(ctx, a.BidLineage)
	switch {
	case err == nil:
		bid.Version = prev.Version + 1
		b = b.AddInput(prev.Ref())
	case tx.IsKind(err, tx.KindUnresolved):
		// opening bid
	default:
		return Bid{}, nil, err
	}
	b = b.AddOutput(bid.Body())

	p, err := b.Build()
	if err != nil {
		return Bid{}, nil, err
	}
	sp, err := node.CollectSignatures(ctx, p)
	if err != nil {
		return Bid{}, nil, err
	}
	_, report, err := node.Finality(ctx, sp)
	if err != nil {
		return Bid{}, nil, err
	}
	return bid, report, nil
}

// Close consumes the auction head and records the standing bid, if any, as
// the winner. Only the auctioneer closes, and only after the deadline.
func Close(ctx context.Context, node *flow.Node, auctionID uuid.UUID) (State, *flow.Report, error) {
	head, err := node.Resolver().Head(ctx, auctionID)
	if err != nil {
		return State{}, nil, err
	}
	a, err := FromBody(head)
	if err != nil {
		return State{}, nil, err
	}

	closed := a
	closed.Version = a.Version + 1
	closed.Active = false
	closed.ClosedAt = time.Now().UTC().Truncate(time.Second)

	b := tx.NewBuilder(proposalNotary(node)).
		AddInput(head.Ref()).
		WithCommand(ActionClose, a.Auctioneer)

	winner, err := node.Resolver().Head(ctx, a.BidLineage)
	switch {
	case err == nil:
		bid, err := BidFromBody(winner)
		if err != nil {
			return State{}, nil, err
		}
		closed.HighestBid = bid.Amount
		closed.HighestBidder = bid.Bidder
		b = b.AddReference(tx.LinkedReference{ID: a.BidLineage, ExpectedKind: KindBid})
	case tx.IsKind(err, tx.KindUnresolved):
		// no bids were placed
	default:
		return State{}, nil, err
	}
	b = b.AddOutput(closed.Body())

	p, err := b.Build()
	if err != nil {
		return State{}, nil, err
	}
	sp, err := node.CollectSignatures(ctx, p)
	if err != nil {
		return State{}, nil, err
	}
	_, report, err := node.Finality(ctx, sp)
	if err != nil {
		return State{}, nil, err
	}
	return closed, report, nil
}

func proposalNotary(node *flow.Node) string {
	return node.Directory().Notary().Name
}
