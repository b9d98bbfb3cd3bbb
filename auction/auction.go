// Package auction is the application layer built on the protocol core: an
// auction lineage created by an auctioneer, a per-auction bid lineage
// advanced by bidders, and a closing transition that consumes the auction.
// States map onto the generic StateBody field set; rules are registered
// with the contract registry at process start.
package auction

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
)

const (
	KindAuction = "auction"
	KindBid     = "bid"
	KindAsset   = "asset"

	ActionCreate = "auction.create"
	ActionBid    = "auction.bid"
	ActionClose  = "auction.close"
)

// Field keys on auction and bid state bodies. Times are RFC 3339 UTC;
// amounts are decimal minor units.
const (
	fieldAuctioneer    = "Auctioneer"
	fieldItem          = "Item"
	fieldBidLineage    = "Bid-Lineage"
	fieldBasePrice     = "Base-Price"
	fieldBidDeadline   = "Bid-Deadline"
	fieldCreatedAt     = "Created-At"
	fieldClosedAt      = "Closed-At"
	fieldActive        = "Active"
	fieldHighestBid    = "Highest-Bid"
	fieldHighestBidder = "Highest-Bidder"

	fieldAuctionID = "Auction-ID"
	fieldBidder    = "Bidder"
	fieldAmount    = "Amount"
)

// State is the auction lineage: created once, amended only by the closing
// transition. BidLineage names the bid lineage all bids on this auction
// advance; it is allocated at creation so every bidder finds it.
type State struct {
	LinearID      uuid.UUID
	Version       uint64
	Auctioneer    string
	Item          tx.LinkedReference
	BidLineage    uuid.UUID
	BasePrice     uint64
	BidDeadline   time.Time
	CreatedAt     time.Time
	ClosedAt      time.Time
	Active        bool
	HighestBid    uint64
	HighestBidder string
	Participants  []string
}

// Body maps the auction onto a generic state body. Empty optional fields
// are omitted; the canonical wire format forbids empty values.
func (a State) Body() tx.StateBody {
	fields := map[string]string{
		fieldAuctioneer:  a.Auctioneer,
		fieldBidLineage:  a.BidLineage.String(),
		fieldBasePrice:   strconv.FormatUint(a.BasePrice, 10),
		fieldBidDeadline: a.BidDeadline.UTC().Format(time.RFC3339),
		fieldCreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339),
		fieldActive:      strconv.FormatBool(a.Active),
	}
	if a.Item.ExpectedKind != "" {
		fields[fieldItem] = a.Item.String()
	}
	if !a.ClosedAt.IsZero() {
		fields[fieldClosedAt] = a.ClosedAt.UTC().Format(time.RFC3339)
	}
	if a.HighestBid > 0 {
		fields[fieldHighestBid] = strconv.FormatUint(a.HighestBid, 10)
	}
	if a.HighestBidder != "" {
		fields[fieldHighestBidder] = a.HighestBidder
	}
	participants := append([]string(nil), a.Participants...)
	sort.Strings(participants)
	return tx.StateBody{
		LinearID:     a.LinearID,
		Version:      a.Version,
		Kind:         KindAuction,
		Participants: participants,
		Fields:       fields,
	}
}

// FromBody parses an auction from a generic state body.
func FromBody(b tx.StateBody) (State, error) {
	if b.Kind != KindAuction {
		return State{}, tx.NewError(tx.KindTypeMismatch, "AUC-001", "state "+b.Ref().String()+" is kind "+b.Kind)
	}
	a := State{
		LinearID:      b.LinearID,
		Version:       b.Version,
		Auctioneer:    b.Field(fieldAuctioneer),
		HighestBidder: b.Field(fieldHighestBidder),
		Participants:  append([]string(nil), b.Participants...),
	}
	if a.Auctioneer == "" {
		return State{}, tx.NewError(tx.KindMalformed, "AUC-002", "auction "+b.Ref().String()+" has no auctioneer")
	}
	lineage, err := uuid.Parse(b.Field(fieldBidLineage))
	if err != nil {
		return State{}, tx.WrapError(tx.KindMalformed, "AUC-003", "auction "+b.Ref().String()+" has no bid lineage", err)
	}
	a.BidLineage = lineage
	if a.BasePrice, err = parseAmount(b.Field(fieldBasePrice)); err != nil {
		return State{}, tx.WrapError(tx.KindMalformed, "AUC-004", "auction "+b.Ref().String()+" base price", err)
	}
	if a.BidDeadline, err = parseTime(b.Field(fieldBidDeadline)); err != nil {
		return State{}, tx.WrapError(tx.KindMalformed, "AUC-005", "auction "+b.Ref().String()+" bid deadline", err)
	}
	if a.CreatedAt, err = parseTime(b.Field(fieldCreatedAt)); err != nil {
		return State{}, tx.WrapError(tx.KindMalformed, "AUC-006", "auction "+b.Ref().String()+" creation time", err)
	}
	if a.Active, err = strconv.ParseBool(b.Field(fieldActive)); err != nil {
		return State{}, tx.WrapError(tx.KindMalformed, "AUC-007", "auction "+b.Ref().String()+" active flag", err)
	}
	if v := b.Field(fieldItem); v != "" {
		if a.Item, err = tx.ParseLinkedReference(v); err != nil {
			return State{}, tx.WrapError(tx.KindMalformed, "AUC-008", "auction "+b.Ref().String()+" item", err)
		}
	}
	if v := b.Field(fieldClosedAt); v != "" {
		if a.ClosedAt, err = parseTime(v); err != nil {
			return State{}, tx.WrapError(tx.KindMalformed, "AUC-009", "auction "+b.Ref().String()+" closing time", err)
		}
	}
	if v := b.Field(fieldHighestBid); v != "" {
		if a.HighestBid, err = parseAmount(v); err != nil {
			return State{}, tx.WrapError(tx.KindMalformed, "AUC-010", "auction "+b.Ref().String()+" highest bid", err)
		}
	}
	return a, nil
}

// Bid is one version of a per-auction bid lineage. Each new bid consumes
// the previous one; the lineage head is always the highest standing bid.
type Bid struct {
	LinearID     uuid.UUID
	Version      uint64
	Auction      uuid.UUID
	Bidder       string
	Amount       uint64
	Participants []string
}

func (b Bid) Body() tx.StateBody {
	participants := append([]string(nil), b.Participants...)
	sort.Strings(participants)
	return tx.StateBody{
		LinearID:     b.LinearID,
		Version:      b.Version,
		Kind:         KindBid,
		Participants: participants,
		Fields: map[string]string{
			fieldAuctionID: b.Auction.String(),
			fieldBidder:    b.Bidder,
			fieldAmount:    strconv.FormatUint(b.Amount, 10),
		},
	}
}

// BidFromBody parses a bid from a generic state body.
func BidFromBody(body tx.StateBody) (Bid, error) {
	if body.Kind != KindBid {
		return Bid{}, tx.NewError(tx.KindTypeMismatch, "AUC-021", "state "+body.Ref().String()+" is kind "+body.Kind)
	}
	b := Bid{
		LinearID:     body.LinearID,
		Version:      body.Version,
		Bidder:       body.Field(fieldBidder),
		Participants: append([]string(nil), body.Participants...),
	}
	if b.Bidder == "" {
		return Bid{}, tx.NewError(tx.KindMalformed, "AUC-022", "bid "+body.Ref().String()+" has no bidder")
	}
	auctionID, err := uuid.Parse(body.Field(fieldAuctionID))
	if err != nil {
		return Bid{}, tx.WrapError(tx.KindMalformed, "AUC-023", "bid "+body.Ref().String()+" auction id", err)
	}
	b.Auction = auctionID
	if b.Amount, err = parseAmount(body.Field(fieldAmount)); err != nil {
		return Bid{}, tx.WrapError(tx.KindMalformed, "AUC-024", "bid "+body.Ref().String()+" amount", err)
	}
	return b, nil
}

func parseAmount(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
