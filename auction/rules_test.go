package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"xdao.co/txfin/tx"
)

func mustValidate(t *testing.T, rp *tx.ResolvedProposal, ruleID string) {
	t.Helper()
	Register()
	err := tx.Validate(rp)
	if ruleID == "" {
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		return
	}
	if tx.RuleID(err) != ruleID {
		t.Fatalf("got %v want %s", err, ruleID)
	}
	if !tx.IsKind(err, tx.KindViolation) {
		t.Fatalf("rule %s not a violation: %v", ruleID, err)
	}
}

func build(t *testing.T, b *tx.Builder) *tx.Proposal {
	t.Helper()
	p, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestCreateRules(t *testing.T) {
	rp := func(mutate func(*State), signers ...string) *tx.ResolvedProposal {
		a := openAuction()
		if mutate != nil {
			mutate(&a)
		}
		if len(signers) == 0 {
			signers = []string{"Alice"}
		}
		p := build(t, tx.NewBuilder("Notary").
			AddOutput(a.Body()).
			WithCommand(ActionCreate, signers...))
		return &tx.ResolvedProposal{Proposal: p}
	}

	t.Run("Accepts", func(t *testing.T) {
		mustValidate(t, rp(nil), "")
	})
	t.Run("NotVersionOne", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.Version = 2 }), "AUC-113")
	})
	t.Run("Inactive", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.Active = false }), "AUC-114")
	})
	t.Run("ZeroBasePrice", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.BasePrice = 0 }), "AUC-115")
	})
	t.Run("DeadlineBeforeCreation", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.BidDeadline = a.CreatedAt }), "AUC-116")
	})
	t.Run("CarriesBid", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.HighestBid = 10 }), "AUC-117")
	})
	t.Run("AuctioneerNotSigning", func(t *testing.T) {
		mustValidate(t, rp(nil, "Bob"), "AUC-118")
	})
	t.Run("AuctioneerNotParticipating", func(t *testing.T) {
		a := openAuction()
		a.Participants = []string{"Bob"}
		p := build(t, tx.NewBuilder("Notary").
			AddOutput(a.Body()).
			WithCommand(ActionCreate, "Alice"))
		resolved := &tx.ResolvedProposal{Proposal: p}

		// the contract rule holds on its own
		Register()
		if err := tx.ValidateRules(resolved, auctionRules()); tx.RuleID(err) != "AUC-119" {
			t.Fatalf("got %v want AUC-119", err)
		}
		// full validation refuses earlier: the signer is in no participant set
		if err := tx.Validate(resolved); tx.RuleID(err) != "TXF-VAL-017" {
			t.Fatalf("got %v want TXF-VAL-017", err)
		}
	})
	t.Run("ConsumesAuction", func(t *testing.T) {
		other := openAuction()
		other.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
		p := build(t, tx.NewBuilder("Notary").
			AddInput(other.Body().Ref()).
			AddOutput(openAuction().Body()).
			WithCommand(ActionCreate, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:    p,
			InputBodies: []tx.StateBody{other.Body()},
		}, "AUC-111")
	})
	t.Run("TwoOutputs", func(t *testing.T) {
		other := openAuction()
		other.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
		p := build(t, tx.NewBuilder("Notary").
			AddOutput(openAuction().Body()).
			AddOutput(other.Body()).
			WithCommand(ActionCreate, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{Proposal: p}, "AUC-112")
	})
	t.Run("WrongAction", func(t *testing.T) {
		p := build(t, tx.NewBuilder("Notary").
			AddOutput(openAuction().Body()).
			WithCommand(ActionBid, "Bob"))
		mustValidate(t, &tx.ResolvedProposal{Proposal: p}, "AUC-100")
	})
}

func TestBidRules(t *testing.T) {
	rp := func(mutateBid func(*Bid), mutateAuction func(*State), signers ...string) *tx.ResolvedProposal {
		a := openAuction()
		if mutateAuction != nil {
			mutateAuction(&a)
		}
		bid := openingBid("Bob", 150)
		if mutateBid != nil {
			mutateBid(&bid)
		}
		if len(signers) == 0 {
			signers = []string{bid.Bidder}
		}
		p := build(t, tx.NewBuilder("Notary").
			AddReference(tx.LinkedReference{ID: a.LinearID, ExpectedKind: KindAuction}).
			AddOutput(bid.Body()).
			WithCommand(ActionBid, signers...))
		return &tx.ResolvedProposal{
			Proposal:        p,
			ReferenceBodies: []tx.StateBody{a.Body()},
		}
	}

	t.Run("AcceptsOpeningBid", func(t *testing.T) {
		mustValidate(t, rp(nil, nil), "")
	})
	t.Run("AuctionClosed", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.Active = false }), "AUC-213")
	})
	t.Run("ForeignLineage", func(t *testing.T) {
		mustValidate(t, rp(func(b *Bid) {
			b.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
		}, nil), "AUC-214")
	})
	t.Run("BelowBasePrice", func(t *testing.T) {
		mustValidate(t, rp(func(b *Bid) { b.Amount = 50 }, nil), "AUC-215")
	})
	t.Run("AuctioneerBidding", func(t *testing.T) {
		mustValidate(t, rp(func(b *Bid) { b.Bidder = "Alice" }, nil), "AUC-216")
	})
	t.Run("BidderNotSigning", func(t *testing.T) {
		mustValidate(t, rp(nil, nil, "Charlie"), "AUC-217")
	})
	t.Run("BidderNotParticipating", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) {
			a.Participants = []string{"Alice", "Charlie"}
		}), "AUC-218")
	})
	t.Run("OpeningBidNotVersionOne", func(t *testing.T) {
		mustValidate(t, rp(func(b *Bid) { b.Version = 2 }, nil), "AUC-219")
	})
	t.Run("NoAuctionReference", func(t *testing.T) {
		p := build(t, tx.NewBuilder("Notary").
			AddOutput(openingBid("Bob", 150).Body()).
			WithCommand(ActionBid, "Bob"))
		mustValidate(t, &tx.ResolvedProposal{Proposal: p}, "AUC-212")
	})

	outbid := func(prevAmount, nextAmount uint64) *tx.ResolvedProposal {
		a := openAuction()
		prev := openingBid("Bob", prevAmount)
		next := openingBid("Charlie", nextAmount)
		next.Version = 2
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddReference(tx.LinkedReference{ID: a.LinearID, ExpectedKind: KindAuction}).
			AddOutput(next.Body()).
			WithCommand(ActionBid, "Charlie"))
		return &tx.ResolvedProposal{
			Proposal:        p,
			InputBodies:     []tx.StateBody{prev.Body()},
			ReferenceBodies: []tx.StateBody{a.Body()},
		}
	}
	t.Run("AcceptsOutbid", func(t *testing.T) {
		mustValidate(t, outbid(150, 200), "")
	})
	t.Run("DoesNotOutbid", func(t *testing.T) {
		mustValidate(t, outbid(150, 150), "AUC-221")
	})
	t.Run("ConsumesForeignBid", func(t *testing.T) {
		a := openAuction()
		prev := openingBid("Bob", 150)
		prev.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
		next := openingBid("Charlie", 200)
		next.Version = 1
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddReference(tx.LinkedReference{ID: a.LinearID, ExpectedKind: KindAuction}).
			AddOutput(next.Body()).
			WithCommand(ActionBid, "Charlie"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:        p,
			InputBodies:     []tx.StateBody{prev.Body()},
			ReferenceBodies: []tx.StateBody{a.Body()},
		}, "AUC-220")
	})
	t.Run("ConsumedByCreate", func(t *testing.T) {
		prev := openingBid("Bob", 150)
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddOutput(openAuction().Body()).
			WithCommand(ActionCreate, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:    p,
			InputBodies: []tx.StateBody{prev.Body()},
		}, "AUC-200")
	})
}

func TestCloseRules(t *testing.T) {
	closedAt := deadline.Add(time.Minute)

	rp := func(mutatePrev, mutateNext func(*State), signers ...string) *tx.ResolvedProposal {
		prev := openAuction()
		if mutatePrev != nil {
			mutatePrev(&prev)
		}
		winner := openingBid("Bob", 250)
		next := prev
		next.Version = prev.Version + 1
		next.Active = false
		next.ClosedAt = closedAt
		next.HighestBid = winner.Amount
		next.HighestBidder = winner.Bidder
		if mutateNext != nil {
			mutateNext(&next)
		}
		if len(signers) == 0 {
			signers = []string{"Alice"}
		}
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddReference(tx.LinkedReference{ID: winner.LinearID, ExpectedKind: KindBid}).
			AddOutput(next.Body()).
			WithCommand(ActionClose, signers...))
		return &tx.ResolvedProposal{
			Proposal:        p,
			InputBodies:     []tx.StateBody{prev.Body()},
			ReferenceBodies: []tx.StateBody{winner.Body()},
		}
	}

	t.Run("Accepts", func(t *testing.T) {
		mustValidate(t, rp(nil, nil), "")
	})
	t.Run("ForeignLineage", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) {
			a.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
			a.Version = 1
		}), "AUC-132")
	})
	t.Run("AlreadyClosed", func(t *testing.T) {
		mustValidate(t, rp(func(a *State) { a.Active = false }, func(a *State) { a.HighestBid = 0; a.HighestBidder = "" }), "AUC-133")
	})
	t.Run("StillActive", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.Active = true }), "AUC-134")
	})
	t.Run("RewritesTerms", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.BasePrice = 1 }), "AUC-135")
	})
	t.Run("BeforeDeadline", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.ClosedAt = a.BidDeadline }), "AUC-136")
	})
	t.Run("NoClosingTime", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.ClosedAt = time.Time{} }), "AUC-136")
	})
	t.Run("AuctioneerNotSigning", func(t *testing.T) {
		mustValidate(t, rp(nil, nil, "Bob"), "AUC-137")
	})
	t.Run("ForeignWinningBid", func(t *testing.T) {
		prev := openAuction()
		next := prev
		next.Version = 2
		next.Active = false
		next.ClosedAt = closedAt
		next.HighestBid = 250
		next.HighestBidder = "Bob"
		winner := openingBid("Bob", 250)
		winner.LinearID = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddReference(tx.LinkedReference{ID: winner.LinearID, ExpectedKind: KindBid}).
			AddOutput(next.Body()).
			WithCommand(ActionClose, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:        p,
			InputBodies:     []tx.StateBody{prev.Body()},
			ReferenceBodies: []tx.StateBody{winner.Body()},
		}, "AUC-139")
	})
	t.Run("WinnerNotRecorded", func(t *testing.T) {
		mustValidate(t, rp(nil, func(a *State) { a.HighestBid = 99 }), "AUC-140")
	})

	t.Run("NoBidsRecordsNoWinner", func(t *testing.T) {
		prev := openAuction()
		next := prev
		next.Version = 2
		next.Active = false
		next.ClosedAt = closedAt
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddOutput(next.Body()).
			WithCommand(ActionClose, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:    p,
			InputBodies: []tx.StateBody{prev.Body()},
		}, "")

		next.HighestBid = 10
		next.HighestBidder = "Bob"
		p = build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			AddOutput(next.Body()).
			WithCommand(ActionClose, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:    p,
			InputBodies: []tx.StateBody{prev.Body()},
		}, "AUC-138")
	})
	t.Run("NoOutput", func(t *testing.T) {
		prev := openAuction()
		p := build(t, tx.NewBuilder("Notary").
			AddInput(prev.Body().Ref()).
			WithCommand(ActionClose, "Alice"))
		mustValidate(t, &tx.ResolvedProposal{
			Proposal:    p,
			InputBodies: []tx.StateBody{prev.Body()},
		}, "AUC-131")
	})
}
