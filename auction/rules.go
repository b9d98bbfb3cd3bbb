package auction

import (
	"xdao.co/txfin/tx"
)

// Register installs the auction and bid contract rule sets. Call once at
// process start, before any validation runs.
func Register() {
	tx.RegisterContract(KindAuction, auctionRules())
	tx.RegisterContract(KindBid, bidRules())
}

func violation(ruleID, msg string) error {
	return tx.NewError(tx.KindViolation, ruleID, msg)
}

// auctionRules govern transitions that consume or produce auction states:
// creation and closing. Bids only reference the auction and are governed by
// the bid contract.
func auctionRules() []tx.Rule {
	return []tx.Rule{
		{ID: "AUC-100", Apply: func(rp *tx.ResolvedProposal) error {
			switch rp.Proposal.Command.Action {
			case ActionCreate, ActionClose:
				return nil
			}
			return violation("AUC-100", "action "+rp.Proposal.Command.Action+" may not consume or produce auction states")
		}},
		{ID: "AUC-110", Apply: func(rp *tx.ResolvedProposal) error {
			if rp.Proposal.Command.Action != ActionCreate {
				return nil
			}
			return validateCreate(rp)
		}},
		{ID: "AUC-130", Apply: func(rp *tx.ResolvedProposal) error {
			if rp.Proposal.Command.Action != ActionClose {
				return nil
			}
			return validateClose(rp)
		}},
	}
}

func validateCreate(rp *tx.ResolvedProposal) error {
	if len(rp.InputsOfKind(KindAuction)) != 0 {
		return violation("AUC-111", "creation consumes no auction states")
	}
	outs := rp.OutputsOfKind(KindAuction)
	if len(outs) != 1 || len(rp.Proposal.Outputs) != 1 {
		return violation("AUC-112", "creation produces exactly one auction state")
	}
	a, err := FromBody(outs[0])
	if err != nil {
		return err
	}
	if a.Version != 1 {
		return violation("AUC-113", "created auction must be version 1")
	}
	if !a.Active {
		return violation("AUC-114", "created auction must be active")
	}
	if a.BasePrice == 0 {
		return violation("AUC-115", "base price must be positive")
	}
	if !a.BidDeadline.After(a.CreatedAt) {
		return violation("AUC-116", "bid deadline must follow creation time")
	}
	if a.HighestBid != 0 || a.HighestBidder != "" {
		return violation("AUC-117", "created auction carries no bid")
	}
	if !signerRequired(rp, a.Auctioneer) {
		return violation("AUC-118", "auctioneer "+a.Auctioneer+" must sign the creation")
	}
	if !outs[0].HasParticipant(a.Auctioneer) {
		return violation("AUC-119", "auctioneer must be an auction participant")
	}
	return nil
}

func validateClose(rp *tx.ResolvedProposal) error {
	ins := rp.InputsOfKind(KindAuction)
	outs := rp.OutputsOfKind(KindAuction)
	if len(ins) != 1 || len(outs) != 1 {
		return violation("AUC-131", "closing consumes one auction state and produces one")
	}
	prev, err := FromBody(ins[0])
	if err != nil {
		return err
	}
	next, err := FromBody(outs[0])
	if err != nil {
		return err
	}
	if next.LinearID != prev.LinearID {
		return violation("AUC-132", "closing must amend the consumed auction lineage")
	}
	if !prev.Active {
		return violation("AUC-133", "auction is already closed")
	}
	if next.Active {
		return violation("AUC-134", "closed auction must be inactive")
	}
	if next.Auctioneer != prev.Auctioneer || next.BidLineage != prev.BidLineage ||
		next.BasePrice != prev.BasePrice || !next.BidDeadline.Equal(prev.BidDeadline) {
		return violation("AUC-135", "closing may not rewrite auction terms")
	}
	if next.ClosedAt.IsZero() || !next.ClosedAt.After(prev.BidDeadline) {
		return violation("AUC-136", "auction closes only after the bid deadline")
	}
	if !signerRequired(rp, prev.Auctioneer) {
		return violation("AUC-137", "auctioneer "+prev.Auctioneer+" must sign the closing")
	}

	bids := rp.ReferencesOfKind(KindBid)
	switch len(bids) {
	case 0:
		if next.HighestBid != 0 || next.HighestBidder != "" {
			return violation("AUC-138", "closing without bids records no winner")
		}
	case 1:
		winner, err := BidFromBody(bids[0])
		if err != nil {
			return err
		}
		if winner.LinearID != prev.BidLineage || winner.Auction != prev.LinearID {
			return violation("AUC-139", "referenced bid does not belong to this auction")
		}
		if next.HighestBid != winner.Amount || next.HighestBidder != winner.Bidder {
			return violation("AUC-140", "closed auction must record the referenced bid as winner")
		}
	default:
		return violation("AUC-141", "closing references at most one bid")
	}
	return nil
}

// bidRules govern bid lineage advances. The auction itself is referenced,
// never consumed, so bidding does not serialize on the auction lineage.
func bidRules() []tx.Rule {
	return []tx.Rule{
		{ID: "AUC-200", Apply: func(rp *tx.ResolvedProposal) error {
			switch rp.Proposal.Command.Action {
			case ActionBid:
				return nil
			case ActionClose:
				// closing references the winning bid without consuming it
				if len(rp.InputsOfKind(KindBid)) == 0 && len(rp.OutputsOfKind(KindBid)) == 0 {
					return nil
				}
			}
			return violation("AUC-200", "action "+rp.Proposal.Command.Action+" may not consume or produce bid states")
		}},
		{ID: "AUC-210", Apply: func(rp *tx.ResolvedProposal) error {
			if rp.Proposal.Command.Action != ActionBid {
				return nil
			}
			return validateBid(rp)
		}},
	}
}

func validateBid(rp *tx.ResolvedProposal) error {
	outs := rp.OutputsOfKind(KindBid)
	if len(outs) != 1 || len(rp.Proposal.Outputs) != 1 {
		return violation("AUC-211", "a bid produces exactly one bid state")
	}
	bid, err := BidFromBody(outs[0])
	if err != nil {
		return err
	}
	auctions := rp.ReferencesOfKind(KindAuction)
	if len(auctions) != 1 {
		return violation("AUC-212", "a bid references exactly one auction")
	}
	a, err := FromBody(auctions[0])
	if err != nil {
		return err
	}
	if !a.Active {
		return violation("AUC-213", "auction is closed")
	}
	if bid.Auction != a.LinearID || bid.LinearID != a.BidLineage {
		return violation("AUC-214", "bid does not belong to the referenced auction")
	}
	if bid.Amount < a.BasePrice {
		return violation("AUC-215", "bid is below the base price")
	}
	if bid.Bidder == a.Auctioneer {
		return violation("AUC-216", "the auctioneer may not bid")
	}
	if !signerRequired(rp, bid.Bidder) {
		return violation("AUC-217", "bidder "+bid.Bidder+" must sign the bid")
	}
	if !auctions[0].HasParticipant(bid.Bidder) {
		return violation("AUC-218", "bidder "+bid.Bidder+" is not an auction participant")
	}

	ins := rp.InputsOfKind(KindBid)
	switch len(ins) {
	case 0:
		if bid.Version != 1 {
			return violation("AUC-219", "the opening bid must be version 1")
		}
	case 1:
		prev, err := BidFromBody(ins[0])
		if err != nil {
			return err
		}
		if prev.LinearID != bid.LinearID {
			return violation("AUC-220", "a bid must consume its own lineage head")
		}
		if bid.Amount <= prev.Amount {
			return violation("AUC-221", "a bid must outbid the standing bid")
		}
	default:
		return violation("AUC-222", "a bid consumes at most one prior bid")
	}
	return nil
}

func signerRequired(rp *tx.ResolvedProposal, name string) bool {
	for _, s := range rp.Proposal.Command.RequiredSigners {
		if s == name {
			return true
		}
	}
	return false
}
