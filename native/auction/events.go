package auction

import (
	"fmt"
	"math/big"

	"stakemarket/core/types"
)

const (
	EventTypeListingStaked   = "auction.listing.staked"
	EventTypeBidPlaced       = "auction.bid.placed"
	EventTypeBidRefunded     = "auction.bid.refunded"
	EventTypeListingBuyout   = "auction.listing.buyout"
	EventTypeListingExtended = "auction.listing.extended"
	EventTypeListingClaimed  = "auction.listing.claimed"
	EventTypeListingRejected = "auction.listing.rejected"
	EventTypeFeesWithdrawn   = "auction.fees.withdrawn"
)

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := map[string]string{
		"id":     fmt.Sprintf("%d", l.ID),
		"poster": l.Poster.Hex(),
	}
	if l.HasBid() {
		attrs["bidder"] = l.CurrentBidder.Hex()
		attrs["bidAmount"] = l.CurrentBidAmount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewListingStakedEvent is emitted once the poster's stake is in custody.
func NewListingStakedEvent(l *Listing) *types.Event {
	evt := newListingEvent(EventTypeListingStaked, l)
	evt.Attributes["closesAt"] = fmt.Sprintf("%d", l.ClosesAt)
	return evt
}

// NewBidPlacedEvent is emitted for every accepted bid, buyout included.
func NewBidPlacedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeBidPlaced, l)
}

// NewBidRefundedEvent records the superseded bidder and the full escrowed
// amount returned to them.
func NewBidRefundedEvent(l *Listing, bidder types.Address, gross *big.Int) *types.Event {
	evt := newListingEvent(EventTypeBidRefunded, l)
	evt.Attributes["refunded"] = bidder.Hex()
	evt.Attributes["amount"] = gross.String()
	return evt
}

func NewListingBuyoutEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingBuyout, l)
}

func NewListingExtendedEvent(l *Listing) *types.Event {
	evt := newListingEvent(EventTypeListingExtended, l)
	evt.Attributes["closesAt"] = fmt.Sprintf("%d", l.ClosesAt)
	return evt
}

func NewListingClaimedEvent(l *Listing, payout, fee *big.Int) *types.Event {
	evt := newListingEvent(EventTypeListingClaimed, l)
	evt.Attributes["payout"] = payout.String()
	evt.Attributes["fee"] = fee.String()
	return evt
}

func NewListingRejectedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingRejected, l)
}

func NewFeesWithdrawnEvent(receiver types.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeesWithdrawn, Attributes: map[string]string{
		"receiver": receiver.Hex(),
		"amount":   amount.String(),
	}}
}
