package bounty

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"stakemarket/core/types"
)

const (
	EventTypeBountyFunded        = "bounty.funded"
	EventTypeSubmissionMade      = "bounty.submission.made"
	EventTypeSubmissionApproved  = "bounty.submission.approved"
	EventTypeSubmissionRejected  = "bounty.submission.rejected"
	EventTypeSubmissionsRefunded = "bounty.submissions.refunded"
	EventTypeBountyClosed        = "bounty.closed"
	EventTypeFeesBurned          = "bounty.fees.burned"
)

func newBountyEvent(eventType string, b *Bounty) *types.Event {
	return &types.Event{Type: eventType, Attributes: map[string]string{
		"id":     fmt.Sprintf("%d", b.ID),
		"funder": b.Funder.Hex(),
		"amount": b.Amount.String(),
	}}
}

func NewBountyFundedEvent(b *Bounty) *types.Event {
	evt := newBountyEvent(EventTypeBountyFunded, b)
	evt.Attributes["expiresAt"] = fmt.Sprintf("%d", b.ExpiresAt)
	return evt
}

func NewSubmissionMadeEvent(b *Bounty, sub Submission) *types.Event {
	evt := newBountyEvent(EventTypeSubmissionMade, b)
	evt.Attributes["submitter"] = sub.Submitter.Hex()
	evt.Attributes["payload"] = hex.EncodeToString(sub.PayloadHash[:])
	return evt
}

func NewSubmissionApprovedEvent(b *Bounty, sub Submission, payout *big.Int) *types.Event {
	evt := newBountyEvent(EventTypeSubmissionApproved, b)
	evt.Attributes["submitter"] = sub.Submitter.Hex()
	evt.Attributes["payout"] = payout.String()
	return evt
}

func NewSubmissionRejectedEvent(b *Bounty, sub Submission) *types.Event {
	evt := newBountyEvent(EventTypeSubmissionRejected, b)
	evt.Attributes["submitter"] = sub.Submitter.Hex()
	evt.Attributes["payload"] = hex.EncodeToString(sub.PayloadHash[:])
	return evt
}

// NewSubmissionsRefundedEvent records the unexamined queue entries released
// when a sibling submission is approved.
func NewSubmissionsRefundedEvent(b *Bounty, count int) *types.Event {
	evt := newBountyEvent(EventTypeSubmissionsRefunded, b)
	evt.Attributes["count"] = fmt.Sprintf("%d", count)
	return evt
}

func NewBountyClosedEvent(b *Bounty, payout *big.Int) *types.Event {
	evt := newBountyEvent(EventTypeBountyClosed, b)
	evt.Attributes["payout"] = payout.String()
	return evt
}

func NewFeesBurnedEvent(receiver types.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeesBurned, Attributes: map[string]string{
		"receiver": receiver.Hex(),
		"amount":   amount.String(),
	}}
}
