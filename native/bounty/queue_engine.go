package bounty

import (
	"math/big"

	"stakemarket/core/types"
	"stakemarket/ledger"
	"stakemarket/native/fees"
	"stakemarket/native/registry"
)

// QueueEngine generalizes the baseline engine to a bounded FIFO submission
// queue. Rejected payloads are barred per bounty rather than globally, and
// the maker fee is pulled on top of the funded amount instead of being
// deducted from it.
type QueueEngine struct {
	core
}

// NewQueueEngine validates the settings, including the queue capacity and
// minimum bounty floor, and probes the ledger before returning.
func NewQueueEngine(reg *registry.Registry, led ledger.Ledger, settings Settings) (*QueueEngine, error) {
	c, err := newCore(reg, led, settings, Settings.validateQueue)
	if err != nil {
		return nil, err
	}
	return &QueueEngine{core: c}, nil
}

// FundBounty escrows the full reward amount and pulls the maker fee on top
// of it, so the credited pool equals the requested amount exactly.
func (e *QueueEngine) FundBounty(caller types.Address, id uint64, amount *big.Int) (*Bounty, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.settings.AcceptingBounties {
		return nil, ErrNotAcceptingBounties
	}
	if _, ok := e.state.BountyGet(id); ok {
		return nil, ErrBountyFunded
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if amt.Cmp(e.settings.MinimumBounty) < 0 {
		return nil, ErrBountyBelowFloor
	}
	fee := fees.Amount(amt, e.settings.MakerFeeBps)
	total := new(big.Int).Add(amt, fee)
	if err := e.ledger.TransferFrom(caller, total); err != nil {
		return nil, err
	}
	if err := e.accrue(fee); err != nil {
		return nil, err
	}
	now := e.now()
	b := &Bounty{
		ID:            id,
		Funder:        caller,
		Amount:        amt,
		InitialAmount: cloneBigInt(amt),
		FundedAt:      now,
		ExpiresAt:     now + e.settings.BountyDuration,
	}
	if err := e.storeBounty(b); err != nil {
		return nil, err
	}
	e.emit(NewBountyFundedEvent(b))
	e.telemetry.ObserveBountyFunded("v2")
	return b.Clone(), nil
}

// MakeSubmission appends a staked payload commitment to the FIFO queue.
// Duplicate payloads are not deduplicated: each submission occupies its own
// slot and stakes afresh.
func (e *QueueEngine) MakeSubmission(caller types.Address, id uint64, payload [32]byte) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if b.Closed {
		return ErrBountyClosed
	}
	if b.expired(e.now()) {
		return ErrBountyExpired
	}
	if e.registry.IsApprover(caller) {
		return ErrApproverSubmission
	}
	if e.state.PayloadRejected(id, payload) {
		return ErrPayloadRejected
	}
	if len(b.Queue) >= e.settings.MaxActiveSubmissions {
		return ErrQueueFull
	}
	stake := cloneBigInt(e.settings.SubmissionStake)
	if err := e.ledger.TransferFrom(caller, stake); err != nil {
		return err
	}
	sub := Submission{PayloadHash: payload, Submitter: caller, Stake: stake}
	b.Queue = append(b.Queue, sub)
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(NewSubmissionMadeEvent(b, sub))
	e.telemetry.ObserveSubmission("pending")
	return nil
}

// ApproveSubmission matches the revealed submission ID against the queue,
// settles the pool to the matching submitter, and refunds every other
// queued stake unexamined before closing the bounty.
func (e *QueueEngine) ApproveSubmission(caller types.Address, id uint64, submissionID uint64) error {
	if err := e.registry.RequireApprover(caller); err != nil {
		return err
	}
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if b.Closed {
		return ErrBountyClosed
	}
	match := -1
	for i, queued := range b.Queue {
		if PayloadCommitment(submissionID, queued.Submitter) == queued.PayloadHash {
			match = i
			break
		}
	}
	if match < 0 {
		return ErrSubmissionNotFound
	}
	sub := b.Queue[match]
	if caller == sub.Submitter {
		return ErrSelfArbitration
	}
	takerFee := fees.Amount(b.Amount, e.settings.TakerFeeBps)
	payout := new(big.Int).Sub(b.Amount, takerFee)
	payout.Add(payout, sub.Stake)
	if err := e.ledger.Transfer(sub.Submitter, payout); err != nil {
		return err
	}
	refunded := 0
	for i, queued := range b.Queue {
		if i == match {
			continue
		}
		if err := e.ledger.Transfer(queued.Submitter, queued.Stake); err != nil {
			return err
		}
		refunded++
	}
	if err := e.accrue(takerFee); err != nil {
		return err
	}
	b.Amount = big.NewInt(0)
	b.Queue = nil
	b.Closed = true
	b.ApprovedPayload = sub.PayloadHash
	b.ApprovedSubmitter = sub.Submitter
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(NewSubmissionApprovedEvent(b, sub, payout))
	if refunded > 0 {
		e.emit(NewSubmissionsRefundedEvent(b, refunded))
	}
	e.telemetry.ObserveSubmission("approved")
	return nil
}

// RejectSubmissions forfeits the oldest count stakes into the reward pool,
// net of the maker fee each, and bars their payloads for this bounty.
func (e *QueueEngine) RejectSubmissions(caller types.Address, id uint64, count int) error {
	if err := e.registry.RequireApprover(caller); err != nil {
		return err
	}
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if b.Closed {
		return ErrBountyClosed
	}
	if count <= 0 || count > len(b.Queue) {
		return ErrInvalidCount
	}
	for _, queued := range b.Queue[:count] {
		if caller == queued.Submitter {
			return ErrSelfArbitration
		}
	}
	rejected := b.Queue[:count]
	for _, queued := range rejected {
		fee := fees.Amount(queued.Stake, e.settings.MakerFeeBps)
		b.Amount.Add(b.Amount, new(big.Int).Sub(queued.Stake, fee))
		if err := e.accrue(fee); err != nil {
			return err
		}
		if err := e.state.RejectPayload(id, queued.PayloadHash); err != nil {
			return err
		}
	}
	b.Queue = append([]Submission(nil), b.Queue[count:]...)
	if err := e.storeBounty(b); err != nil {
		return err
	}
	for _, queued := range rejected {
		e.emit(NewSubmissionRejectedEvent(b, queued))
		e.telemetry.ObserveSubmission("rejected")
	}
	return nil
}

// CloseBounty returns the funding snapshot to the funder; pool growth from
// forfeited stakes accrues as fees. Every queued submission must have been
// resolved first.
func (e *QueueEngine) CloseBounty(caller types.Address, id uint64) error {
	b, err := e.loadBounty(id)
	if err != nil {
		return err
	}
	if b.Closed {
		return ErrBountyClosed
	}
	if len(b.Queue) > 0 {
		return ErrSubmissionActive
	}
	if err := e.requireCloseAuthority(caller, b); err != nil {
		return err
	}
	payout := cloneBigInt(b.InitialAmount)
	surplus := new(big.Int).Sub(b.Amount, payout)
	if err := e.ledger.Transfer(b.Funder, payout); err != nil {
		return err
	}
	if err := e.accrue(surplus); err != nil {
		return err
	}
	b.Amount = big.NewInt(0)
	b.Closed = true
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(NewBountyClosedEvent(b, payout))
	return nil
}

// WithdrawFees burns the accrued fees, crediting the configured receiver.
// Owner-only.
func (e *QueueEngine) WithdrawFees(caller types.Address) (*big.Int, error) {
	return e.withdrawFees(caller)
}

// PayloadRejected reports whether a payload has been barred for the bounty.
func (e *QueueEngine) PayloadRejected(id uint64, payload [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.PayloadRejected(id, payload)
}

// ApprovedSubmission returns the approved payload commitment, or the zero
// hash when no submission has been approved.
func (e *QueueEngine) ApprovedSubmission(id uint64) ([32]byte, error) {
	b, err := e.loadBounty(id)
	if err != nil {
		return [32]byte{}, err
	}
	return b.ApprovedPayload, nil
}

// SubmissionQueuePosition returns the queue index, oldest first, of the
// entry whose payload commits to the revealed submission ID.
func (e *QueueEngine) SubmissionQueuePosition(id uint64, submissionID uint64) (int, error) {
	b, err := e.loadBounty(id)
	if err != nil {
		return 0, err
	}
	for i, queued := range b.Queue {
		if PayloadCommitment(submissionID, queued.Submitter) == queued.PayloadHash {
			return i, nil
		}
	}
	return 0, ErrSubmissionNotFound
}

func (e *QueueEngine) SetMakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.MakerFeeBps = bps })
}

func (e *QueueEngine) SetTakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.TakerFeeBps = bps })
}

func (e *QueueEngine) SetSubmissionStake(caller types.Address, stake *big.Int) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.SubmissionStake = cloneBigInt(stake) })
}

func (e *QueueEngine) SetBountyDuration(caller types.Address, seconds int64) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.BountyDuration = seconds })
}

func (e *QueueEngine) SetFeeReceiver(caller types.Address, receiver types.Address) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.FeeReceiver = receiver })
}

func (e *QueueEngine) SetAcceptingBounties(caller types.Address, accepting bool) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.AcceptingBounties = accepting })
}

func (e *QueueEngine) SetMaxActiveSubmissions(caller types.Address, capacity int) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.MaxActiveSubmissions = capacity })
}

func (e *QueueEngine) SetMinimumBounty(caller types.Address, floor *big.Int) error {
	return e.updateSettings(caller, Settings.validateQueue, func(s *Settings) { s.MinimumBounty = cloneBigInt(floor) })
}
