// Package bounty implements the funded-task settlement engines: a funder
// escrows a reward pool, hunters stake to submit hash-committed work, and
// approvers arbitrate. The baseline Engine holds a single pending
// submission; QueueEngine generalizes it to a bounded FIFO queue.
package bounty

import (
	"errors"
	"math/big"
	"time"

	"stakemarket/core/events"
	"stakemarket/core/types"
	"stakemarket/ledger"
	"stakemarket/native/fees"
	"stakemarket/native/registry"
	"stakemarket/observability/metrics"
)

var (
	errNilState              = errors.New("bounty engine: state not configured")
	ErrNoRegistry            = errors.New("bounty: registry not configured")
	ErrNoLedger              = errors.New("bounty: ledger not configured")
	ErrNotACompliantToken    = errors.New("bounty: ledger does not report a positive total supply")
	ErrNotAcceptingBounties  = errors.New("bounty: not accepting new bounties")
	ErrBountyNotFound        = errors.New("bounty: bounty not found")
	ErrBountyFunded          = errors.New("bounty: bounty already funded")
	ErrBountyClosed          = errors.New("bounty: bounty closed")
	ErrBountyExpired         = errors.New("bounty: bounty expired")
	ErrZeroAmount            = errors.New("bounty: amount must be positive")
	ErrBountyBelowFloor      = errors.New("bounty: funding amount below required floor")
	ErrApproverSubmission    = errors.New("bounty: approvers may not submit")
	ErrPayloadRejected       = errors.New("bounty: payload permanently rejected")
	ErrSubmissionAlreadyMade = errors.New("bounty: submission already made")
	ErrSubmissionPending     = errors.New("bounty: a submission is already pending")
	ErrQueueFull             = errors.New("bounty: submission queue at capacity")
	ErrNoSubmission          = errors.New("bounty: no submission to arbitrate")
	ErrSubmissionNotFound    = errors.New("bounty: submission not found")
	ErrSelfArbitration       = errors.New("bounty: cannot arbitrate own submission")
	ErrHashMismatch          = errors.New("bounty: submission id does not match payload commitment")
	ErrSubmissionActive      = errors.New("bounty: active submission must be resolved first")
	ErrUnauthorizedClose     = errors.New("bounty: caller may not close this bounty")
	ErrNoAccruedFees         = errors.New("bounty: no accrued fees to withdraw")
	ErrInvalidCount          = errors.New("bounty: reject count out of range")
)

type bountyEvent struct {
	evt *types.Event
}

func (e bountyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bountyEvent) Event() *types.Event { return e.evt }

// core carries the wiring shared by both engine generations.
type core struct {
	state     engineState
	emitter   events.Emitter
	registry  *registry.Registry
	ledger    ledger.Ledger
	settings  Settings
	telemetry *metrics.MarketMetrics
	nowFn     func() int64
}

func newCore(reg *registry.Registry, led ledger.Ledger, settings Settings, validate func(Settings) error) (core, error) {
	if reg == nil {
		return core{}, ErrNoRegistry
	}
	if led == nil {
		return core{}, ErrNoLedger
	}
	if supply := led.TotalSupply(); supply == nil || supply.Sign() <= 0 {
		return core{}, ErrNotACompliantToken
	}
	if err := validate(settings); err != nil {
		return core{}, err
	}
	settings.SubmissionStake = cloneBigInt(settings.SubmissionStake)
	settings.MinimumBounty = cloneBigInt(settings.MinimumBounty)
	return core{
		registry:  reg,
		ledger:    led,
		settings:  settings,
		emitter:   events.NoopEmitter{},
		telemetry: metrics.Market(),
		nowFn:     func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the state backend used by the engine.
func (c *core) SetState(state engineState) { c.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (c *core) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (c *core) SetNowFunc(now func() int64) {
	if now == nil {
		c.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	c.nowFn = now
}

func (c *core) emit(event *types.Event) {
	if c == nil || c.emitter == nil || event == nil {
		return
	}
	c.emitter.Emit(bountyEvent{evt: event})
}

func (c *core) now() int64 {
	if c == nil || c.nowFn == nil {
		return time.Now().Unix()
	}
	return c.nowFn()
}

func (c *core) loadBounty(id uint64) (*Bounty, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	b, ok := c.state.BountyGet(id)
	if !ok {
		return nil, ErrBountyNotFound
	}
	return b, nil
}

func (c *core) storeBounty(b *Bounty) error {
	if c == nil || c.state == nil {
		return errNilState
	}
	return c.state.BountyPut(b)
}

func (c *core) accrue(fee *big.Int) error {
	if fee.Sign() <= 0 {
		return nil
	}
	accrued := c.state.AccruedFees()
	return c.state.SetAccruedFees(accrued.Add(accrued, fee))
}

// requireCloseAuthority enforces the close policy: approver-only before
// expiry, funder or approver after.
func (c *core) requireCloseAuthority(caller types.Address, b *Bounty) error {
	if !b.expired(c.now()) {
		return c.registry.RequireApprover(caller)
	}
	if caller != b.Funder && !c.registry.IsApprover(caller) {
		return ErrUnauthorizedClose
	}
	return nil
}

// withdrawFees burns the accrual through the ledger, crediting the
// configured receiver. This engine family burns where the auction transfers.
func (c *core) withdrawFees(caller types.Address) (*big.Int, error) {
	if c == nil || c.state == nil {
		return nil, errNilState
	}
	if err := c.registry.RequireOwner(caller); err != nil {
		return nil, err
	}
	accrued := c.state.AccruedFees()
	if accrued.Sign() == 0 {
		return nil, ErrNoAccruedFees
	}
	if err := c.ledger.Burn(c.settings.FeeReceiver, accrued); err != nil {
		return nil, err
	}
	if err := c.state.SetAccruedFees(big.NewInt(0)); err != nil {
		return nil, err
	}
	c.emit(NewFeesBurnedEvent(c.settings.FeeReceiver, accrued))
	c.telemetry.ObserveFeesWithdrawn("bounty")
	return accrued, nil
}

// GetBounty returns a copy of the bounty record.
func (c *core) GetBounty(id uint64) (*Bounty, error) {
	b, err := c.loadBounty(id)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// HasBounty reports whether the bounty exists.
func (c *core) HasBounty(id uint64) bool {
	if c == nil || c.state == nil {
		return false
	}
	_, ok := c.state.BountyGet(id)
	return ok
}

// SubmissionCount returns the number of active submissions.
func (c *core) SubmissionCount(id uint64) (int, error) {
	b, err := c.loadBounty(id)
	if err != nil {
		return 0, err
	}
	return len(b.Queue), nil
}

// SubmissionAt returns the queued submission at the given position, oldest
// first.
func (c *core) SubmissionAt(id uint64, position int) (Submission, error) {
	b, err := c.loadBounty(id)
	if err != nil {
		return Submission{}, err
	}
	if position < 0 || position >= len(b.Queue) {
		return Submission{}, ErrSubmissionNotFound
	}
	return b.Queue[position].Clone(), nil
}

// AccruedFees returns the undistributed fee balance.
func (c *core) AccruedFees() *big.Int {
	if c == nil || c.state == nil {
		return big.NewInt(0)
	}
	return c.state.AccruedFees()
}

// SettingsSnapshot returns a copy of the live configuration.
func (c *core) SettingsSnapshot() Settings {
	out := c.settings
	out.SubmissionStake = cloneBigInt(c.settings.SubmissionStake)
	out.MinimumBounty = cloneBigInt(c.settings.MinimumBounty)
	return out
}

func (c *core) updateSettings(caller types.Address, validate func(Settings) error, mutate func(*Settings)) error {
	if err := c.registry.RequireOwner(caller); err != nil {
		return err
	}
	next := c.SettingsSnapshot()
	mutate(&next)
	if err := validate(next); err != nil {
		return err
	}
	c.settings = next
	return nil
}

// Engine is the baseline bounty engine: at most one pending submission per
// bounty, and a rejected payload is barred globally across all bounties.
type Engine struct {
	core
}

// NewEngine validates the settings and probes the ledger for ERC20-style
// compliance before returning a usable engine.
func NewEngine(reg *registry.Registry, led ledger.Ledger, settings Settings) (*Engine, error) {
	c, err := newCore(reg, led, settings, Settings.Validate)
	if err != nil {
		return nil, err
	}
	return &Engine{core: c}, nil
}

// FundBounty escrows the reward pool. The maker fee is deducted from the
// funded amount, and the remainder must still cover the submission stake.
func (e *Engine) FundBounty(caller types.Address, id uint64, amount *big.Int) (*Bounty, error) {
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
	fee := fees.Amount(amt, e.settings.MakerFeeBps)
	net := new(big.Int).Sub(amt, fee)
	if net.Cmp(e.settings.SubmissionStake) < 0 {
		return nil, ErrBountyBelowFloor
	}
	if err := e.ledger.TransferFrom(caller, amt); err != nil {
		return nil, err
	}
	if err := e.accrue(fee); err != nil {
		return nil, err
	}
	now := e.now()
	b := &Bounty{
		ID:            id,
		Funder:        caller,
		Amount:        net,
		InitialAmount: cloneBigInt(net),
		FundedAt:      now,
		ExpiresAt:     now + e.settings.BountyDuration,
	}
	if err := e.storeBounty(b); err != nil {
		return nil, err
	}
	e.emit(NewBountyFundedEvent(b))
	e.telemetry.ObserveBountyFunded("v1")
	return b.Clone(), nil
}

// MakeSubmission stakes a payload commitment against the bounty. Only one
// submission may be pending: re-staking the identical commitment and any
// second submission while one is pending are both conflicts.
func (e *Engine) MakeSubmission(caller types.Address, id uint64, payload [32]byte) error {
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
	if e.state.PayloadRejected(0, payload) {
		return ErrPayloadRejected
	}
	if len(b.Queue) > 0 {
		pending := b.Queue[0]
		if pending.Submitter == caller && pending.PayloadHash == payload {
			return ErrSubmissionAlreadyMade
		}
		return ErrSubmissionPending
	}
	stake := cloneBigInt(e.settings.SubmissionStake)
	if err := e.ledger.TransferFrom(caller, stake); err != nil {
		return err
	}
	sub := Submission{PayloadHash: payload, Submitter: caller, Stake: stake}
	b.Queue = []Submission{sub}
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(NewSubmissionMadeEvent(b, sub))
	e.telemetry.ObserveSubmission("pending")
	return nil
}

// ApproveSubmission reveals the plaintext submission ID, validates it
// against the committed payload hash, and settles the bounty to the
// submitter: the reward pool less the taker fee, plus the returned stake.
// Approval closes the bounty.
func (e *Engine) ApproveSubmission(caller types.Address, id uint64, submissionID uint64) error {
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
	if len(b.Queue) == 0 {
		return ErrNoSubmission
	}
	sub := b.Queue[0]
	if caller == sub.Submitter {
		return ErrSelfArbitration
	}
	if PayloadCommitment(submissionID, sub.Submitter) != sub.PayloadHash {
		return ErrHashMismatch
	}
	takerFee := fees.Amount(b.Amount, e.settings.TakerFeeBps)
	payout := new(big.Int).Sub(b.Amount, takerFee)
	payout.Add(payout, sub.Stake)
	if err := e.ledger.Transfer(sub.Submitter, payout); err != nil {
		return err
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
	e.telemetry.ObserveSubmission("approved")
	return nil
}

// RejectSubmission forfeits the pending stake into the reward pool, net of
// the maker fee, and bars the payload permanently across all bounties.
func (e *Engine) RejectSubmission(caller types.Address, id uint64) error {
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
	if len(b.Queue) == 0 {
		return ErrNoSubmission
	}
	sub := b.Queue[0]
	if caller == sub.Submitter {
		return ErrSelfArbitration
	}
	fee := fees.Amount(sub.Stake, e.settings.MakerFeeBps)
	b.Amount.Add(b.Amount, new(big.Int).Sub(sub.Stake, fee))
	if err := e.accrue(fee); err != nil {
		return err
	}
	if err := e.state.RejectPayload(0, sub.PayloadHash); err != nil {
		return err
	}
	b.Queue = nil
	if err := e.storeBounty(b); err != nil {
		return err
	}
	e.emit(NewSubmissionRejectedEvent(b, sub))
	e.telemetry.ObserveSubmission("rejected")
	return nil
}

// CloseBounty returns the funding snapshot to the funder; any pool growth
// from forfeited stakes accrues as fees. All submissions must be resolved
// first. Approver-only before expiry; funder or approver afterwards.
func (e *Engine) CloseBounty(caller types.Address, id uint64) error {
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
func (e *Engine) WithdrawFees(caller types.Address) (*big.Int, error) {
	return e.withdrawFees(caller)
}

// PayloadRejectedGlobally reports whether a payload has been barred.
func (e *Engine) PayloadRejectedGlobally(payload [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.PayloadRejected(0, payload)
}

// IsValidCurrentSubmission reports whether the pending submission's payload
// commits to the revealed submission ID.
func (e *Engine) IsValidCurrentSubmission(id uint64, submissionID uint64) (bool, error) {
	b, err := e.loadBounty(id)
	if err != nil {
		return false, err
	}
	if len(b.Queue) == 0 {
		return false, ErrNoSubmission
	}
	pending := b.Queue[0]
	return PayloadCommitment(submissionID, pending.Submitter) == pending.PayloadHash, nil
}

// ApprovedSubmission reports whether the bounty was settled by approving
// the submission with the revealed ID.
func (e *Engine) ApprovedSubmission(id uint64, submissionID uint64) (bool, error) {
	b, err := e.loadBounty(id)
	if err != nil {
		return false, err
	}
	if b.ApprovedPayload == ([32]byte{}) {
		return false, nil
	}
	return PayloadCommitment(submissionID, b.ApprovedSubmitter) == b.ApprovedPayload, nil
}

func (e *Engine) SetMakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.MakerFeeBps = bps })
}

func (e *Engine) SetTakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.TakerFeeBps = bps })
}

func (e *Engine) SetSubmissionStake(caller types.Address, stake *big.Int) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.SubmissionStake = cloneBigInt(stake) })
}

func (e *Engine) SetBountyDuration(caller types.Address, seconds int64) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.BountyDuration = seconds })
}

func (e *Engine) SetFeeReceiver(caller types.Address, receiver types.Address) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.FeeReceiver = receiver })
}

func (e *Engine) SetAcceptingBounties(caller types.Address, accepting bool) error {
	return e.updateSettings(caller, Settings.Validate, func(s *Settings) { s.AcceptingBounties = accepting })
}
