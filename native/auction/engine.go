// Package auction implements the stake-backed listing engine: posters stake
// to list, bidders escrow principal plus taker markup, and settlement splits
// the winning bid between poster payout and protocol fees. Execution is
// strictly serialized by the caller; the engine holds no locks.
package auction

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
	errNilState              = errors.New("auction engine: state not configured")
	ErrNoLedger              = errors.New("auction: ledger not configured")
	ErrNoRegistry            = errors.New("auction: registry not configured")
	ErrNotACompliantToken    = errors.New("auction: ledger does not report a positive total supply")
	ErrListingNotFound       = errors.New("auction: listing not found")
	ErrListingExists         = errors.New("auction: listing already exists")
	ErrListingClosed         = errors.New("auction: listing closed")
	ErrListingExpired        = errors.New("auction: listing expired")
	ErrListingOpen           = errors.New("auction: listing still open")
	ErrAlreadyWithdrawn      = errors.New("auction: listing already withdrawn")
	ErrNotAcceptingListings  = errors.New("auction: not accepting new listings")
	ErrNonBuyoutBid          = errors.New("auction: listing only accepts buyout bids")
	ErrBidBelowStarting      = errors.New("auction: bid below starting price")
	ErrBidStepTooSmall       = errors.New("auction: bid does not clear the minimum step")
	ErrZeroAmount            = errors.New("auction: amount must be positive")
	ErrStartingAboveBuyout   = errors.New("auction: starting price exceeds buyout price")
	ErrBuyoutRequired        = errors.New("auction: direct-sale listing requires a buyout price")
	ErrBuyoutBelowFloor      = errors.New("auction: buyout price below protocol minimum")
	ErrNegativeDuration      = errors.New("auction: duration must not be negative")
	ErrCooldownActive        = errors.New("auction: cannot withdraw before the cooldown elapses")
	ErrNoBid                 = errors.New("auction: listing has not been bid on")
	ErrNoWinningBid          = errors.New("auction: listing settled without a winning bid")
	ErrNoAccruedFees         = errors.New("auction: no accrued fees to withdraw")
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine wires listing transitions to the token ledger, access registry and
// persisted state. All money amounts are *big.Int; listing expiry is a lazy
// wall-clock comparison made on every call.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	registry  *registry.Registry
	ledger    ledger.Ledger
	settings  Settings
	telemetry *metrics.MarketMetrics
	nowFn     func() int64
}

// NewEngine validates the settings and probes the ledger for ERC20-style
// compliance before returning a usable engine.
func NewEngine(reg *registry.Registry, led ledger.Ledger, settings Settings) (*Engine, error) {
	if reg == nil {
		return nil, ErrNoRegistry
	}
	if led == nil {
		return nil, ErrNoLedger
	}
	if supply := led.TotalSupply(); supply == nil || supply.Sign() <= 0 {
		return nil, ErrNotACompliantToken
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	settings.ListingStake = cloneBigInt(settings.ListingStake)
	settings.MinimumBuyout = cloneBigInt(settings.MinimumBuyout)
	return &Engine{
		registry:  reg,
		ledger:    led,
		settings:  settings,
		emitter:   events.NoopEmitter{},
		telemetry: metrics.Market(),
		nowFn:     func() int64 { return time.Now().Unix() },
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	l, ok := e.state.ListingGet(id)
	if !ok {
		return nil, ErrListingNotFound
	}
	return l, nil
}

func (e *Engine) storeListing(l *Listing) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.ListingPut(l)
}

// StakeListing registers a new listing and pulls the listing stake from the
// poster. durationSeconds of zero selects the configured default; anything
// above the protocol maximum is clamped.
func (e *Engine) StakeListing(caller types.Address, id uint64, buyoutPrice, startingPrice *big.Int, durationSeconds int64, isAuction bool) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.settings.AcceptingListings {
		return nil, ErrNotAcceptingListings
	}
	if _, ok := e.state.ListingGet(id); ok {
		return nil, ErrListingExists
	}
	buyout := cloneBigInt(buyoutPrice)
	starting := cloneBigInt(startingPrice)
	if buyout.Sign() > 0 && starting.Cmp(buyout) > 0 {
		return nil, ErrStartingAboveBuyout
	}
	if !isAuction {
		if buyout.Sign() == 0 {
			return nil, ErrBuyoutRequired
		}
		if e.settings.MinimumBuyout.Sign() > 0 && buyout.Cmp(e.settings.MinimumBuyout) < 0 {
			return nil, ErrBuyoutBelowFloor
		}
	}
	if durationSeconds < 0 {
		return nil, ErrNegativeDuration
	}
	if durationSeconds == 0 {
		durationSeconds = e.settings.DefaultDuration
	}
	if durationSeconds > MaxDurationSeconds {
		durationSeconds = MaxDurationSeconds
	}
	now := e.now()
	l := &Listing{
		ID:               id,
		Poster:           caller,
		BuyoutPrice:      buyout,
		StartingPrice:    starting,
		IsAuction:        isAuction,
		Stake:            cloneBigInt(e.settings.ListingStake),
		CreatedAt:        now,
		ClosesAt:         now + durationSeconds,
		CurrentBidAmount: big.NewInt(0),
		CurrentBidGross:  big.NewInt(0),
	}
	if err := e.ledger.TransferFrom(caller, l.Stake); err != nil {
		return nil, err
	}
	if err := e.storeListing(l); err != nil {
		return nil, err
	}
	e.emit(NewListingStakedEvent(l))
	e.telemetry.ObserveListingStaked()
	return l.Clone(), nil
}

// PlaceBid escrows bid plus taker markup from the caller and refunds any
// superseded bid in full. A bid meeting a nonzero buyout price bypasses the
// step check and closes the listing immediately; otherwise a bid accepted
// inside the closing window re-extends the deadline.
func (e *Engine) PlaceBid(caller types.Address, id uint64, amount *big.Int, bidTag uint64) error {
	l, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if l.Closed || l.Withdrawn {
		return ErrListingClosed
	}
	now := e.now()
	if l.expired(now) {
		return ErrListingExpired
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrZeroAmount
	}
	buyout := l.BuyoutPrice.Sign() > 0 && amt.Cmp(l.BuyoutPrice) >= 0
	if !l.IsAuction {
		if !buyout {
			return ErrNonBuyoutBid
		}
	} else if !buyout {
		if !l.HasBid() {
			if amt.Cmp(l.StartingPrice) < 0 {
				return ErrBidBelowStarting
			}
		} else {
			min := new(big.Int).Add(l.CurrentBidAmount, fees.Amount(l.CurrentBidAmount, e.settings.MinimumStepBps))
			if min.Cmp(l.CurrentBidAmount) == 0 {
				min.Add(min, big.NewInt(1))
			}
			if amt.Cmp(min) < 0 {
				return ErrBidStepTooSmall
			}
		}
	}
	gross := fees.GrossWithTaker(amt, e.settings.TakerFeeBps)
	// The pull from the new bidder is the only transfer a caller can fail;
	// refunds and pushes below move custody the engine already holds.
	if err := e.ledger.TransferFrom(caller, gross); err != nil {
		return err
	}
	prevBidder := l.CurrentBidder
	prevGross := cloneBigInt(l.CurrentBidGross)
	hadBid := l.HasBid()
	if hadBid {
		if err := e.ledger.Transfer(prevBidder, prevGross); err != nil {
			return err
		}
	}
	l.CurrentBidID = bidTag
	l.CurrentBidder = caller
	l.CurrentBidAmount = amt
	l.CurrentBidGross = gross
	extended := false
	if buyout {
		l.Closed = true
	} else if l.ClosesAt-now <= antiSnipeWindowSeconds {
		l.ClosesAt = now + antiSnipeWindowSeconds
		extended = true
	}
	if err := e.storeListing(l); err != nil {
		return err
	}
	if hadBid {
		e.emit(NewBidRefundedEvent(l, prevBidder, prevGross))
	}
	e.emit(NewBidPlacedEvent(l))
	kind := "step"
	if buyout {
		e.emit(NewListingBuyoutEvent(l))
		kind = "buyout"
	} else if extended {
		e.emit(NewListingExtendedEvent(l))
	}
	e.telemetry.ObserveBidAccepted(kind)
	return nil
}

// Claim settles a closed or expired listing to the poster: the winning bid
// gross less fees, plus the listing stake. Until the cooldown elapses only
// the poster may claim, by paying the early-withdrawal fee, or an approver
// fee-free on the poster's behalf; once the cooldown has passed anyone may
// trigger the claim.
func (e *Engine) Claim(caller types.Address, id uint64, payEarlyFee bool) error {
	l, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if l.Withdrawn {
		return ErrAlreadyWithdrawn
	}
	now := e.now()
	if !l.settled(now) {
		return ErrListingOpen
	}
	early := false
	if now <= l.ClosesAt+e.settings.Cooldown && !e.registry.IsApprover(caller) {
		if caller != l.Poster || !payEarlyFee {
			return ErrCooldownActive
		}
		early = true
	}
	payout := cloneBigInt(l.Stake)
	fee := big.NewInt(0)
	if l.HasBid() {
		var bidPayout *big.Int
		bidPayout, fee = fees.Settlement(l.CurrentBidGross, e.settings.MakerFeeBps, e.settings.TakerFeeBps, e.settings.EarlyWithdrawFeeBps, early)
		payout.Add(payout, bidPayout)
	}
	if err := e.ledger.Transfer(l.Poster, payout); err != nil {
		return err
	}
	if fee.Sign() > 0 {
		accrued := e.state.AccruedFees()
		if err := e.state.SetAccruedFees(accrued.Add(accrued, fee)); err != nil {
			return err
		}
	}
	l.Closed = true
	l.Withdrawn = true
	if err := e.storeListing(l); err != nil {
		return err
	}
	e.emit(NewListingClaimedEvent(l, payout, fee))
	mode := "normal"
	if early {
		mode = "early"
	}
	e.telemetry.ObserveListingClaimed(mode)
	return nil
}

// RejectListing is approver arbitration: the standing bid is refunded in
// full with no fee, the poster's stake is returned, and the listing is
// marked withdrawn with no winner. A listing past its deadline can still be
// rejected until it is explicitly closed.
func (e *Engine) RejectListing(caller types.Address, id uint64) error {
	if err := e.registry.RequireApprover(caller); err != nil {
		return err
	}
	l, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if l.Closed {
		return ErrListingClosed
	}
	if l.HasBid() {
		if err := e.ledger.Transfer(l.CurrentBidder, l.CurrentBidGross); err != nil {
			return err
		}
	}
	if err := e.ledger.Transfer(l.Poster, l.Stake); err != nil {
		return err
	}
	hadBid := l.HasBid()
	bidder := l.CurrentBidder
	gross := cloneBigInt(l.CurrentBidGross)
	l.CurrentBidID = 0
	l.CurrentBidder = types.ZeroAddress
	l.CurrentBidAmount = big.NewInt(0)
	l.CurrentBidGross = big.NewInt(0)
	l.Closed = true
	l.Rejected = true
	l.Withdrawn = true
	if err := e.storeListing(l); err != nil {
		return err
	}
	if hadBid {
		e.emit(NewBidRefundedEvent(l, bidder, gross))
	}
	e.emit(NewListingRejectedEvent(l))
	e.telemetry.ObserveListingRejected()
	return nil
}

// WithdrawFees transfers the accrued fees to the configured receiver and
// resets the accrual. Owner-only; this engine transfers rather than burns.
func (e *Engine) WithdrawFees(caller types.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.registry.RequireOwner(caller); err != nil {
		return nil, err
	}
	accrued := e.state.AccruedFees()
	if accrued.Sign() == 0 {
		return nil, ErrNoAccruedFees
	}
	if err := e.ledger.Transfer(e.settings.FeeReceiver, accrued); err != nil {
		return nil, err
	}
	if err := e.state.SetAccruedFees(big.NewInt(0)); err != nil {
		return nil, err
	}
	e.emit(NewFeesWithdrawnEvent(e.settings.FeeReceiver, accrued))
	e.telemetry.ObserveFeesWithdrawn("auction")
	return accrued, nil
}

// GetListing returns a copy of the listing record.
func (e *Engine) GetListing(id uint64) (*Listing, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// HasListing reports whether the listing exists.
func (e *Engine) HasListing(id uint64) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok := e.state.ListingGet(id)
	return ok
}

// IsClosed reports whether the listing has settled, explicitly or by
// passing its deadline.
func (e *Engine) IsClosed(id uint64) (bool, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return false, err
	}
	return l.settled(e.now()), nil
}

// Withdrawn reports whether the listing proceeds have been paid out.
func (e *Engine) Withdrawn(id uint64) (bool, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return false, err
	}
	return l.Withdrawn, nil
}

// ClosesAt returns the listing deadline as a unix timestamp.
func (e *Engine) ClosesAt(id uint64) (int64, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return 0, err
	}
	return l.ClosesAt, nil
}

// CurrentBid returns the standing bidder, bid tag and principal.
func (e *Engine) CurrentBid(id uint64) (types.Address, uint64, *big.Int, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return types.ZeroAddress, 0, nil, err
	}
	if !l.HasBid() {
		return types.ZeroAddress, 0, nil, ErrNoBid
	}
	return l.CurrentBidder, l.CurrentBidID, cloneBigInt(l.CurrentBidAmount), nil
}

// WinningBid returns the winning bidder, bid tag and principal for a settled
// listing. It fails while the listing is open, and for listings that settled
// without a winner (no bid, or approver rejection).
func (e *Engine) WinningBid(id uint64) (types.Address, uint64, *big.Int, error) {
	l, err := e.loadListing(id)
	if err != nil {
		return types.ZeroAddress, 0, nil, err
	}
	if !l.settled(e.now()) {
		return types.ZeroAddress, 0, nil, ErrListingOpen
	}
	if l.Rejected || !l.HasBid() {
		return types.ZeroAddress, 0, nil, ErrNoWinningBid
	}
	return l.CurrentBidder, l.CurrentBidID, cloneBigInt(l.CurrentBidAmount), nil
}

// AccruedFees returns the undistributed fee balance.
func (e *Engine) AccruedFees() *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.AccruedFees()
}

// SettingsSnapshot returns a copy of the live configuration.
func (e *Engine) SettingsSnapshot() Settings {
	out := e.settings
	out.ListingStake = cloneBigInt(e.settings.ListingStake)
	out.MinimumBuyout = cloneBigInt(e.settings.MinimumBuyout)
	return out
}

func (e *Engine) updateSettings(caller types.Address, mutate func(*Settings)) error {
	if err := e.registry.RequireOwner(caller); err != nil {
		return err
	}
	next := e.SettingsSnapshot()
	mutate(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	e.settings = next
	return nil
}

func (e *Engine) SetMakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, func(s *Settings) { s.MakerFeeBps = bps })
}

func (e *Engine) SetTakerFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, func(s *Settings) { s.TakerFeeBps = bps })
}

func (e *Engine) SetEarlyWithdrawFeeBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, func(s *Settings) { s.EarlyWithdrawFeeBps = bps })
}

func (e *Engine) SetMinimumStepBps(caller types.Address, bps uint32) error {
	return e.updateSettings(caller, func(s *Settings) { s.MinimumStepBps = bps })
}

func (e *Engine) SetListingStake(caller types.Address, stake *big.Int) error {
	return e.updateSettings(caller, func(s *Settings) { s.ListingStake = cloneBigInt(stake) })
}

func (e *Engine) SetMinimumBuyout(caller types.Address, floor *big.Int) error {
	return e.updateSettings(caller, func(s *Settings) { s.MinimumBuyout = cloneBigInt(floor) })
}

func (e *Engine) SetDefaultDuration(caller types.Address, seconds int64) error {
	return e.updateSettings(caller, func(s *Settings) { s.DefaultDuration = seconds })
}

func (e *Engine) SetCooldown(caller types.Address, seconds int64) error {
	return e.updateSettings(caller, func(s *Settings) { s.Cooldown = seconds })
}

func (e *Engine) SetFeeReceiver(caller types.Address, receiver types.Address) error {
	return e.updateSettings(caller, func(s *Settings) { s.FeeReceiver = receiver })
}

func (e *Engine) SetAcceptingListings(caller types.Address, accepting bool) error {
	return e.updateSettings(caller, func(s *Settings) { s.AcceptingListings = accepting })
}
