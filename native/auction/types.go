package auction

import (
	"errors"
	"math/big"

	"stakemarket/core/types"
	"stakemarket/native/fees"
)

// MaxDurationSeconds caps listing lifetimes at 36,500 days.
const MaxDurationSeconds int64 = 36_500 * 86_400

// antiSnipeWindowSeconds is the closing window inside which an accepted bid
// re-extends the deadline.
const antiSnipeWindowSeconds int64 = 30 * 60

var (
	ErrInvalidBasisPoints = errors.New("auction: fee basis points exceed 100%")
	ErrZeroFeeReceiver    = errors.New("auction: fee receiver must not be the zero address")
	ErrZeroStake          = errors.New("auction: listing stake must be positive")
	ErrInvalidDuration    = errors.New("auction: default duration out of range")
)

// Settings is the construction-time configuration of the auction engine.
// Every field is mutable later through an owner-only setter that re-runs the
// same validation.
type Settings struct {
	MakerFeeBps         uint32
	TakerFeeBps         uint32
	EarlyWithdrawFeeBps uint32
	MinimumStepBps      uint32
	ListingStake        *big.Int
	MinimumBuyout       *big.Int
	DefaultDuration     int64 // seconds applied when stakeListing passes zero
	Cooldown            int64 // seconds after close before third parties may claim
	FeeReceiver         types.Address
	AcceptingListings   bool
}

func (s Settings) Validate() error {
	if !fees.ValidBasisPoints(s.MakerFeeBps) || !fees.ValidBasisPoints(s.TakerFeeBps) ||
		!fees.ValidBasisPoints(s.EarlyWithdrawFeeBps) || !fees.ValidBasisPoints(s.MinimumStepBps) {
		return ErrInvalidBasisPoints
	}
	if s.ListingStake == nil || s.ListingStake.Sign() <= 0 {
		return ErrZeroStake
	}
	if s.DefaultDuration <= 0 || s.DefaultDuration > MaxDurationSeconds {
		return ErrInvalidDuration
	}
	if s.FeeReceiver.IsZero() {
		return ErrZeroFeeReceiver
	}
	return nil
}

// Listing is the persisted per-listing record. Only the current winning bid
// is retained; a superseded bid is refunded before being overwritten.
type Listing struct {
	ID            uint64
	Poster        types.Address
	BuyoutPrice   *big.Int
	StartingPrice *big.Int
	IsAuction     bool
	Stake         *big.Int
	CreatedAt     int64
	ClosesAt      int64
	Closed        bool // explicit closure via buyout or rejection
	Rejected      bool
	Withdrawn     bool

	// CurrentBidAmount is principal only; CurrentBidGross is the escrowed
	// amount including the taker markup the bidder paid up front.
	CurrentBidID     uint64
	CurrentBidder    types.Address
	CurrentBidAmount *big.Int
	CurrentBidGross  *big.Int
}

func (l *Listing) HasBid() bool {
	return l != nil && l.CurrentBidAmount != nil && l.CurrentBidAmount.Sign() > 0
}

// expired reports whether the listing's deadline has lapsed. Expiry is
// discovered lazily on the next interaction; there is no background timer.
func (l *Listing) expired(now int64) bool {
	return now > l.ClosesAt
}

func (l *Listing) settled(now int64) bool {
	return l.Closed || l.expired(now)
}

func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.BuyoutPrice = cloneBigInt(l.BuyoutPrice)
	out.StartingPrice = cloneBigInt(l.StartingPrice)
	out.Stake = cloneBigInt(l.Stake)
	out.CurrentBidAmount = cloneBigInt(l.CurrentBidAmount)
	out.CurrentBidGross = cloneBigInt(l.CurrentBidGross)
	return &out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
