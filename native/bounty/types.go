package bounty

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"stakemarket/core/types"
	"stakemarket/native/fees"
)

// MaxDurationSeconds caps bounty lifetimes at 36,500 days.
const MaxDurationSeconds int64 = 36_500 * 86_400

var (
	ErrInvalidBasisPoints = errors.New("bounty: fee basis points exceed 100%")
	ErrZeroFeeReceiver    = errors.New("bounty: fee receiver must not be the zero address")
	ErrZeroStake          = errors.New("bounty: submission stake must be positive")
	ErrInvalidDuration    = errors.New("bounty: duration out of range")
	ErrInvalidCapacity    = errors.New("bounty: max active submissions must be positive")
	ErrZeroMinimumBounty  = errors.New("bounty: minimum bounty floor must be positive")
)

// Settings is the construction-time configuration shared by both bounty
// engine generations. MaxActiveSubmissions and MinimumBounty only apply to
// the queue engine and are ignored by the single-submission engine.
type Settings struct {
	MakerFeeBps       uint32
	TakerFeeBps       uint32
	SubmissionStake   *big.Int
	BountyDuration    int64 // seconds from funding to expiry
	FeeReceiver       types.Address
	AcceptingBounties bool

	MaxActiveSubmissions int
	MinimumBounty        *big.Int
}

func (s Settings) Validate() error {
	if !fees.ValidBasisPoints(s.MakerFeeBps) || !fees.ValidBasisPoints(s.TakerFeeBps) {
		return ErrInvalidBasisPoints
	}
	if s.SubmissionStake == nil || s.SubmissionStake.Sign() <= 0 {
		return ErrZeroStake
	}
	if s.BountyDuration <= 0 || s.BountyDuration > MaxDurationSeconds {
		return ErrInvalidDuration
	}
	if s.FeeReceiver.IsZero() {
		return ErrZeroFeeReceiver
	}
	return nil
}

func (s Settings) validateQueue() error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.MaxActiveSubmissions <= 0 {
		return ErrInvalidCapacity
	}
	if s.MinimumBounty == nil || s.MinimumBounty.Sign() <= 0 {
		return ErrZeroMinimumBounty
	}
	return nil
}

// Submission is one staked payload commitment. The plaintext submission ID
// stays with the submitter until arbitration reveals it.
type Submission struct {
	PayloadHash [32]byte
	Submitter   types.Address
	Stake       *big.Int
}

func (s Submission) Clone() Submission {
	s.Stake = cloneBigInt(s.Stake)
	return s
}

// Bounty is the persisted per-bounty record. Amount is the live reward
// pool, grown by forfeited stakes; InitialAmount is the funding snapshot
// used to split payout from accrued surplus at close. ApprovedPayload and
// ApprovedSubmitter record the winning commitment once a submission has
// been approved; both stay zero otherwise.
type Bounty struct {
	ID                uint64
	Funder            types.Address
	Amount            *big.Int
	InitialAmount     *big.Int
	FundedAt          int64
	ExpiresAt         int64
	Closed            bool
	Queue             []Submission
	ApprovedPayload   [32]byte
	ApprovedSubmitter types.Address
}

func (b *Bounty) expired(now int64) bool {
	return now > b.ExpiresAt
}

func (b *Bounty) Clone() *Bounty {
	if b == nil {
		return nil
	}
	out := *b
	out.Amount = cloneBigInt(b.Amount)
	out.InitialAmount = cloneBigInt(b.InitialAmount)
	out.Queue = make([]Submission, len(b.Queue))
	for i, sub := range b.Queue {
		out.Queue[i] = sub.Clone()
	}
	return &out
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// PayloadCommitment computes the hash a submitter commits to:
// keccak256 over the submission ID as a 32-byte big-endian word followed by
// the submitter address. Revealing the plaintext ID at arbitration binds it
// to the commitment and defeats submission front-running.
func PayloadCommitment(submissionID uint64, submitter types.Address) [32]byte {
	var word [32]byte
	new(big.Int).SetUint64(submissionID).FillBytes(word[:])
	var out [32]byte
	copy(out[:], ethcrypto.Keccak256(word[:], submitter[:]))
	return out
}
