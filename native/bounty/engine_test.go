package bounty

import (
	"errors"
	"math/big"
	"testing"

	"stakemarket/core/events"
	"stakemarket/core/types"
	"stakemarket/ledger"
	"stakemarket/native/registry"
)

const (
	daySeconds     = int64(86_400)
	bountyDuration = 30 * daySeconds
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

var (
	owner       = addr(1)
	approver    = addr(2)
	funder      = addr(3)
	hunter      = addr(4)
	hunterTwo   = addr(5)
	hunterThree = addr(6)
	feeReceiver = addr(9)
	engineAddr  = addr(0xEE)
	bank        = addr(0xAA)
)

func testSettings() Settings {
	return Settings{
		MakerFeeBps:          250,
		TakerFeeBps:          500,
		SubmissionStake:      big.NewInt(10_000),
		BountyDuration:       bountyDuration,
		FeeReceiver:          feeReceiver,
		AcceptingBounties:    true,
		MaxActiveSubmissions: 3,
		MinimumBounty:        big.NewInt(50_000),
	}
}

type fixture struct {
	token   *ledger.Token
	reg     *registry.Registry
	capture *events.Capture
	now     int64
}

func newHarness(t *testing.T) *fixture {
	t.Helper()
	token := ledger.NewToken(bank, big.NewInt(100_000_000))
	for _, holder := range []types.Address{funder, hunter, hunterTwo, hunterThree} {
		if err := token.Transfer(bank, holder, big.NewInt(10_000_000)); err != nil {
			t.Fatalf("seed %s: %v", holder.Hex(), err)
		}
		token.Approve(holder, engineAddr, big.NewInt(10_000_000))
	}
	reg, err := registry.New(owner)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := reg.GrantApprover(owner, approver); err != nil {
		t.Fatalf("grant approver: %v", err)
	}
	return &fixture{token: token, reg: reg, capture: &events.Capture{}, now: 1_700_000_000}
}

func newV1(t *testing.T) (*Engine, *fixture) {
	t.Helper()
	f := newHarness(t)
	engine, err := NewEngine(f.reg, f.token.Bind(engineAddr), testSettings())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	engine.SetState(NewMemoryState("bounty1"))
	engine.SetEmitter(f.capture)
	engine.SetNowFunc(func() int64 { return f.now })
	return engine, f
}

func TestPayloadCommitmentBindsIDAndSubmitter(t *testing.T) {
	base := PayloadCommitment(42, hunter)
	if base == PayloadCommitment(43, hunter) {
		t.Fatal("commitment should vary with submission id")
	}
	if base == PayloadCommitment(42, hunterTwo) {
		t.Fatal("commitment should vary with submitter")
	}
	if base != PayloadCommitment(42, hunter) {
		t.Fatal("commitment should be deterministic")
	}
}

func TestFundBountyDeductsMakerFee(t *testing.T) {
	engine, f := newV1(t)
	b, err := engine.FundBounty(funder, 1, big.NewInt(100_000))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	// 2.5% maker fee deducted from the funded amount.
	if b.Amount.Cmp(big.NewInt(97_500)) != 0 || b.InitialAmount.Cmp(big.NewInt(97_500)) != 0 {
		t.Fatalf("pool = %s / %s, want 97500", b.Amount, b.InitialAmount)
	}
	if b.ExpiresAt != f.now+bountyDuration {
		t.Fatalf("expiresAt = %d, want %d", b.ExpiresAt, f.now+bountyDuration)
	}
	if got := engine.AccruedFees(); got.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("accrued = %s, want 2500", got)
	}
	if got := f.token.BalanceOf(engineAddr); got.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("custody = %s, want 100000", got)
	}

	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != ErrBountyFunded {
		t.Fatalf("double fund: got %v", err)
	}
	// 10_000 nets 9_750 after the maker fee, below the 10_000 stake floor.
	if _, err := engine.FundBounty(funder, 2, big.NewInt(10_000)); err != ErrBountyBelowFloor {
		t.Fatalf("below floor: got %v", err)
	}
	if _, err := engine.FundBounty(funder, 2, big.NewInt(0)); err != ErrZeroAmount {
		t.Fatalf("zero amount: got %v", err)
	}
	if err := engine.SetAcceptingBounties(owner, false); err != nil {
		t.Fatalf("sunset: %v", err)
	}
	if _, err := engine.FundBounty(funder, 2, big.NewInt(100_000)); err != ErrNotAcceptingBounties {
		t.Fatalf("fund after sunset: got %v", err)
	}
}

func TestMakeSubmissionRules(t *testing.T) {
	engine, f := newV1(t)
	payload := PayloadCommitment(7, hunter)

	if err := engine.MakeSubmission(hunter, 1, payload); err != ErrBountyNotFound {
		t.Fatalf("unfunded: got %v", err)
	}
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := engine.MakeSubmission(approver, 1, PayloadCommitment(7, approver)); err != ErrApproverSubmission {
		t.Fatalf("approver submission: got %v", err)
	}
	if err := engine.MakeSubmission(hunter, 1, payload); err != nil {
		t.Fatalf("submit: %v", err)
	}
	afterStake := f.token.BalanceOf(hunter)

	// Re-staking the identical commitment is a conflict, not a quiet no-op.
	if err := engine.MakeSubmission(hunter, 1, payload); err != ErrSubmissionAlreadyMade {
		t.Fatalf("identical resubmit: got %v", err)
	}
	if got := f.token.BalanceOf(hunter); got.Cmp(afterStake) != 0 {
		t.Fatalf("failed resubmit moved tokens: %s != %s", got, afterStake)
	}
	if err := engine.MakeSubmission(hunterTwo, 1, PayloadCommitment(8, hunterTwo)); err != ErrSubmissionPending {
		t.Fatalf("second distinct submission: got %v", err)
	}

	if _, err := engine.FundBounty(funder, 2, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund second: %v", err)
	}
	f.now += bountyDuration + 1
	if err := engine.MakeSubmission(hunterTwo, 2, PayloadCommitment(9, hunterTwo)); err != ErrBountyExpired {
		t.Fatalf("submission after expiry: got %v", err)
	}
}

func TestApproveSubmissionPaysRewardAndStake(t *testing.T) {
	engine, f := newV1(t)
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := engine.ApproveSubmission(approver, 1, 7); err != ErrNoSubmission {
		t.Fatalf("approve with empty queue: got %v", err)
	}
	if _, err := engine.IsValidCurrentSubmission(1, 7); err != ErrNoSubmission {
		t.Fatalf("validate with empty queue: got %v", err)
	}
	if approved, err := engine.ApprovedSubmission(1, 7); err != nil || approved {
		t.Fatalf("unapproved bounty reported approved: %t (%v)", approved, err)
	}
	if err := engine.MakeSubmission(hunter, 1, PayloadCommitment(7, hunter)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.ApproveSubmission(hunter, 1, 7); !errors.Is(err, registry.ErrNotApprover) {
		t.Fatalf("non-approver approve: got %v", err)
	}
	if err := engine.ApproveSubmission(approver, 1, 8); err != ErrHashMismatch {
		t.Fatalf("wrong revealed id: got %v", err)
	}

	if valid, err := engine.IsValidCurrentSubmission(1, 7); err != nil || !valid {
		t.Fatalf("pending submission should validate: %t (%v)", valid, err)
	}
	if valid, _ := engine.IsValidCurrentSubmission(1, 8); valid {
		t.Fatal("wrong id should not validate")
	}

	before := f.token.BalanceOf(hunter)
	if err := engine.ApproveSubmission(approver, 1, 7); err != nil {
		t.Fatalf("approve: %v", err)
	}
	// pool 97_500 less 5% taker fee, plus the returned 10_000 stake.
	want := new(big.Int).Add(before, big.NewInt(92_625+10_000))
	if got := f.token.BalanceOf(hunter); got.Cmp(want) != 0 {
		t.Fatalf("hunter balance = %s, want %s", got, want)
	}
	if got := engine.AccruedFees(); got.Cmp(big.NewInt(2_500+4_875)) != 0 {
		t.Fatalf("accrued = %s, want 7375", got)
	}
	b, err := engine.GetBounty(1)
	if err != nil {
		t.Fatalf("get bounty: %v", err)
	}
	if !b.Closed || b.Amount.Sign() != 0 || len(b.Queue) != 0 {
		t.Fatalf("bounty not settled: %+v", b)
	}
	if approved, err := engine.ApprovedSubmission(1, 7); err != nil || !approved {
		t.Fatalf("approval not recorded: %t (%v)", approved, err)
	}
	if approved, _ := engine.ApprovedSubmission(1, 8); approved {
		t.Fatal("unrelated id reported approved")
	}
	if err := engine.CloseBounty(approver, 1); err != ErrBountyClosed {
		t.Fatalf("close after approve: got %v", err)
	}
}

func TestSelfArbitrationBlocked(t *testing.T) {
	engine, f := newV1(t)
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := engine.MakeSubmission(hunter, 1, PayloadCommitment(7, hunter)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Approver status granted mid-lifecycle takes effect immediately, but
	// never over the principal's own submission.
	if err := f.reg.GrantApprover(owner, hunter); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := engine.ApproveSubmission(hunter, 1, 7); err != ErrSelfArbitration {
		t.Fatalf("self approval: got %v", err)
	}
	if err := engine.RejectSubmission(hunter, 1); err != ErrSelfArbitration {
		t.Fatalf("self rejection: got %v", err)
	}
	if err := engine.ApproveSubmission(approver, 1, 7); err != nil {
		t.Fatalf("sibling approver: %v", err)
	}
}

func TestRejectSubmissionForfeitsStake(t *testing.T) {
	engine, _ := newV1(t)
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	payload := PayloadCommitment(7, hunter)
	if err := engine.MakeSubmission(hunter, 1, payload); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.RejectSubmission(approver, 1); err != nil {
		t.Fatalf("reject: %v", err)
	}
	b, err := engine.GetBounty(1)
	if err != nil {
		t.Fatalf("get bounty: %v", err)
	}
	// Stake joins the pool as a fresh funding event net of the maker fee.
	if b.Amount.Cmp(big.NewInt(97_500+9_750)) != 0 {
		t.Fatalf("pool = %s, want 107250", b.Amount)
	}
	if got := engine.AccruedFees(); got.Cmp(big.NewInt(2_500+250)) != 0 {
		t.Fatalf("accrued = %s, want 2750", got)
	}
	if len(b.Queue) != 0 {
		t.Fatal("queue should be empty after rejection")
	}
	if err := engine.RejectSubmission(approver, 1); err != ErrNoSubmission {
		t.Fatalf("double reject: got %v", err)
	}

	// The payload is barred globally, here against a different bounty.
	if !engine.PayloadRejectedGlobally(payload) {
		t.Fatal("payload should be barred")
	}
	if _, err := engine.FundBounty(funder, 2, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund second: %v", err)
	}
	if err := engine.MakeSubmission(hunterTwo, 2, payload); err != ErrPayloadRejected {
		t.Fatalf("rejected payload reuse: got %v", err)
	}
}

func TestCloseBountyPolicy(t *testing.T) {
	engine, f := newV1(t)
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := engine.MakeSubmission(hunter, 1, PayloadCommitment(7, hunter)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := engine.CloseBounty(approver, 1); err != ErrSubmissionActive {
		t.Fatalf("close with pending submission: got %v", err)
	}
	if err := engine.RejectSubmission(approver, 1); err != nil {
		t.Fatalf("reject: %v", err)
	}

	// Before expiry only an approver may close.
	if err := engine.CloseBounty(funder, 1); !errors.Is(err, registry.ErrNotApprover) {
		t.Fatalf("funder close before expiry: got %v", err)
	}

	f.now += bountyDuration + 1
	if err := engine.CloseBounty(hunterTwo, 1); err != ErrUnauthorizedClose {
		t.Fatalf("stranger close: got %v", err)
	}
	before := f.token.BalanceOf(funder)
	if err := engine.CloseBounty(funder, 1); err != nil {
		t.Fatalf("funder close after expiry: %v", err)
	}
	// The funding snapshot returns; forfeited-stake growth accrues as fees.
	want := new(big.Int).Add(before, big.NewInt(97_500))
	if got := f.token.BalanceOf(funder); got.Cmp(want) != 0 {
		t.Fatalf("funder balance = %s, want %s", got, want)
	}
	if got := engine.AccruedFees(); got.Cmp(big.NewInt(2_500+250+9_750)) != 0 {
		t.Fatalf("accrued = %s, want 12500", got)
	}
}

func TestWithdrawFeesBurns(t *testing.T) {
	engine, f := newV1(t)
	if _, err := engine.FundBounty(funder, 1, big.NewInt(100_000)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := engine.WithdrawFees(hunter); !errors.Is(err, registry.ErrNotOwner) {
		t.Fatalf("non-owner withdraw: got %v", err)
	}
	amount, err := engine.WithdrawFees(owner)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("withdrawn = %s, want 2500", amount)
	}
	if got := f.token.BalanceOf(feeReceiver); got.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("receiver balance = %s", got)
	}
	if got := f.token.BurnedTotal(); got.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("burned total = %s, want 2500", got)
	}
	if got := engine.AccruedFees(); got.Sign() != 0 {
		t.Fatalf("accrued = %s after burn", got)
	}
	if _, err := engine.WithdrawFees(owner); err != ErrNoAccruedFees {
		t.Fatalf("empty withdraw: got %v", err)
	}
}
