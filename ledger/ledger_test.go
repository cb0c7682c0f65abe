package ledger

import (
	"math/big"
	"testing"

	"stakemarket/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	holder := addr(1)
	engine := addr(0xEE)
	tok := NewToken(holder, big.NewInt(1_000))
	acct := tok.Bind(engine)

	if err := acct.TransferFrom(holder, big.NewInt(100)); err != ErrInsufficientAllowance {
		t.Fatalf("expected allowance error, got %v", err)
	}
	tok.Approve(holder, engine, big.NewInt(150))
	if err := acct.TransferFrom(holder, big.NewInt(100)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := tok.Allowance(holder, engine); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("allowance = %s, want 50", got)
	}
	if got := tok.BalanceOf(engine); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("custody = %s, want 100", got)
	}
	if err := acct.TransferFrom(holder, big.NewInt(100)); err != ErrInsufficientAllowance {
		t.Fatalf("expected allowance exhaustion, got %v", err)
	}
}

func TestTransferFromChecksBalance(t *testing.T) {
	holder := addr(1)
	engine := addr(0xEE)
	tok := NewToken(holder, big.NewInt(40))
	tok.Approve(holder, engine, big.NewInt(100))
	if err := tok.Bind(engine).TransferFrom(holder, big.NewInt(60)); err != ErrInsufficientBalance {
		t.Fatalf("expected balance error, got %v", err)
	}
}

func TestBurnCreditsReceiverAndRecordsTotal(t *testing.T) {
	holder := addr(1)
	engine := addr(0xEE)
	receiver := addr(9)
	tok := NewToken(holder, big.NewInt(500))
	tok.Approve(holder, engine, big.NewInt(500))
	acct := tok.Bind(engine)
	if err := acct.TransferFrom(holder, big.NewInt(500)); err != nil {
		t.Fatalf("fund custody: %v", err)
	}

	if err := acct.Burn(receiver, big.NewInt(120)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := tok.BalanceOf(receiver); got.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("receiver = %s, want 120", got)
	}
	if got := tok.BalanceOf(engine); got.Cmp(big.NewInt(380)) != 0 {
		t.Fatalf("custody = %s, want 380", got)
	}
	if got := tok.BurnedTotal(); got.Cmp(big.NewInt(120)) != 0 {
		t.Fatalf("burned = %s, want 120", got)
	}
}

func TestZeroAmountMovesAreNoops(t *testing.T) {
	holder := addr(1)
	engine := addr(0xEE)
	tok := NewToken(holder, big.NewInt(10))
	acct := tok.Bind(engine)
	if err := acct.TransferFrom(holder, big.NewInt(0)); err != nil {
		t.Fatalf("zero pull: %v", err)
	}
	if err := acct.Transfer(addr(2), big.NewInt(0)); err != nil {
		t.Fatalf("zero push: %v", err)
	}
	if err := acct.TransferFrom(holder, big.NewInt(-1)); err != ErrNegativeAmount {
		t.Fatalf("expected negative amount error, got %v", err)
	}
}
