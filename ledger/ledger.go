// Package ledger models the fungible-token collaborator the marketplace
// engines settle against. The engines never hold raw balances themselves;
// every value movement is an allowance-gated pull into engine custody or a
// push out of it.
package ledger

import (
	"errors"
	"math/big"

	"stakemarket/core/types"
)

var (
	ErrInsufficientAllowance = errors.New("ledger: insufficient allowance")
	ErrInsufficientBalance   = errors.New("ledger: insufficient balance")
	ErrNegativeAmount        = errors.New("ledger: negative amount")
)

// Ledger is the capability set an engine requires from the token
// collaborator, expressed from the engine's perspective: TransferFrom pulls
// into engine custody, Transfer pushes out of it, Burn destroys custody
// while crediting the configured receiver. TotalSupply doubles as the
// compliance probe checked at engine construction.
type Ledger interface {
	TransferFrom(from types.Address, amount *big.Int) error
	Transfer(to types.Address, amount *big.Int) error
	Burn(receiver types.Address, amount *big.Int) error
	TotalSupply() *big.Int
}

// Token is a deterministic in-memory fungible token with ERC20-style
// allowances. It backs engine tests and the daemon's local mode.
type Token struct {
	supply     *big.Int
	burned     *big.Int
	balances   map[types.Address]*big.Int
	allowances map[types.Address]map[types.Address]*big.Int
}

// NewToken mints the full initial supply to the given holder.
func NewToken(holder types.Address, supply *big.Int) *Token {
	t := &Token{
		supply:     cloneBig(supply),
		burned:     big.NewInt(0),
		balances:   make(map[types.Address]*big.Int),
		allowances: make(map[types.Address]map[types.Address]*big.Int),
	}
	t.balances[holder] = cloneBig(supply)
	return t
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (t *Token) balance(addr types.Address) *big.Int {
	if bal, ok := t.balances[addr]; ok {
		return bal
	}
	bal := big.NewInt(0)
	t.balances[addr] = bal
	return bal
}

// BalanceOf returns a copy of the holder's balance.
func (t *Token) BalanceOf(addr types.Address) *big.Int {
	return cloneBig(t.balances[addr])
}

// TotalSupply returns a copy of the outstanding supply.
func (t *Token) TotalSupply() *big.Int { return cloneBig(t.supply) }

// BurnedTotal returns the cumulative amount routed through the burn path.
func (t *Token) BurnedTotal() *big.Int { return cloneBig(t.burned) }

// Approve authorizes spender to pull up to amount from owner.
func (t *Token) Approve(owner, spender types.Address, amount *big.Int) {
	inner, ok := t.allowances[owner]
	if !ok {
		inner = make(map[types.Address]*big.Int)
		t.allowances[owner] = inner
	}
	inner[spender] = cloneBig(amount)
}

// Allowance returns a copy of the remaining allowance owner granted spender.
func (t *Token) Allowance(owner, spender types.Address) *big.Int {
	return cloneBig(t.allowances[owner][spender])
}

func (t *Token) move(from, to types.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	src := t.balance(from)
	if src.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	src.Sub(src, amount)
	t.balance(to).Add(t.balance(to), amount)
	return nil
}

// Transfer moves amount directly between holders, the plain ERC20 transfer.
func (t *Token) Transfer(from, to types.Address, amount *big.Int) error {
	return t.move(from, to, amount)
}

// Bind returns the custody-scoped view a single engine operates through.
func (t *Token) Bind(custodian types.Address) *Account {
	return &Account{token: t, custodian: custodian}
}

// Account is a Ledger bound to one engine's custody address.
type Account struct {
	token     *Token
	custodian types.Address
}

// TransferFrom pulls amount from the holder into engine custody, consuming
// the holder's allowance for the engine.
func (a *Account) TransferFrom(from types.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance := a.token.allowances[from][a.custodian]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := a.token.move(from, a.custodian, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

// Transfer pushes amount out of engine custody. A failure here means engine
// accounting is wrong, not that the caller misbehaved.
func (a *Account) Transfer(to types.Address, amount *big.Int) error {
	return a.token.move(a.custodian, to, amount)
}

// Burn routes amount through the token's burn-and-credit mechanism: the
// custody balance is destroyed and the receiver is credited the same amount,
// with the burned total recorded for auditing.
func (a *Account) Burn(receiver types.Address, amount *big.Int) error {
	if err := a.token.move(a.custodian, receiver, amount); err != nil {
		return err
	}
	a.token.burned.Add(a.token.burned, amount)
	return nil
}

// TotalSupply implements the Ledger compliance probe.
func (a *Account) TotalSupply() *big.Int { return a.token.TotalSupply() }
