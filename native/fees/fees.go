// Package fees holds the basis-point fee arithmetic shared by the auction
// and bounty engines. All functions are pure and truncate toward zero, so
// rounding slack stays with the protocol rather than the payer.
package fees

import "math/big"

// BasisPointsDenominator is the bps scale: 10_000 bps equals 100%.
const BasisPointsDenominator = 10_000

var denominator = big.NewInt(BasisPointsDenominator)

// ValidBasisPoints reports whether a rate can be installed in engine
// settings. Rates above 100% are rejected at the mutation boundary so the
// arithmetic here never has to defend against them.
func ValidBasisPoints(bps uint32) bool {
	return bps <= BasisPointsDenominator
}

// Amount computes amount * bps / 10_000 with integer truncation. A nil
// amount is treated as zero.
func Amount(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() == 0 || bps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return out.Quo(out, denominator)
}

// GrossWithTaker returns the amount a bidder escrows for a bid: the bid
// principal marked up by the taker rate, bid * (10_000 + takerBps) / 10_000.
func GrossWithTaker(bid *big.Int, takerBps uint32) *big.Int {
	if bid == nil || bid.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(bid, big.NewInt(int64(BasisPointsDenominator+takerBps)))
	return out.Quo(out, denominator)
}

// TakerFromGross inverts GrossWithTaker: given the escrowed gross amount it
// extracts the taker fee portion, gross * takerBps / (10_000 + takerBps),
// so that principal plus fee reassembles the gross.
func TakerFromGross(gross *big.Int, takerBps uint32) *big.Int {
	if gross == nil || gross.Sign() == 0 || takerBps == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(gross, big.NewInt(int64(takerBps)))
	return out.Quo(out, big.NewInt(int64(BasisPointsDenominator+takerBps)))
}

// Settlement splits a gross escrowed amount into the poster payout and the
// total fee accrued by the protocol. The taker fee comes off the gross
// first, the maker fee applies to the remainder, and when early is set an
// additional early-withdrawal fee applies to what is left after both.
func Settlement(gross *big.Int, makerBps, takerBps, earlyBps uint32, early bool) (payout, fee *big.Int) {
	if gross == nil || gross.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	fee = TakerFromGross(gross, takerBps)
	remainder := new(big.Int).Sub(gross, fee)
	maker := Amount(remainder, makerBps)
	fee.Add(fee, maker)
	remainder.Sub(remainder, maker)
	if early {
		extra := Amount(remainder, earlyBps)
		fee.Add(fee, extra)
		remainder.Sub(remainder, extra)
	}
	return remainder, fee
}
