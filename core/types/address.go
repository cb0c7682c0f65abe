package types

import "encoding/hex"

// Address identifies a marketplace principal. The engines treat addresses as
// opaque 20-byte identifiers; signature verification lives in the external
// wallet layer.
type Address [20]byte

// ZeroAddress is the sentinel "no principal" value.
var ZeroAddress Address

// IsZero reports whether the address equals the zero sentinel.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the lowercase hex encoding of the address without a prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }
