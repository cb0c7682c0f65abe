package auction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"stakemarket/storage"
)

// engineState is the narrow persistence surface the engine needs. The
// production implementation sits on storage.Database; tests may substitute
// an in-memory map.
type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	AccruedFees() *big.Int
	SetAccruedFees(*big.Int) error
}

// State persists listings and the fee accrual as JSON records keyed under
// the auction/ prefix.
type State struct {
	db storage.Database
}

func NewState(db storage.Database) *State { return &State{db: db} }

// NewMemoryState returns a State backed by an in-memory database.
func NewMemoryState() *State { return NewState(storage.NewMemDB()) }

func listingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("auction/listing/%d", id))
}

var accruedFeesKey = []byte("auction/accrued-fees")

func (s *State) ListingPut(l *Listing) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("auction: encode listing %d: %w", l.ID, err)
	}
	return s.db.Put(listingKey(l.ID), raw)
}

func (s *State) ListingGet(id uint64) (*Listing, bool) {
	raw, err := s.db.Get(listingKey(id))
	if err != nil {
		return nil, false
	}
	var l Listing
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, false
	}
	return &l, true
}

func (s *State) AccruedFees() *big.Int {
	raw, err := s.db.Get(accruedFeesKey)
	if err != nil {
		return big.NewInt(0)
	}
	out, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return big.NewInt(0)
	}
	return out
}

func (s *State) SetAccruedFees(v *big.Int) error {
	return s.db.Put(accruedFeesKey, []byte(cloneBigInt(v).String()))
}
