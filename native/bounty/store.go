package bounty

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"stakemarket/storage"
)

// engineState is the persistence surface shared by both engine generations.
// The rejected-payload scope is the bounty ID for the queue engine and zero
// (global) for the single-submission engine.
type engineState interface {
	BountyPut(*Bounty) error
	BountyGet(id uint64) (*Bounty, bool)
	RejectPayload(scope uint64, payload [32]byte) error
	PayloadRejected(scope uint64, payload [32]byte) bool
	AccruedFees() *big.Int
	SetAccruedFees(*big.Int) error
}

// State persists bounty records as JSON under a caller-chosen prefix, so the
// two engine generations can share one database without key collisions.
type State struct {
	db     storage.Database
	prefix string
}

func NewState(db storage.Database, prefix string) *State {
	return &State{db: db, prefix: prefix}
}

// NewMemoryState returns a State backed by an in-memory database.
func NewMemoryState(prefix string) *State {
	return NewState(storage.NewMemDB(), prefix)
}

func (s *State) bountyKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s/bounty/%d", s.prefix, id))
}

func (s *State) rejectedKey(scope uint64, payload [32]byte) []byte {
	return []byte(fmt.Sprintf("%s/rejected/%d/%s", s.prefix, scope, hex.EncodeToString(payload[:])))
}

func (s *State) feesKey() []byte {
	return []byte(s.prefix + "/accrued-fees")
}

func (s *State) BountyPut(b *Bounty) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("bounty: encode bounty %d: %w", b.ID, err)
	}
	return s.db.Put(s.bountyKey(b.ID), raw)
}

func (s *State) BountyGet(id uint64) (*Bounty, bool) {
	raw, err := s.db.Get(s.bountyKey(id))
	if err != nil {
		return nil, false
	}
	var b Bounty
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, false
	}
	return &b, true
}

func (s *State) RejectPayload(scope uint64, payload [32]byte) error {
	return s.db.Put(s.rejectedKey(scope, payload), []byte{1})
}

func (s *State) PayloadRejected(scope uint64, payload [32]byte) bool {
	ok, err := s.db.Has(s.rejectedKey(scope, payload))
	return err == nil && ok
}

func (s *State) AccruedFees() *big.Int {
	raw, err := s.db.Get(s.feesKey())
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
	return s.db.Put(s.feesKey(), []byte(cloneBigInt(v).String()))
}
