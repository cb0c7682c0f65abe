// Package registry implements the access-control surface shared by the
// marketplace engines: a single owner with exclusive rights over settings
// and fee withdrawal, and a mutable approver set consulted at call time.
package registry

import (
	"errors"

	"stakemarket/core/types"
)

var (
	ErrZeroOwner       = errors.New("registry: owner must not be the zero address")
	ErrZeroAddress     = errors.New("registry: zero address")
	ErrNotOwner        = errors.New("registry: caller is not the owner")
	ErrNotApprover     = errors.New("registry: caller is not an approver")
	ErrAlreadyApprover = errors.New("registry: already an approver")
	ErrUnknownApprover = errors.New("registry: not an approver")
)

// Registry tracks the owner and the approver set. Approver membership is
// checked at call time rather than snapshotted, so a grant takes effect
// immediately for pre-existing listings and bounties.
type Registry struct {
	owner     types.Address
	approvers map[types.Address]struct{}
}

func New(owner types.Address) (*Registry, error) {
	if owner.IsZero() {
		return nil, ErrZeroOwner
	}
	return &Registry{owner: owner, approvers: make(map[types.Address]struct{})}, nil
}

func (r *Registry) Owner() types.Address { return r.owner }

// RequireOwner gates the settings and fee-withdrawal paths.
func (r *Registry) RequireOwner(caller types.Address) error {
	if caller != r.owner {
		return ErrNotOwner
	}
	return nil
}

// RequireApprover gates arbitration paths. The owner is not implicitly an
// approver; the roles are deliberately disjoint unless granted.
func (r *Registry) RequireApprover(caller types.Address) error {
	if !r.IsApprover(caller) {
		return ErrNotApprover
	}
	return nil
}

func (r *Registry) IsApprover(addr types.Address) bool {
	_, ok := r.approvers[addr]
	return ok
}

// GrantApprover adds addr to the approver set. Owner-only.
func (r *Registry) GrantApprover(caller, addr types.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	if addr.IsZero() {
		return ErrZeroAddress
	}
	if r.IsApprover(addr) {
		return ErrAlreadyApprover
	}
	r.approvers[addr] = struct{}{}
	return nil
}

// RevokeApprover removes addr from the approver set. Owner-only.
func (r *Registry) RevokeApprover(caller, addr types.Address) error {
	if err := r.RequireOwner(caller); err != nil {
		return err
	}
	if !r.IsApprover(addr) {
		return ErrUnknownApprover
	}
	delete(r.approvers, addr)
	return nil
}

// Approvers returns the current approver set in unspecified order.
func (r *Registry) Approvers() []types.Address {
	out := make([]types.Address, 0, len(r.approvers))
	for addr := range r.approvers {
		out = append(out, addr)
	}
	return out
}
