package registry

import (
	"testing"

	"stakemarket/core/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func TestNewRejectsZeroOwner(t *testing.T) {
	if _, err := New(types.ZeroAddress); err != ErrZeroOwner {
		t.Fatalf("expected ErrZeroOwner, got %v", err)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	owner := addr(1)
	alice := addr(2)
	reg, err := New(owner)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := reg.GrantApprover(alice, alice); err != ErrNotOwner {
		t.Fatalf("non-owner grant: got %v", err)
	}
	if err := reg.GrantApprover(owner, types.ZeroAddress); err != ErrZeroAddress {
		t.Fatalf("zero grant: got %v", err)
	}
	if err := reg.GrantApprover(owner, alice); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := reg.GrantApprover(owner, alice); err != ErrAlreadyApprover {
		t.Fatalf("double grant: got %v", err)
	}
	if !reg.IsApprover(alice) {
		t.Fatal("alice should be an approver")
	}
	if err := reg.RequireApprover(alice); err != nil {
		t.Fatalf("require approver: %v", err)
	}

	if err := reg.RevokeApprover(owner, addr(9)); err != ErrUnknownApprover {
		t.Fatalf("revoke stranger: got %v", err)
	}
	if err := reg.RevokeApprover(owner, alice); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if reg.IsApprover(alice) {
		t.Fatal("alice should no longer be an approver")
	}
}

func TestOwnerIsNotImplicitApprover(t *testing.T) {
	owner := addr(1)
	reg, err := New(owner)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := reg.RequireApprover(owner); err != ErrNotApprover {
		t.Fatalf("owner should not pass approver check: got %v", err)
	}
}
