package access

import (
	"errors"
	"testing"
)

const (
	owner    = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	assessor = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	guardian = "0xcccccccccccccccccccccccccccccccccccccccc"
	stranger = "0xdddddddddddddddddddddddddddddddddddddddd"
)

func newController() *Controller {
	return NewController(owner, assessor, []string{guardian})
}

func TestRoleOf(t *testing.T) {
	c := newController()

	tests := []struct {
		caller string
		want   Role
	}{
		{owner, RoleOwner},
		{guardian, RoleGuardian},
		{assessor, RoleAssessor},
		{stranger, RoleOther},
		{"", RoleOther},
	}
	for _, tt := range tests {
		if got := c.RoleOf(tt.caller); got != tt.want {
			t.Errorf("RoleOf(%s) = %s, want %s", tt.caller, got, tt.want)
		}
	}
}

func TestRoleOfCaseInsensitive(t *testing.T) {
	c := NewController("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", assessor, nil)
	if got := c.RoleOf(owner); got != RoleOwner {
		t.Errorf("expected owner match across case, got %s", got)
	}
}

func TestRequire(t *testing.T) {
	c := newController()

	if err := c.Require(guardian, RoleOwner, RoleGuardian); err != nil {
		t.Errorf("guardian should pass owner|guardian check: %v", err)
	}
	if err := c.Require(stranger, RoleOwner, RoleGuardian); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestGuardianManagementIdempotent(t *testing.T) {
	c := newController()

	// Adding an existing guardian succeeds.
	if err := c.AddGuardian(owner, guardian); err != nil {
		t.Fatalf("re-adding guardian: %v", err)
	}
	// Removing a non-guardian succeeds.
	if err := c.RemoveGuardian(owner, stranger); err != nil {
		t.Fatalf("removing non-guardian: %v", err)
	}

	if err := c.RemoveGuardian(owner, guardian); err != nil {
		t.Fatalf("removing guardian: %v", err)
	}
	if got := c.RoleOf(guardian); got != RoleOther {
		t.Errorf("removed guardian still has role %s", got)
	}
}

func TestGuardianManagementOwnerOnly(t *testing.T) {
	c := newController()

	if err := c.AddGuardian(guardian, stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("guardian adding guardian: expected ErrNotAuthorized, got %v", err)
	}
	if err := c.RemoveGuardian(assessor, guardian); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("assessor removing guardian: expected ErrNotAuthorized, got %v", err)
	}
}

func TestSetAssessor(t *testing.T) {
	c := newController()

	if err := c.SetAssessor(stranger, stranger); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("non-owner rotating assessor: expected ErrNotAuthorized, got %v", err)
	}
	if err := c.SetAssessor(owner, stranger); err != nil {
		t.Fatalf("owner rotating assessor: %v", err)
	}
	if got := c.RoleOf(stranger); got != RoleAssessor {
		t.Errorf("new assessor role = %s", got)
	}
	if got := c.RoleOf(assessor); got != RoleOther {
		t.Errorf("old assessor still has role %s", got)
	}
}
