// Package access resolves caller principals into roles for the bridge
// admission engine.
//
// Roles are never stored: every operation recomputes the caller's role from
// the configured owner, guardian set, and trusted assessor at call time.
// The owner is fixed at construction and cannot be rotated; guardian
// membership and the assessor identity are owner-mutable.
package access

import (
	"errors"
	"strings"
	"sync"
)

var ErrNotAuthorized = errors.New("access: not authorized")

// Role is a caller's privilege level, derived per call.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleGuardian Role = "guardian"
	RoleAssessor Role = "assessor"
	RoleOther    Role = "other"
)

// Controller maps caller addresses to roles.
type Controller struct {
	mu        sync.RWMutex
	owner     string
	assessor  string
	guardians map[string]bool
}

// NewController creates a controller with a fixed owner and initial
// assessor and guardian set. Addresses are compared case-insensitively.
func NewController(owner, assessor string, guardians []string) *Controller {
	c := &Controller{
		owner:     strings.ToLower(owner),
		assessor:  strings.ToLower(assessor),
		guardians: make(map[string]bool),
	}
	for _, g := range guardians {
		c.guardians[strings.ToLower(g)] = true
	}
	return c
}

// RoleOf returns the caller's role. Owner wins over guardian and assessor
// if the same address holds several.
func (c *Controller) RoleOf(caller string) Role {
	caller = strings.ToLower(caller)

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case caller != "" && caller == c.owner:
		return RoleOwner
	case c.guardians[caller]:
		return RoleGuardian
	case caller != "" && caller == c.assessor:
		return RoleAssessor
	default:
		return RoleOther
	}
}

// Require returns ErrNotAuthorized unless the caller holds one of the
// allowed roles.
func (c *Controller) Require(caller string, allowed ...Role) error {
	role := c.RoleOf(caller)
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	return ErrNotAuthorized
}

// AddGuardian grants guardian privilege. Owner-only. Adding an existing
// guardian is a no-op success.
func (c *Controller) AddGuardian(caller, guardian string) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guardians[strings.ToLower(guardian)] = true
	return nil
}

// RemoveGuardian revokes guardian privilege. Owner-only. Removing a
// non-guardian is a no-op success.
func (c *Controller) RemoveGuardian(caller, guardian string) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.guardians, strings.ToLower(guardian))
	return nil
}

// SetAssessor rotates the trusted assessor identity. Owner-only.
func (c *Controller) SetAssessor(caller, assessor string) error {
	if err := c.Require(caller, RoleOwner); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assessor = strings.ToLower(assessor)
	return nil
}

// Owner returns the configured owner address.
func (c *Controller) Owner() string {
	return c.owner
}

// Assessor returns the current trusted assessor address.
func (c *Controller) Assessor() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assessor
}

// Guardians returns the current guardian set.
func (c *Controller) Guardians() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.guardians))
	for g := range c.guardians {
		out = append(out, g)
	}
	return out
}
