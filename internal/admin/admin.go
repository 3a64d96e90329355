// Package admin provides owner- and guardian-facing endpoints for
// governance: role management, the blocklist, destination configuration
// and quota controls.
package admin

import "time"

// RoleSet is the current governance configuration.
type RoleSet struct {
	Owner     string   `json:"owner"`
	Assessor  string   `json:"assessor,omitempty"`
	Guardians []string `json:"guardians"`
}

// QuotaStatus reports the current global limit alongside the ceiling it
// recovers to.
type QuotaStatus struct {
	GlobalLimit uint64 `json:"globalLimit"`
	MaxLimit    uint64 `json:"maxLimit"`
}

// BlockStatus is the result of a blocklist lookup.
type BlockStatus struct {
	Address   string    `json:"address"`
	Blocked   bool      `json:"blocked"`
	CheckedAt time.Time `json:"checkedAt"`
}
