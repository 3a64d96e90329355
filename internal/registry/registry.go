// Package registry tracks blocked addresses and per-destination bridge
// configuration.
//
// The blocklist is a plain presence set: blocking an already-blocked address
// or unblocking an unknown one is a no-op success. Destination configuration
// is overwritten wholesale on reconfiguration; accumulated volume and risk
// score start over.
package registry

import (
	"context"
	"errors"
)

// Errors
var (
	ErrChainNotSupported = errors.New("registry: destination not supported")
)

// Destination is the per-chain bridge configuration and quota state.
type Destination struct {
	ID             string `json:"id"`             // short chain identifier, e.g. "ETH"
	Active         bool   `json:"active"`         // transfers admitted only when true
	DailyLimit     uint64 `json:"dailyLimit"`     // max consumable volume
	ConsumedVolume uint64 `json:"consumedVolume"` // volume charged so far
	RiskScore      uint64 `json:"riskScore"`      // 0..100, informational
}

// Store persists the blocklist and destination table.
//
// AddVolume must be called only by the quota ledger, which serializes
// check-then-consume; stores themselves only need to be safe for
// concurrent readers.
type Store interface {
	Block(ctx context.Context, addr string) error
	Unblock(ctx context.Context, addr string) error
	IsBlocked(ctx context.Context, addr string) (bool, error)

	// PutDestination overwrites the full record for dest.ID.
	PutDestination(ctx context.Context, dest *Destination) error
	// GetDestination returns ErrChainNotSupported when no entry exists.
	GetDestination(ctx context.Context, id string) (*Destination, error)
	ListDestinations(ctx context.Context) ([]*Destination, error)
	// AddVolume increments a destination's consumed volume.
	AddVolume(ctx context.Context, id string, amount uint64) error
	// ResetVolume zeroes a destination's consumed volume.
	ResetVolume(ctx context.Context, id string) error
}
