// Package quota enforces the global transfer ceiling and per-destination
// daily limits.
//
// CheckAndConsume is the single admission gate for volume: both checks and
// the consume happen under a per-destination lock, so concurrent admissions
// against the same destination can never jointly overrun its daily limit.
// Consumption is never reversed: quota tracks attempted exposure, not
// approved exposure.
package quota

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/bridgegate/internal/registry"
	"github.com/mbd888/bridgegate/internal/syncutil"
)

var ErrLimitExceeded = errors.New("quota: limit exceeded")

// DefaultMaxTransferLimit is the system maximum for the global ceiling,
// restored in full on recovery.
const DefaultMaxTransferLimit = 10000

var globalLimitGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "bridgegate",
	Subsystem: "quota",
	Name:      "global_transfer_limit",
	Help:      "Current global per-transfer ceiling.",
})

func init() {
	prometheus.MustRegister(globalLimitGauge)
}

// Ledger owns the global transfer ceiling and charges destination volume.
type Ledger struct {
	mu          sync.Mutex // guards globalLimit
	destLocks   *syncutil.ContextShardedMutex
	store       registry.Store
	globalLimit uint64
	maxLimit    uint64
}

// NewLedger creates a quota ledger over the registry's destination table.
// The global ceiling starts at maxLimit.
func NewLedger(store registry.Store, maxLimit uint64) *Ledger {
	if maxLimit == 0 {
		maxLimit = DefaultMaxTransferLimit
	}
	globalLimitGauge.Set(float64(maxLimit))
	return &Ledger{
		destLocks:   syncutil.NewContextShardedMutex(),
		store:       store,
		globalLimit: maxLimit,
		maxLimit:    maxLimit,
	}
}

// CheckAndConsume admits amount against the global ceiling and the
// destination's remaining daily capacity, charging the destination's
// consumed volume on success. All-or-nothing: no partial state on failure.
func (l *Ledger) CheckAndConsume(ctx context.Context, destID string, amount uint64) error {
	unlock, err := l.destLocks.LockContext(ctx, destID)
	if err != nil {
		return err
	}
	defer unlock()

	if amount > l.GlobalLimit() {
		return ErrLimitExceeded
	}

	dest, err := l.store.GetDestination(ctx, destID)
	if err != nil {
		return err
	}
	if dest.ConsumedVolume+amount > dest.DailyLimit {
		return ErrLimitExceeded
	}

	return l.store.AddVolume(ctx, destID, amount)
}

// GlobalLimit returns the current global ceiling.
func (l *Ledger) GlobalLimit() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalLimit
}

// MaxLimit returns the system maximum the ceiling is restored to.
func (l *Ledger) MaxLimit() uint64 {
	return l.maxLimit
}

// SetGlobalLimit rewrites the global ceiling.
func (l *Ledger) SetGlobalLimit(limit uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalLimit = limit
	globalLimitGauge.Set(float64(limit))
}

// QuarterGlobalLimit floor-divides the ceiling by 4 and returns the new
// value. Repeated calls compound.
func (l *Ledger) QuarterGlobalLimit() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalLimit /= 4
	globalLimitGauge.Set(float64(l.globalLimit))
	return l.globalLimit
}

// RestoreGlobalLimit resets the ceiling to the system maximum in full.
func (l *Ledger) RestoreGlobalLimit() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.globalLimit = l.maxLimit
	globalLimitGauge.Set(float64(l.globalLimit))
	return l.globalLimit
}

// ResetDestinationVolume zeroes a destination's consumed volume. There is
// no automatic daily reset; this is the explicit owner-driven cycle.
func (l *Ledger) ResetDestinationVolume(ctx context.Context, destID string) error {
	unlock, err := l.destLocks.LockContext(ctx, destID)
	if err != nil {
		return err
	}
	defer unlock()
	return l.store.ResetVolume(ctx, destID)
}
