// Package transfer owns the cross-chain transfer request ledger.
//
// A request is admitted through layered checks (pause, blocklist,
// destination, quota), persisted as Pending, and later finalized exactly
// once by a risk assessment from the trusted assessor. Requests are never
// deleted; rejection revokes execution of the transfer but not the quota
// already charged at admission.
package transfer

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrInvalidRequest = errors.New("transfer: invalid request")
	ErrTransferPaused = errors.New("transfer: transfers are paused")
	ErrAddressBlocked = errors.New("transfer: sender address is blocked")
)

// Status is a request's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFlagged  Status = "flagged"
	StatusRejected Status = "rejected"
)

// Risk score thresholds for assessment outcomes.
const (
	MaxRiskScore    = 100
	approveMaxScore = 50 // 0..50 approved
	flagMaxScore    = 80 // 51..80 flagged, 81..100 rejected
)

// StatusForScore maps an assessed risk score to the resulting status.
// Callers must validate score <= MaxRiskScore first.
func StatusForScore(score uint64) Status {
	switch {
	case score <= approveMaxScore:
		return StatusApproved
	case score <= flagMaxScore:
		return StatusFlagged
	default:
		return StatusRejected
	}
}

// Request is a single cross-chain transfer request.
type Request struct {
	ID            uint64    `json:"id"`
	Sender        string    `json:"sender"`
	Amount        uint64    `json:"amount"`
	Destination   string    `json:"destination"`
	TargetAddress string    `json:"targetAddress"`
	Status        Status    `json:"status"`
	RiskScore     uint64    `json:"riskScore"` // 0 until assessed
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists transfer requests.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id uint64) (*Request, error)
	// List returns up to limit requests in descending ID order, starting
	// below the before ID. before == 0 means newest first.
	List(ctx context.Context, limit int, before uint64) ([]*Request, error)
	// SetAssessment writes status and risk score together. Returns
	// ErrInvalidRequest if the request does not exist.
	SetAssessment(ctx context.Context, id uint64, score uint64, status Status) error
	// LastID returns the highest assigned request ID, or ok=false when the
	// ledger is empty. Used to resume the nonce after restart.
	LastID(ctx context.Context) (id uint64, ok bool, err error)
}
