package transfer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/registry"
	"github.com/mbd888/bridgegate/internal/traces"
)

var (
	admissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgegate",
		Subsystem: "transfer",
		Name:      "admissions_total",
		Help:      "Transfer admission attempts by outcome.",
	}, []string{"outcome"})

	assessmentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgegate",
		Subsystem: "transfer",
		Name:      "assessments_total",
		Help:      "Risk assessments by resulting status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(admissionsTotal, assessmentsTotal)
}

// PauseState reports the global pause flag owned by the incident engine.
type PauseState interface {
	Paused() bool
}

// Emitter publishes transfer lifecycle signals. Implementations must be
// fire-and-forget; the service never blocks on them.
type Emitter interface {
	TransferInitiated(id uint64, sender string, amount uint64, destination string)
	RiskAssessmentSubmitted(id uint64, score uint64, status Status, reason string)
}

// Service owns transfer admission and per-request risk assessment.
type Service struct {
	mu       sync.Mutex
	nonce    uint64 // next request ID
	store    Store
	registry registry.Store
	quota    *quota.Ledger
	acl      *access.Controller
	pause    PauseState
	emitter  Emitter
}

// NewService creates the transfer lifecycle service. The nonce resumes from
// the store's highest assigned ID.
func NewService(ctx context.Context, store Store, reg registry.Store, ledger *quota.Ledger, acl *access.Controller, pause PauseState) (*Service, error) {
	s := &Service{
		store:    store,
		registry: reg,
		quota:    ledger,
		acl:      acl,
		pause:    pause,
	}
	last, ok, err := store.LastID(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.nonce = last + 1
	}
	return s, nil
}

// WithEmitter attaches a signal emitter.
func (s *Service) WithEmitter(e Emitter) *Service {
	s.emitter = e
	return s
}

// Initiate admits a transfer request. Checks run in order and short-circuit
// on the first violation; no partial state is left behind on failure. On
// success the request is persisted as Pending and its amount is already
// charged against the destination's quota.
func (s *Service) Initiate(ctx context.Context, sender string, amount uint64, destID, targetAddress string) (uint64, error) {
	ctx, span := traces.StartSpan(ctx, "transfer.initiate",
		attribute.String("transfer.destination", destID),
		attribute.Int64("transfer.amount", int64(amount)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pause != nil && s.pause.Paused() {
		admissionsTotal.WithLabelValues("paused").Inc()
		return 0, ErrTransferPaused
	}

	blocked, err := s.registry.IsBlocked(ctx, sender)
	if err != nil {
		return 0, err
	}
	if blocked {
		admissionsTotal.WithLabelValues("blocked").Inc()
		return 0, ErrAddressBlocked
	}

	dest, err := s.registry.GetDestination(ctx, destID)
	if err != nil {
		admissionsTotal.WithLabelValues("unsupported").Inc()
		return 0, err
	}
	if !dest.Active {
		admissionsTotal.WithLabelValues("unsupported").Inc()
		return 0, registry.ErrChainNotSupported
	}

	// Global ceiling and daily quota, checked and charged atomically.
	if err := s.quota.CheckAndConsume(ctx, destID, amount); err != nil {
		admissionsTotal.WithLabelValues("limit_exceeded").Inc()
		return 0, err
	}

	req := &Request{
		ID:            s.nonce,
		Sender:        sender,
		Amount:        amount,
		Destination:   destID,
		TargetAddress: targetAddress,
		Status:        StatusPending,
		RiskScore:     0,
		CreatedAt:     time.Now(),
	}
	if err := s.store.Create(ctx, req); err != nil {
		return 0, err
	}
	s.nonce++

	admissionsTotal.WithLabelValues("admitted").Inc()
	if s.emitter != nil {
		s.emitter.TransferInitiated(req.ID, req.Sender, req.Amount, req.Destination)
	}
	return req.ID, nil
}

// AssessRisk finalizes a pending request with the assessor's risk score.
// Assessor-only. A request is assessed exactly once; re-assessment, an
// unknown ID, or a score over 100 all fail with ErrInvalidRequest. No quota
// reversal or auto-block happens on rejection.
func (s *Service) AssessRisk(ctx context.Context, caller string, requestID, score uint64, reason string) (Status, error) {
	ctx, span := traces.StartSpan(ctx, "transfer.assess_risk",
		attribute.Int64("transfer.request_id", int64(requestID)),
	)
	defer span.End()

	if err := s.acl.Require(caller, access.RoleAssessor); err != nil {
		return "", err
	}
	if score > MaxRiskScore {
		return "", ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.Status != StatusPending {
		return "", ErrInvalidRequest
	}

	status := StatusForScore(score)
	if err := s.store.SetAssessment(ctx, requestID, score, status); err != nil {
		return "", err
	}

	assessmentsTotal.WithLabelValues(string(status)).Inc()
	if s.emitter != nil {
		s.emitter.RiskAssessmentSubmitted(requestID, score, status, reason)
	}
	return status, nil
}

// Get returns a single request by ID.
func (s *Service) Get(ctx context.Context, id uint64) (*Request, error) {
	return s.store.Get(ctx, id)
}

// List returns the most recent requests below the before ID, up to limit.
func (s *Service) List(ctx context.Context, limit int, before uint64) ([]*Request, error) {
	return s.store.List(ctx, limit, before)
}
