package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/registry"
)

const (
	owner    = "0x1111111111111111111111111111111111111111"
	assessor = "0x2222222222222222222222222222222222222222"
	sender   = "0x3333333333333333333333333333333333333333"
	target   = "0x4444444444444444444444444444444444444444"
)

type fakePause struct {
	paused bool
}

func (f *fakePause) Paused() bool { return f.paused }

type emittedEvent struct {
	kind   string
	id     uint64
	score  uint64
	status Status
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (f *fakeEmitter) TransferInitiated(id uint64, sender string, amount uint64, destination string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{kind: "initiated", id: id})
}

func (f *fakeEmitter) RiskAssessmentSubmitted(id uint64, score uint64, status Status, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emittedEvent{kind: "assessed", id: id, score: score, status: status})
}

func newService(t *testing.T) (*Service, registry.Store, *fakePause, *fakeEmitter) {
	t.Helper()
	ctx := context.Background()

	reg := registry.NewMemoryStore()
	if err := reg.PutDestination(ctx, &registry.Destination{ID: "ETH", Active: true, DailyLimit: 1000}); err != nil {
		t.Fatalf("put destination: %v", err)
	}
	if err := reg.PutDestination(ctx, &registry.Destination{ID: "ARB", Active: false, DailyLimit: 1000}); err != nil {
		t.Fatalf("put destination: %v", err)
	}

	acl := access.NewController(owner, assessor, nil)
	ledger := quota.NewLedger(reg, quota.DefaultMaxTransferLimit)
	pause := &fakePause{}
	em := &fakeEmitter{}

	svc, err := NewService(ctx, NewMemoryStore(), reg, ledger, acl, pause)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc.WithEmitter(em), reg, pause, em
}

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		score uint64
		want  Status
	}{
		{0, StatusApproved},
		{50, StatusApproved},
		{51, StatusFlagged},
		{80, StatusFlagged},
		{81, StatusRejected},
		{100, StatusRejected},
	}
	for _, tt := range tests {
		if got := StatusForScore(tt.score); got != tt.want {
			t.Errorf("StatusForScore(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestInitiateAssignsSequentialIDs(t *testing.T) {
	svc, _, _, em := newService(t)
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		id, err := svc.Initiate(ctx, sender, 100, "ETH", target)
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if id != want {
			t.Errorf("expected id %d, got %d", want, id)
		}
	}

	if len(em.events) != 3 {
		t.Errorf("expected 3 initiated signals, got %d", len(em.events))
	}

	req, err := svc.Get(ctx, 0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if req.Status != StatusPending || req.RiskScore != 0 {
		t.Errorf("fresh request should be pending with zero score, got %s/%d", req.Status, req.RiskScore)
	}
}

func TestInitiateCheckOrder(t *testing.T) {
	svc, reg, pause, _ := newService(t)
	ctx := context.Background()

	// Paused wins over everything else.
	pause.paused = true
	if _, err := svc.Initiate(ctx, sender, 100, "ETH", target); !errors.Is(err, ErrTransferPaused) {
		t.Errorf("expected ErrTransferPaused, got %v", err)
	}
	pause.paused = false

	// Blocked sender beats destination checks.
	if err := reg.Block(ctx, sender); err != nil {
		t.Fatalf("block: %v", err)
	}
	if _, err := svc.Initiate(ctx, sender, 100, "NOPE", target); !errors.Is(err, ErrAddressBlocked) {
		t.Errorf("expected ErrAddressBlocked, got %v", err)
	}
	if err := reg.Unblock(ctx, sender); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	// Unknown destination.
	if _, err := svc.Initiate(ctx, sender, 100, "NOPE", target); !errors.Is(err, registry.ErrChainNotSupported) {
		t.Errorf("expected ErrChainNotSupported, got %v", err)
	}

	// Inactive destination behaves as unsupported.
	if _, err := svc.Initiate(ctx, sender, 100, "ARB", target); !errors.Is(err, registry.ErrChainNotSupported) {
		t.Errorf("expected ErrChainNotSupported for inactive destination, got %v", err)
	}

	// Over the daily limit.
	if _, err := svc.Initiate(ctx, sender, 1001, "ETH", target); !errors.Is(err, quota.ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestInitiateChargesQuota(t *testing.T) {
	svc, reg, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, sender, 400, "ETH", target); err != nil {
		t.Fatalf("initiate: %v", err)
	}

	dest, err := reg.GetDestination(ctx, "ETH")
	if err != nil {
		t.Fatalf("get destination: %v", err)
	}
	if dest.ConsumedVolume != 400 {
		t.Errorf("expected consumed volume 400, got %d", dest.ConsumedVolume)
	}

	// 700 more would overrun the 1000 limit.
	if _, err := svc.Initiate(ctx, sender, 700, "ETH", target); !errors.Is(err, quota.ErrLimitExceeded) {
		t.Errorf("expected ErrLimitExceeded, got %v", err)
	}

	// Failed admission must not have charged anything.
	dest, _ = reg.GetDestination(ctx, "ETH")
	if dest.ConsumedVolume != 400 {
		t.Errorf("failed admission charged quota: %d", dest.ConsumedVolume)
	}
}

func TestAssessRisk(t *testing.T) {
	svc, _, _, em := newService(t)
	ctx := context.Background()

	id, err := svc.Initiate(ctx, sender, 100, "ETH", target)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Only the assessor may assess.
	if _, err := svc.AssessRisk(ctx, sender, id, 30, ""); !errors.Is(err, access.ErrNotAuthorized) {
		t.Errorf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := svc.AssessRisk(ctx, owner, id, 30, ""); !errors.Is(err, access.ErrNotAuthorized) {
		t.Errorf("owner must not assess, got %v", err)
	}

	// Score over 100 rejected before any state change.
	if _, err := svc.AssessRisk(ctx, assessor, id, 101, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for score 101, got %v", err)
	}

	status, err := svc.AssessRisk(ctx, assessor, id, 30, "looks fine")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if status != StatusApproved {
		t.Errorf("expected approved, got %s", status)
	}

	req, _ := svc.Get(ctx, id)
	if req.Status != StatusApproved || req.RiskScore != 30 {
		t.Errorf("expected approved/30, got %s/%d", req.Status, req.RiskScore)
	}

	// Exactly once: a second assessment fails regardless of score.
	if _, err := svc.AssessRisk(ctx, assessor, id, 90, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest on re-assessment, got %v", err)
	}

	// Unknown request ID.
	if _, err := svc.AssessRisk(ctx, assessor, 999, 30, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for unknown id, got %v", err)
	}

	last := em.events[len(em.events)-1]
	if last.kind != "assessed" || last.status != StatusApproved {
		t.Errorf("expected assessed signal, got %+v", last)
	}
}

func TestAssessRejectionKeepsQuota(t *testing.T) {
	svc, reg, _, _ := newService(t)
	ctx := context.Background()

	id, err := svc.Initiate(ctx, sender, 600, "ETH", target)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	status, err := svc.AssessRisk(ctx, assessor, id, 95, "drain pattern")
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if status != StatusRejected {
		t.Errorf("expected rejected, got %s", status)
	}

	// Rejection does not refund the destination's consumed volume.
	dest, _ := reg.GetDestination(ctx, "ETH")
	if dest.ConsumedVolume != 600 {
		t.Errorf("expected consumed volume 600 after rejection, got %d", dest.ConsumedVolume)
	}
}

func TestNonceResumesFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	reg := registry.NewMemoryStore()
	if err := reg.PutDestination(ctx, &registry.Destination{ID: "ETH", Active: true, DailyLimit: 10000}); err != nil {
		t.Fatalf("put destination: %v", err)
	}
	acl := access.NewController(owner, assessor, nil)
	ledger := quota.NewLedger(reg, quota.DefaultMaxTransferLimit)

	svc, err := NewService(ctx, store, reg, ledger, acl, &fakePause{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.Initiate(ctx, sender, 10, "ETH", target); err != nil {
			t.Fatalf("initiate: %v", err)
		}
	}

	// A fresh service over the same store continues the sequence.
	svc2, err := NewService(ctx, store, reg, ledger, acl, &fakePause{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	id, err := svc2.Initiate(ctx, sender, 10, "ETH", target)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if id != 3 {
		t.Errorf("expected resumed id 3, got %d", id)
	}
}

func TestListPagination(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := svc.Initiate(ctx, sender, 10, "ETH", target); err != nil {
			t.Fatalf("initiate: %v", err)
		}
	}

	page, err := svc.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != 4 || page[1].ID != 3 {
		t.Fatalf("expected ids [4 3], got %+v", page)
	}

	// Next page starts below the last seen ID.
	page, err = svc.List(ctx, 2, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != 2 || page[1].ID != 1 {
		t.Fatalf("expected ids [2 1], got %+v", page)
	}
}
