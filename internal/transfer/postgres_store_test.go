//go:build integration

package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mbd888/bridgegate/internal/testutil"
)

func setupTestStore(t *testing.T) (*PostgresStore, func()) {
	t.Helper()
	db, cleanup := testutil.PGTest(t)
	return NewPostgresStore(db), cleanup
}

func seedRequest(t *testing.T, store *PostgresStore, id uint64) {
	t.Helper()
	req := &Request{
		ID:            id,
		Sender:        "0xaaaa000000000000000000000000000000000001",
		Amount:        100,
		Destination:   "ETH",
		TargetAddress: "0xbbbb000000000000000000000000000000000001",
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}
	if err := store.Create(context.Background(), req); err != nil {
		t.Fatalf("Create #%d failed: %v", id, err)
	}
}

func TestPostgresCreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedRequest(t, store, 0)

	got, err := store.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusPending || got.RiskScore != 0 {
		t.Errorf("fresh request: got %s/%d, want pending/0", got.Status, got.RiskScore)
	}
	if got.Amount != 100 || got.Destination != "ETH" {
		t.Errorf("unexpected request: %+v", got)
	}

	if _, err := store.Get(ctx, 999); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for unknown id, got %v", err)
	}
}

func TestPostgresSetAssessment(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	seedRequest(t, store, 0)

	if err := store.SetAssessment(ctx, 0, 65, StatusFlagged); err != nil {
		t.Fatalf("SetAssessment failed: %v", err)
	}
	got, err := store.Get(ctx, 0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusFlagged || got.RiskScore != 65 {
		t.Errorf("assessment not persisted: got %s/%d", got.Status, got.RiskScore)
	}

	if err := store.SetAssessment(ctx, 999, 10, StatusApproved); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Expected ErrInvalidRequest for unknown id, got %v", err)
	}
}

func TestPostgresListPagination(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	for i := uint64(0); i < 5; i++ {
		seedRequest(t, store, i)
	}

	page, err := store.List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != 4 || page[1].ID != 3 {
		t.Fatalf("Expected ids [4 3], got %+v", page)
	}

	page, err = store.List(ctx, 10, 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 3 || page[0].ID != 2 {
		t.Fatalf("Expected ids [2 1 0], got %+v", page)
	}
}

func TestPostgresLastID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	_, ok, err := store.LastID(ctx)
	if err != nil {
		t.Fatalf("LastID failed: %v", err)
	}
	if ok {
		t.Error("empty ledger should report ok=false")
	}

	for i := uint64(0); i < 3; i++ {
		seedRequest(t, store, i)
	}

	id, ok, err := store.LastID(ctx)
	if err != nil {
		t.Fatalf("LastID failed: %v", err)
	}
	if !ok || id != 2 {
		t.Errorf("LastID: got %d/%v, want 2/true", id, ok)
	}
}
