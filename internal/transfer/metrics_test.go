package transfer

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, outcome string) float64 {
	t.Helper()
	m := &dto.Metric{}
	counter, err := admissionsTotal.GetMetricWithLabelValues(outcome)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	_ = counter.Write(m)
	return m.Counter.GetValue()
}

func TestAdmissionCounters(t *testing.T) {
	admissionsTotal.Reset()

	svc, _, pause, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, sender, 100, "ETH", target); err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if got := counterValue(t, "admitted"); got != 1.0 {
		t.Errorf("admitted counter: got %f, want 1", got)
	}

	pause.paused = true
	_, _ = svc.Initiate(ctx, sender, 100, "ETH", target)
	pause.paused = false
	if got := counterValue(t, "paused"); got != 1.0 {
		t.Errorf("paused counter: got %f, want 1", got)
	}

	_, _ = svc.Initiate(ctx, sender, 5000, "ETH", target)
	if got := counterValue(t, "limit_exceeded"); got != 1.0 {
		t.Errorf("limit_exceeded counter: got %f, want 1", got)
	}

	_, _ = svc.Initiate(ctx, sender, 100, "NOPE", target)
	if got := counterValue(t, "unsupported"); got != 1.0 {
		t.Errorf("unsupported counter: got %f, want 1", got)
	}
}
