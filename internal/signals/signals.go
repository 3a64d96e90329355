// Package signals delivers the engine's side-channel diagnostics to
// external observers.
//
// Every admission, assessment, and incident decision produces a structured
// signal. Delivery is fire-and-forget over HMAC-signed webhook POSTs;
// signal emission never blocks or fails an engine operation.
package signals

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mbd888/bridgegate/internal/circuitbreaker"
	"github.com/mbd888/bridgegate/internal/retry"
)

var ErrSubscriptionNotFound = errors.New("signals: subscription not found")

// deliveryTimeout bounds one subscription's delivery, retries included.
const deliveryTimeout = 45 * time.Second

// Type identifies a signal.
type Type string

const (
	TypeTransferInitiated Type = "transfer.initiated"
	TypeRiskAssessment    Type = "risk.assessment.submitted"
	TypeSecurityAlert     Type = "security.alert"
	TypeSecurityWarning   Type = "security.warning"
	TypeMEVActivity       Type = "mev.activity.detected"
)

// Signal is one structured diagnostic record.
type Signal struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription is an observer's registered delivery endpoint. An empty
// Types list subscribes to every signal.
type Subscription struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Secret      string     `json:"-"` // HMAC signing key
	Types       []Type     `json:"types"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// wants reports whether the subscription covers a signal type.
func (s *Subscription) wants(t Type) bool {
	if len(s.Types) == 0 {
		return true
	}
	for _, st := range s.Types {
		if st == t {
			return true
		}
	}
	return false
}

// Store persists observer subscriptions.
type Store interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error
}

// Dispatcher sends signals to subscribed observers. Deliveries are retried
// with backoff; observers that keep failing trip a per-subscription circuit
// breaker and are skipped until it half-opens.
type Dispatcher struct {
	store   Store
	client  *http.Client
	breaker *circuitbreaker.Breaker
}

// NewDispatcher creates a signal dispatcher.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{
		store: store,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: circuitbreaker.New(5, 30*time.Second),
	}
}

// WithTimeout overrides the per-delivery HTTP timeout.
func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	d.client.Timeout = timeout
	return d
}

// Dispatch sends a signal to every active matching subscription. Sends run
// asynchronously; per-operation ordering is preserved by the caller
// emitting signals in order.
func (d *Dispatcher) Dispatch(ctx context.Context, sig *Signal) error {
	subs, err := d.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	for _, sub := range subs {
		if !sub.Active || !sub.wants(sig.Type) {
			continue
		}
		go func(sub *Subscription) {
			// Sends outlive the caller's context.
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
			defer cancel()
			d.send(sctx, sub, sig)
		}(sub)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, sub *Subscription, sig *Signal) {
	if !d.breaker.Allow(sub.ID) {
		return
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		d.updateError(ctx, sub, "failed to marshal signal")
		return
	}

	err = retry.Do(ctx, 3, 250*time.Millisecond, func() error {
		return d.deliver(ctx, sub, sig, payload)
	})
	if err != nil {
		d.breaker.RecordFailure(sub.ID)
		d.updateError(ctx, sub, err.Error())
		return
	}

	d.breaker.RecordSuccess(sub.ID)
	d.updateSuccess(ctx, sub)
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, sig *Signal, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bridgegate-Signal", string(sig.Type))
	req.Header.Set("X-Bridgegate-Timestamp", fmt.Sprintf("%d", sig.Timestamp.Unix()))
	if sub.Secret != "" {
		req.Header.Set("X-Bridgegate-Signature", sign(payload, sub.Secret))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Observer rejected the payload; retrying won't help.
		return retry.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
}

func sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func (d *Dispatcher) updateSuccess(ctx context.Context, sub *Subscription) {
	now := time.Now()
	sub.LastSuccess = &now
	sub.LastError = ""
	_ = d.store.Update(ctx, sub)
}

func (d *Dispatcher) updateError(ctx context.Context, sub *Subscription, msg string) {
	sub.LastError = msg
	_ = d.store.Update(ctx, sub)
}
