package signals

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/bridgegate/internal/idgen"
	"github.com/mbd888/bridgegate/internal/transfer"
)

var (
	emitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgegate",
		Subsystem: "signals",
		Name:      "emit_total",
		Help:      "Total signal emit attempts by type.",
	}, []string{"type"})

	emitErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgegate",
		Subsystem: "signals",
		Name:      "emit_errors_total",
		Help:      "Total signal emit failures by type.",
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(emitTotal, emitErrors)
}

// Broadcaster pushes a signal to connected realtime clients.
type Broadcaster interface {
	BroadcastSignal(sigType string, data map[string]interface{})
}

// Emitter produces the typed signals of the admission engine. All methods
// are fire-and-forget: errors are counted and logged, never returned.
// Satisfies transfer.Emitter and incident.Emitter.
type Emitter struct {
	d      *Dispatcher
	hub    Broadcaster
	logger *slog.Logger
}

// NewEmitter creates a signal emitter.
func NewEmitter(d *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{d: d, logger: logger}
}

// WithBroadcaster also streams every signal to the realtime hub.
func (e *Emitter) WithBroadcaster(b Broadcaster) *Emitter {
	e.hub = b
	return e
}

func (e *Emitter) emit(sigType Type, data map[string]interface{}) {
	if e == nil {
		return
	}
	emitTotal.WithLabelValues(string(sigType)).Inc()

	if e.hub != nil {
		e.hub.BroadcastSignal(string(sigType), data)
	}
	if e.d == nil {
		return
	}

	sig := &Signal{
		ID:        idgen.WithPrefix("sig_"),
		Type:      sigType,
		Timestamp: time.Now(),
		Data:      data,
	}
	go func() {
		// Bounds the subscription listing; each delivery carries its
		// own deadline inside the dispatcher.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.d.Dispatch(ctx, sig); err != nil {
			emitErrors.WithLabelValues(string(sigType)).Inc()
			e.logger.Warn("signal emit failed", "type", sigType, "error", err)
		}
	}()
}

// TransferInitiated emits a transfer.initiated signal.
func (e *Emitter) TransferInitiated(id uint64, sender string, amount uint64, destination string) {
	e.emit(TypeTransferInitiated, map[string]interface{}{
		"requestId":   id,
		"sender":      sender,
		"amount":      amount,
		"destination": destination,
	})
}

// RiskAssessmentSubmitted emits a risk.assessment.submitted signal.
func (e *Emitter) RiskAssessmentSubmitted(id uint64, score uint64, status transfer.Status, reason string) {
	e.emit(TypeRiskAssessment, map[string]interface{}{
		"requestId": id,
		"score":     score,
		"status":    string(status),
		"reason":    reason,
	})
}

// SecurityAlert emits a security.alert signal.
func (e *Emitter) SecurityAlert(level string, vectors []string) {
	e.emit(TypeSecurityAlert, map[string]interface{}{
		"level":   level,
		"vectors": vectors,
	})
}

// SecurityWarning emits a security.warning signal. The latency field is
// included only for latency-spike warnings.
func (e *Emitter) SecurityWarning(warningType string, latencyMs uint64) {
	data := map[string]interface{}{"type": warningType}
	if warningType == "latency-spike" {
		data["latency"] = latencyMs
	}
	e.emit(TypeSecurityWarning, data)
}

// MEVActivityDetected emits a mev.activity.detected signal.
func (e *Emitter) MEVActivityDetected(action string) {
	e.emit(TypeMEVActivity, map[string]interface{}{
		"action": action,
	})
}
