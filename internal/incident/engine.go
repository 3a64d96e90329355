package incident

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mbd888/bridgegate/internal/access"
	"github.com/mbd888/bridgegate/internal/quota"
	"github.com/mbd888/bridgegate/internal/traces"
)

var (
	reportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgegate",
		Subsystem: "incident",
		Name:      "reports_total",
		Help:      "Incident reports analyzed by classification.",
	}, []string{"classification"})

	riskLevelGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate",
		Subsystem: "incident",
		Name:      "risk_level",
		Help:      "Current global risk level (0-100).",
	})

	pausedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgegate",
		Subsystem: "incident",
		Name:      "paused",
		Help:      "1 when transfers are globally paused.",
	})
)

func init() {
	prometheus.MustRegister(reportsTotal, riskLevelGauge, pausedGauge)
}

// Emitter publishes incident signals. Fire-and-forget.
type Emitter interface {
	SecurityAlert(level string, vectors []string)
	SecurityWarning(warningType string, latencyMs uint64)
	MEVActivityDetected(action string)
}

// Engine owns the global pause flag and risk level, and rewrites the quota
// ledger's global ceiling in response to incident reports.
type Engine struct {
	mu         sync.RWMutex
	paused     bool
	riskLevel  uint64
	lastUpdate time.Time

	acl     *access.Controller
	ledger  *quota.Ledger
	emitter Emitter
}

// NewEngine creates the incident analysis engine.
func NewEngine(acl *access.Controller, ledger *quota.Ledger) *Engine {
	return &Engine{acl: acl, ledger: ledger}
}

// WithEmitter attaches a signal emitter.
func (e *Engine) WithEmitter(em Emitter) *Engine {
	e.emitter = em
	return e
}

// Paused reports the global pause flag. Satisfies transfer.PauseState.
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paused
}

// State returns the current enforcement snapshot.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return State{
		Paused:      e.paused,
		RiskLevel:   e.riskLevel,
		GlobalLimit: e.ledger.GlobalLimit(),
		LastUpdate:  e.lastUpdate,
	}
}

// Analyze runs one incident report through the decision tree and applies
// exactly one branch's effects. Caller must be the trusted assessor or the
// owner. ThreatScore over 100 is rejected before any state changes.
func (e *Engine) Analyze(ctx context.Context, caller string, report *Report) (*Summary, error) {
	_, span := traces.StartSpan(ctx, "incident.analyze",
		attribute.Int64("incident.threat_score", int64(report.Metrics.ThreatScore)),
	)
	defer span.End()

	if err := e.acl.Require(caller, access.RoleAssessor, access.RoleOwner); err != nil {
		return nil, err
	}
	if report.Metrics.ThreatScore > MaxThreatScore {
		return nil, ErrInvalidReport
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	classification := Classify(report)
	span.SetAttributes(attribute.String("incident.classification", string(classification)))

	switch classification {
	case ClassificationCritical:
		// Circuit break: pause, max risk, zero ceiling.
		e.paused = true
		e.riskLevel = MaxThreatScore
		e.ledger.SetGlobalLimit(0)
		if e.emitter != nil {
			e.emitter.SecurityAlert("CRITICAL", report.Vectors.ActiveVectors())
		}

	case ClassificationWarning:
		e.riskLevel = report.Metrics.ThreatScore
		e.ledger.QuarterGlobalLimit()
		if e.emitter != nil {
			if report.Vectors.AnomalousVolume {
				e.emitter.SecurityWarning("anomalous-volume", 0)
			}
			if report.Vectors.LatencySpike {
				e.emitter.SecurityWarning("latency-spike", report.Metrics.CurrentLatency)
			}
		}

	case ClassificationNormal:
		if report.Metrics.ThreatScore < recoveryScoreBelow {
			e.ledger.RestoreGlobalLimit()
		}
		e.riskLevel = report.Metrics.ThreatScore
		e.paused = false
	}

	// Observability only: MEV activity never mutates state.
	if report.Vectors.MEVBotActivity && e.emitter != nil {
		e.emitter.MEVActivityDetected("monitoring-intensified")
	}

	e.lastUpdate = time.Now()

	reportsTotal.WithLabelValues(string(classification)).Inc()
	riskLevelGauge.Set(float64(e.riskLevel))
	if e.paused {
		pausedGauge.Set(1)
	} else {
		pausedGauge.Set(0)
	}

	return &Summary{
		Classification: classification,
		RiskLevel:      e.riskLevel,
		Paused:         e.paused,
		GlobalLimit:    e.ledger.GlobalLimit(),
	}, nil
}
