// Package incident turns aggregate threat reports into global enforcement
// state.
//
// Each report is classified fresh as Critical, Warning, or Normal; the
// engine keeps no memory of past classifications beyond the numeric state a
// report leaves behind. Repeated Warning reports compound by quartering the
// global ceiling; a calm Normal report is the only path back to the system
// maximum.
package incident

import (
	"errors"
	"time"
)

var ErrInvalidReport = errors.New("incident: invalid report")

// Classification is the severity bucket a report lands in.
type Classification string

const (
	ClassificationCritical Classification = "critical"
	ClassificationWarning  Classification = "warning"
	ClassificationNormal   Classification = "normal"
)

// Threat score boundaries for classification and recovery.
const (
	MaxThreatScore     = 100
	criticalScoreAbove = 80 // threatScore > 80 forces Critical
	warningScoreAbove  = 50 // threatScore > 50 forces at least Warning
	recoveryScoreBelow = 10 // threatScore < 10 restores the ceiling in full
)

// ThreatVectors are the boolean indicators of an incident report.
type ThreatVectors struct {
	LiquidityDrain  bool `json:"liquidityDrain"`
	FlashLoanAttack bool `json:"flashLoanAttack"`
	LatencySpike    bool `json:"latencySpike"`
	AnomalousVolume bool `json:"anomalousVolume"`
	MEVBotActivity  bool `json:"mevBotActivity"`
}

// Metrics are the numeric indicators of an incident report.
type Metrics struct {
	CurrentLatency  uint64 `json:"currentLatency"` // milliseconds
	PendingTxCount  uint64 `json:"pendingTxCount"`
	AverageGasPrice uint64 `json:"averageGasPrice"`
	ThreatScore     uint64 `json:"threatScore"` // 0..100
}

// Report is one aggregate incident report from the assessor.
type Report struct {
	Vectors ThreatVectors `json:"vectors"`
	Metrics Metrics       `json:"metrics"`
}

// Classify buckets a report. Checks run in priority order and are mutually
// exclusive: attack vectors dominate the numeric score.
func Classify(r *Report) Classification {
	switch {
	case r.Vectors.LiquidityDrain || r.Vectors.FlashLoanAttack || r.Metrics.ThreatScore > criticalScoreAbove:
		return ClassificationCritical
	case r.Vectors.AnomalousVolume || r.Vectors.LatencySpike || r.Metrics.ThreatScore > warningScoreAbove:
		return ClassificationWarning
	default:
		return ClassificationNormal
	}
}

// ActiveVectors lists the names of the set threat flags, for alert payloads.
func (v ThreatVectors) ActiveVectors() []string {
	var out []string
	if v.LiquidityDrain {
		out = append(out, "liquidity-drain")
	}
	if v.FlashLoanAttack {
		out = append(out, "flash-loan-attack")
	}
	if v.LatencySpike {
		out = append(out, "latency-spike")
	}
	if v.AnomalousVolume {
		out = append(out, "anomalous-volume")
	}
	if v.MEVBotActivity {
		out = append(out, "mev-bot-activity")
	}
	return out
}

// Summary is the engine's verdict returned to the reporter.
type Summary struct {
	Classification Classification `json:"classification"`
	RiskLevel      uint64         `json:"riskLevel"`
	Paused         bool           `json:"paused"`
	GlobalLimit    uint64         `json:"globalLimit"`
}

// State is the read-committed global enforcement snapshot.
type State struct {
	Paused      bool      `json:"paused"`
	RiskLevel   uint64    `json:"riskLevel"`
	GlobalLimit uint64    `json:"globalLimit"`
	LastUpdate  time.Time `json:"lastUpdate"`
}
