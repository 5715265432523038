// Package network reports whether the connection is good enough for
// speculative traffic. The platform pushes its latest connection signals;
// the prefetcher asks a Monitor before spending bandwidth.
package network

import (
	"strings"
	"sync/atomic"
	"time"
)

// Monitor answers whether connectivity is degraded. IsDegraded must be
// cheap and never block.
type Monitor interface {
	IsDegraded() bool
}

// AlwaysAdequate is the monitor of platforms that expose no signal.
type AlwaysAdequate struct{}

func (AlwaysAdequate) IsDegraded() bool { return false }

// Signals is the latest connection report. Nil fields were not reported
// by the platform.
type Signals struct {
	SaveData      *bool          `json:"saveData,omitempty"`
	EffectiveType *string        `json:"effectiveType,omitempty"`
	RTT           *time.Duration `json:"rtt,omitempty"`
	DownlinkMbps  *float64       `json:"downlinkMbps,omitempty"`
}

// Thresholds decide when signals count as degraded.
type Thresholds struct {
	// MaxDegradedType is the best effective type still considered degraded.
	MaxDegradedType string        `yaml:"max_degraded_type" json:"max_degraded_type" validate:"omitempty,oneof=slow-2g 2g 3g 4g"`
	MaxRTT          time.Duration `yaml:"max_rtt" json:"max_rtt" validate:"min=0"`
	MinDownlinkMbps float64       `yaml:"min_downlink_mbps" json:"min_downlink_mbps" validate:"min=0"`
}

// DefaultThresholds match the usual "slow connection" cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxDegradedType: "2g",
		MaxRTT:          500 * time.Millisecond,
		MinDownlinkMbps: 1.0,
	}
}

var effectiveTypeRank = map[string]int{
	"slow-2g": 1,
	"2g":      2,
	"3g":      3,
	"4g":      4,
}

// Degraded evaluates sig against t. Missing signals never count.
func (t Thresholds) Degraded(sig Signals) bool {
	if sig.SaveData != nil && *sig.SaveData {
		return true
	}
	if sig.EffectiveType != nil && t.MaxDegradedType != "" {
		rank, known := effectiveTypeRank[strings.ToLower(*sig.EffectiveType)]
		if known && rank <= effectiveTypeRank[t.MaxDegradedType] {
			return true
		}
	}
	if sig.RTT != nil && t.MaxRTT > 0 && *sig.RTT > t.MaxRTT {
		return true
	}
	if sig.DownlinkMbps != nil && t.MinDownlinkMbps > 0 && *sig.DownlinkMbps < t.MinDownlinkMbps {
		return true
	}
	return false
}

// SignalMonitor evaluates the most recently reported signals. Reports and
// reads may happen from different goroutines.
type SignalMonitor struct {
	signals    atomic.Pointer[Signals]
	thresholds atomic.Pointer[Thresholds]
}

// NewSignalMonitor returns a monitor with no signals reported yet, which
// is not degraded.
func NewSignalMonitor(t Thresholds) *SignalMonitor {
	m := &SignalMonitor{}
	m.thresholds.Store(&t)
	return m
}

// Report replaces the current signals.
func (m *SignalMonitor) Report(sig Signals) {
	m.signals.Store(&sig)
}

// SetThresholds replaces the thresholds, e.g. after a config reload.
func (m *SignalMonitor) SetThresholds(t Thresholds) {
	m.thresholds.Store(&t)
}

// Signals returns the last report.
func (m *SignalMonitor) Signals() (Signals, bool) {
	sig := m.signals.Load()
	if sig == nil {
		return Signals{}, false
	}
	return *sig, true
}

func (m *SignalMonitor) IsDegraded() bool {
	sig := m.signals.Load()
	if sig == nil {
		return false
	}
	return m.thresholds.Load().Degraded(*sig)
}
