package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestThresholds_Degraded(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		signals  Signals
		degraded bool
	}{
		{"no signals", Signals{}, false},
		{"save data", Signals{SaveData: ptr(true)}, true},
		{"save data off", Signals{SaveData: ptr(false)}, false},
		{"slow-2g", Signals{EffectiveType: ptr("slow-2g")}, true},
		{"2g", Signals{EffectiveType: ptr("2g")}, true},
		{"3g", Signals{EffectiveType: ptr("3g")}, false},
		{"unknown type", Signals{EffectiveType: ptr("5g")}, false},
		{"high rtt", Signals{RTT: ptr(800 * time.Millisecond)}, true},
		{"rtt at limit", Signals{RTT: ptr(500 * time.Millisecond)}, false},
		{"low downlink", Signals{DownlinkMbps: ptr(0.4)}, true},
		{"good downlink", Signals{DownlinkMbps: ptr(10.0)}, false},
		{"good everything", Signals{
			SaveData:      ptr(false),
			EffectiveType: ptr("4g"),
			RTT:           ptr(50 * time.Millisecond),
			DownlinkMbps:  ptr(25.0),
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.degraded, th.Degraded(tt.signals))
		})
	}
}

func TestSignalMonitor_FailsOpen(t *testing.T) {
	m := NewSignalMonitor(DefaultThresholds())

	assert.False(t, m.IsDegraded())
	_, reported := m.Signals()
	assert.False(t, reported)
}

func TestSignalMonitor_ReportAndThresholdChange(t *testing.T) {
	m := NewSignalMonitor(DefaultThresholds())

	m.Report(Signals{EffectiveType: ptr("3g")})
	assert.False(t, m.IsDegraded())

	m.SetThresholds(Thresholds{MaxDegradedType: "3g"})
	assert.True(t, m.IsDegraded())

	m.Report(Signals{})
	assert.False(t, m.IsDegraded())
}

func TestAlwaysAdequate(t *testing.T) {
	var m Monitor = AlwaysAdequate{}
	assert.False(t, m.IsDegraded())
}
