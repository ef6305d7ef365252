package clinauth

import "sync/atomic"

// MetricID identifies a counter in the in-process metrics system.
type MetricID uint16

const (
	// MetricSessionStarted counts sessions created through StartSession.
	MetricSessionStarted MetricID = iota
	// MetricRefreshSuccess counts successful refresh calls.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh calls.
	MetricRefreshFailure
	// MetricSessionExpired counts active→expired transitions observed at refresh time.
	MetricSessionExpired
	// MetricSessionRevoked counts explicit revocations.
	MetricSessionRevoked
	// MetricCSRFRejected counts failed double-submit checks.
	MetricCSRFRejected
	// MetricValidateSuccess counts access tokens that verified.
	MetricValidateSuccess
	// MetricValidateFailure counts access tokens that failed verification.
	MetricValidateFailure
	// MetricResetRequested counts password-reset requests, known account or not.
	MetricResetRequested
	// MetricResetConfirmed counts successful reset confirmations.
	MetricResetConfirmed
	// MetricResetRejected counts failed reset confirmations.
	MetricResetRejected
	// MetricPasswordDigestMalformed counts diagnostic events from the password hasher.
	MetricPasswordDigestMalformed

	metricIDCount
)

// Metrics holds atomic counters. All operations are no-ops on a nil
// receiver or when constructed disabled.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false, every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of a counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].Load()
	}
	return snap
}
