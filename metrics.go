package fleetAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricRegisterSuccess counts tenant registrations that persisted an account.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts registrations rejected for an existing email.
	MetricRegisterDuplicate
	// MetricRegisterFailure counts registrations aborted by company provisioning or storage faults.
	MetricRegisterFailure
	// MetricVerifyCodeSent counts verification codes issued by Register, SendVerifyCode and UnblockAccount.
	MetricVerifyCodeSent
	// MetricVerifySuccess counts successful code checks.
	MetricVerifySuccess
	// MetricVerifyFailure counts mismatched code checks.
	MetricVerifyFailure
	// MetricVerifyBlocked counts accounts moved to BLOCKED by code checks.
	MetricVerifyBlocked
	// MetricLoginSuccess counts successful tenant logins.
	MetricLoginSuccess
	// MetricLoginFailure counts tenant logins rejected for any reason other than a lock in force.
	MetricLoginFailure
	// MetricLoginLockEntered counts temporary locks entered after repeated failures.
	MetricLoginLockEntered
	// MetricLoginRejectedLocked counts logins refused while a lock was in force.
	MetricLoginRejectedLocked
	// MetricMachineRegister counts machine account registrations.
	MetricMachineRegister
	// MetricMachineLoginSuccess counts successful machine logins.
	MetricMachineLoginSuccess
	// MetricMachineLoginFailure counts failed machine logins.
	MetricMachineLoginFailure
	// MetricTokenInvalid counts rejected bearer tokens.
	MetricTokenInvalid
	// MetricNotifyFailure counts notifications the notifier failed to deliver.
	MetricNotifyFailure
	// MetricNotifyDropped counts notifications dropped by a full queue.
	MetricNotifyDropped
	// MetricRecoveryRequest counts password recovery requests.
	MetricRecoveryRequest
	// MetricRecoverySuccess counts completed password resets.
	MetricRecoverySuccess
	// MetricRecoveryFailure counts rejected password reset attempts.
	MetricRecoveryFailure
	// MetricAccountUnblocked counts administrative unblocks.
	MetricAccountUnblocked
	// MetricAccountUnlocked counts administrative unlocks.
	MetricAccountUnlocked
	// MetricPasswordRehash counts password hashes upgraded on login.
	MetricPasswordRehash
	// MetricAuthenticateLatency is the latency histogram of token authentication.
	MetricAuthenticateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed array of cache-line padded atomic counters plus latency buckets.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns counters honoring cfg. Disabled metrics make every call a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only MetricAuthenticateLatency has buckets.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricAuthenticateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. It returns empty maps when metrics are disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthenticateLatency].buckets[i])
		}
		s.Histograms[MetricAuthenticateLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
