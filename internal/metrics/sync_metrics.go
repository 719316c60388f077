package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics 同步引擎的 Prometheus 指标；nil 接收者上的方法均为空操作
type SyncMetrics struct {
	adapterCalls   *prometheus.CounterVec
	adapterLatency *prometheus.HistogramVec
	pairOutcomes   *prometheus.CounterVec
	retries        *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	batches        *prometheus.CounterVec
	staleMarked    prometheus.Counter
}

// New 在 registerer 上注册全部指标；registerer 为 nil 时使用默认注册表
func New(registerer prometheus.Registerer) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &SyncMetrics{
		adapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_adapter_calls_total",
			Help: "Adapter operations dispatched, by platform, operation and result.",
		}, []string{"platform", "operation", "result"}),
		adapterLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listing_sync_adapter_call_duration_seconds",
			Help:    "Adapter operation latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"platform", "operation"}),
		pairOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_pair_outcomes_total",
			Help: "Final outcome per (business, platform) pair in a batch.",
		}, []string{"platform", "outcome", "reason"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_retries_total",
			Help: "Retries issued after rate limiting or transient network errors.",
		}, []string{"platform", "reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_status_transitions_total",
			Help: "Sync mapping status transitions.",
		}, []string{"from", "to"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_sync_batches_total",
			Help: "Finished batches by final state.",
		}, []string{"state"}),
		staleMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_sync_stale_marked_total",
			Help: "Synced mappings marked stale by drift detection.",
		}),
	}
	registerer.MustRegister(
		m.adapterCalls,
		m.adapterLatency,
		m.pairOutcomes,
		m.retries,
		m.transitions,
		m.batches,
		m.staleMarked,
	)
	return m
}

func (m *SyncMetrics) ObserveCall(platform, operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	m.adapterCalls.WithLabelValues(platform, operation, result).Inc()
	m.adapterLatency.WithLabelValues(platform, operation).Observe(elapsed.Seconds())
}

func (m *SyncMetrics) ObserveOutcome(platform, outcome, reason string) {
	if m == nil {
		return
	}
	m.pairOutcomes.WithLabelValues(platform, outcome, reason).Inc()
}

func (m *SyncMetrics) ObserveRetry(platform, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(platform, reason).Inc()
}

func (m *SyncMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *SyncMetrics) ObserveBatch(state string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(state).Inc()
}

func (m *SyncMetrics) ObserveStale(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.staleMarked.Add(float64(n))
}
