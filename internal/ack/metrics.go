package ack

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the acknowledgment subsystem.
type Metrics struct {
	RecordsTotal      *prometheus.CounterVec
	UndosTotal        *prometheus.CounterVec
	ReconcilesTotal   *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	OpenAlerts        prometheus.Histogram
	StaleAcksTotal    prometheus.Counter
	SnapshotsTotal    *prometheus.CounterVec
}

// NewMetrics registers and returns ack metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_ack_records_total",
			Help: "Total acknowledgment/deferral writes by state and result.",
		}, []string{"state", "result"}),
		UndosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_ack_undos_total",
			Help: "Total undo operations by result.",
		}, []string{"result"}),
		ReconcilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_reconciles_total",
			Help: "Total reconciliation passes by outcome.",
		}, []string{"outcome"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}),
		OpenAlerts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wardwatch_open_alerts_per_case",
			Help:    "Open alerts per case per reconciliation pass.",
			Buckets: prometheus.LinearBuckets(0, 2, 16), // 0 .. 30
		}),
		StaleAcksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wardwatch_stale_acks_total",
			Help: "Acknowledgments observed invalidated by a fingerprint change.",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wardwatch_snapshots_total",
			Help: "Rule-engine snapshots received by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.RecordsTotal,
		m.UndosTotal,
		m.ReconcilesTotal,
		m.ReconcileDuration,
		m.OpenAlerts,
		m.StaleAcksTotal,
		m.SnapshotsTotal,
	)

	return m
}

// Hooks are the observation points the service and snapshot sources
// invoke. A zero Hooks is a no-op, keeping tests metric-free.
type Hooks struct {
	OnRecord    func(state State, result string)
	OnUndo      func(result string)
	OnReconcile func(degraded bool, open, total int, seconds float64)
	OnStale     func(count int)
	OnSnapshot  func(result string)
}

// Hooks returns a Hooks wired to the metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnRecord: func(state State, result string) {
			m.RecordsTotal.WithLabelValues(string(state), result).Inc()
		},
		OnUndo: func(result string) {
			m.UndosTotal.WithLabelValues(result).Inc()
		},
		OnReconcile: func(degraded bool, open, _ int, seconds float64) {
			outcome := "ok"
			if degraded {
				outcome = "degraded"
			}
			m.ReconcilesTotal.WithLabelValues(outcome).Inc()
			m.ReconcileDuration.Observe(seconds)
			m.OpenAlerts.Observe(float64(open))
		},
		OnStale: func(count int) {
			m.StaleAcksTotal.Add(float64(count))
		},
		OnSnapshot: func(result string) {
			m.SnapshotsTotal.WithLabelValues(result).Inc()
		},
	}
}

func (h Hooks) onRecord(state State, result string) {
	if h.OnRecord != nil {
		h.OnRecord(state, result)
	}
}

func (h Hooks) onUndo(result string) {
	if h.OnUndo != nil {
		h.OnUndo(result)
	}
}

func (h Hooks) onReconcile(degraded bool, open, total int, seconds float64) {
	if h.OnReconcile != nil {
		h.OnReconcile(degraded, open, total, seconds)
	}
}

func (h Hooks) onStale(count int) {
	if h.OnStale != nil && count > 0 {
		h.OnStale(count)
	}
}

// OnSnapshotResult is the exported no-op-safe snapshot hook used by
// snapshot sources.
func (h Hooks) OnSnapshotResult(result string) {
	if h.OnSnapshot != nil {
		h.OnSnapshot(result)
	}
}
