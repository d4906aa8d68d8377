package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	slaUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visionsla",
			Name:      "sla_updates_total",
			Help:      "SLA recomputations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	slaUpdateSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "visionsla",
			Name:      "sla_update_seconds",
			Help:      "Latency of one SLA recomputation, collection through persistence.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	auditDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visionsla",
			Name:      "audit_decisions_total",
			Help:      "Audit events recorded, partitioned by final decision.",
		},
		[]string{"decision"},
	)

	ingestRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "visionsla",
			Name:      "ingest_records_total",
			Help:      "Ingest records handled, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register attaches the service collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		slaUpdatesTotal,
		slaUpdateSeconds,
		auditDecisionsTotal,
		ingestRecordsTotal,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObserveSLAUpdate(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	slaUpdatesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	slaUpdateSeconds.Observe(duration.Seconds())
}

func ObserveAuditDecision(decision string) {
	auditDecisionsTotal.WithLabelValues(decision).Inc()
}

func ObserveIngest(kind, outcome string) {
	ingestRecordsTotal.WithLabelValues(kind, outcome).Inc()
}
