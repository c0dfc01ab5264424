// Package metrics exposes the Prometheus metrics the pipeline tracks,
// mirroring the metric set and naming a mature proving pipeline would
// ship: per-stage success/failure counters, inflight gauges, and
// duration histograms.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every collector the pipeline registers.
type Metrics struct {
	BlocksReceivedTotal prometheus.Counter

	WitnessSuccessTotal  prometheus.Counter
	WitnessFailureTotal  prometheus.Counter
	WitnessDuration      prometheus.Histogram
	InflightWitnessTasks prometheus.Gauge

	ProofSuccessTotal  prometheus.Counter
	ProofFailureTotal  prometheus.Counter
	ProofDuration      prometheus.Histogram
	InflightProofTasks prometheus.Gauge

	LastProcessedBlock prometheus.Gauge

	EthproofsRequestSuccessTotal prometheus.Counter
	EthproofsRequestFailureTotal prometheus.Counter
	EthproofsRequestDuration     prometheus.Histogram
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "blocks_received_total",
			Help:      "Total blocks handed to a prover worker.",
		}),
		WitnessSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "witness_success_total",
			Help:      "Total successful CPU witness generations.",
		}),
		WitnessFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "witness_failure_total",
			Help:      "Total failed CPU witness generations.",
		}),
		WitnessDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ethprover",
			Name:      "witness_duration_seconds",
			Help:      "CPU witness generation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		InflightWitnessTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ethprover",
			Name:      "inflight_witness_tasks",
			Help:      "CPU witness generations currently in progress.",
		}),
		ProofSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "proof_success_total",
			Help:      "Total successful GPU proof generations.",
		}),
		ProofFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "proof_failure_total",
			Help:      "Total failed GPU proof generations.",
		}),
		ProofDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ethprover",
			Name:      "proof_duration_seconds",
			Help:      "GPU proof generation latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		InflightProofTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ethprover",
			Name:      "inflight_proof_tasks",
			Help:      "GPU proof generations currently in progress.",
		}),
		LastProcessedBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ethprover",
			Name:      "last_processed_block",
			Help:      "Number of the last block this instance processed.",
		}),
		EthproofsRequestSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "ethproofs_request_success_total",
			Help:      "Total successful ethproofs.org submission requests.",
		}),
		EthproofsRequestFailureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ethprover",
			Name:      "ethproofs_request_failure_total",
			Help:      "Total terminal ethproofs.org submission failures.",
		}),
		EthproofsRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ethprover",
			Name:      "ethproofs_request_duration_seconds",
			Help:      "ethproofs.org submission request latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.BlocksReceivedTotal,
		m.WitnessSuccessTotal, m.WitnessFailureTotal, m.WitnessDuration, m.InflightWitnessTasks,
		m.ProofSuccessTotal, m.ProofFailureTotal, m.ProofDuration, m.InflightProofTasks,
		m.LastProcessedBlock,
		m.EthproofsRequestSuccessTotal, m.EthproofsRequestFailureTotal, m.EthproofsRequestDuration,
	)

	return m
}

// InflightGuard increments a gauge on construction and decrements it
// exactly once, however the caller's scope exits: normal return,
// error return, or panic.
type InflightGuard struct {
	gauge prometheus.Gauge
	start time.Time
}

// StartInflight constructs an InflightGuard, immediately incrementing
// gauge.
func StartInflight(gauge prometheus.Gauge) *InflightGuard {
	gauge.Inc()
	return &InflightGuard{gauge: gauge, start: time.Now()}
}

// Done decrements the gauge and records elapsed time against duration.
// Callers defer Done immediately after StartInflight.
func (g *InflightGuard) Done(duration prometheus.Histogram) {
	g.gauge.Dec()
	if duration != nil {
		duration.Observe(time.Since(g.start).Seconds())
	}
}
