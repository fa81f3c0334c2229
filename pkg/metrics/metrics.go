// Package metrics provides Prometheus metrics for the Sprig service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReelTransitionsTotal tracks reel lifecycle transitions
	ReelTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "lifecycle",
			Name:      "reel_transitions_total",
			Help:      "Total number of reel lifecycle transitions",
		},
		[]string{"from", "to"},
	)

	// RenderJobsTotal tracks render jobs by outcome
	RenderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "render",
			Name:      "jobs_total",
			Help:      "Total number of render jobs by outcome",
		},
		[]string{"status"},
	)

	// SharesRecordedTotal tracks recorded shares by channel
	SharesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "virality",
			Name:      "shares_recorded_total",
			Help:      "Total number of recorded share events",
		},
		[]string{"channel"},
	)

	// InstallsAttributedTotal tracks installs attributed to reels
	InstallsAttributedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "virality",
			Name:      "installs_attributed_total",
			Help:      "Total number of installs attributed to shared reels",
		},
	)

	// ModerationFlagsTotal tracks flags by kind and source
	ModerationFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "moderation",
			Name:      "flags_total",
			Help:      "Total number of moderation flags raised",
		},
		[]string{"kind", "source"},
	)

	// ModerationVerdictsTotal tracks human review verdicts
	ModerationVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "moderation",
			Name:      "verdicts_total",
			Help:      "Total number of human review verdicts",
		},
		[]string{"verdict"},
	)

	// LineageQueryDuration tracks lineage traversal latency per backend
	LineageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sprig",
			Subsystem: "lineage",
			Name:      "query_duration_seconds",
			Help:      "Duration of lineage traversal queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"backend", "direction"},
	)

	// ShareCounterDriftCorrected tracks counters fixed by reconciliation
	ShareCounterDriftCorrected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sprig",
			Subsystem: "virality",
			Name:      "share_counter_drift_corrected_total",
			Help:      "Total number of reels whose share counter was corrected by reconciliation",
		},
	)
)
