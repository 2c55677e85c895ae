package trainer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes recorded in aligner_training_runs_total.
const (
	outcomeCompleted    = "completed"
	outcomeFailed       = "failed"
	outcomeTimedOut     = "timed_out"
	outcomeStopped      = "stopped"
	outcomeInsufficient = "insufficient_data"
)

var (
	// runsTotal counts finished or skipped runs by outcome
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aligner_training_runs_total",
		Help: "Training runs by outcome",
	}, []string{"outcome"})

	// runDuration tracks wall time of successful runs
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aligner_training_duration_seconds",
		Help:    "Duration of completed training runs in seconds",
		Buckets: []float64{15, 30, 60, 120, 300, 600, 900, 1080},
	})

	maxComplexityGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aligner_training_max_complexity",
		Help: "Current complexity budget",
	})

	examplesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aligner_training_examples",
		Help: "Alignment examples handed to the last launched run",
	})

	trimmedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aligner_training_trimmed_examples",
		Help: "Alignment examples removed by reduction for the last launched run",
	})
)
