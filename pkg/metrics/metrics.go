package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socrates_research_runs_total",
			Help: "Total number of research runs by final status",
		},
		[]string{"status"},
	)

	Iterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "socrates_research_iterations",
			Help:    "Research loop iterations per completed run",
			Buckets: []float64{1, 2, 3, 5, 8},
		},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socrates_research_phase_duration_seconds",
			Help:    "Time spent in each research phase",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// External call metrics
	GeneratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socrates_generator_calls_total",
			Help: "Text generation calls by calling component",
		},
		[]string{"component"},
	)

	ParseFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socrates_parse_fallbacks_total",
			Help: "Generated outputs that did not parse and fell back to a default",
		},
		[]string{"component"},
	)

	SearchCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socrates_search_calls_total",
			Help: "Total number of search provider calls",
		},
	)

	// Job metrics
	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "socrates_jobs_active",
			Help: "Research jobs currently running in the background",
		},
	)

	StreamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "socrates_stream_events_dropped_total",
			Help: "Progress events dropped for slow stream subscribers",
		},
	)
)
