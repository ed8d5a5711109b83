// Package metrics exposes the Prometheus collectors for the highlight
// pipeline and its collaborators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highlight_runs_total",
			Help: "Highlight runs by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "highlight_run_duration_seconds",
			Help:    "Wall time of a full highlight run",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "highlight_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"stage"},
	)

	RunsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "highlight_runs_in_flight",
			Help: "Highlight runs currently executing",
		},
	)

	TriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highlight_triggers_total",
			Help: "Trigger requests, split by whether they joined a running job",
		},
		[]string{"result"},
	)

	ClipFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highlight_clip_failures_total",
			Help: "Clips skipped because they failed to build",
		},
		[]string{"kind"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "highlight_fallbacks_total",
			Help: "Degraded paths taken instead of failing the run",
		},
		[]string{"kind"},
	)

	VisionBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_batches_total",
			Help: "Remote vision scoring batches by outcome",
		},
		[]string{"outcome"},
	)

	FaceDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_detections_total",
			Help: "Local face/smile inferences by outcome",
		},
		[]string{"outcome"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notifications handed to each sink by outcome",
		},
		[]string{"sink", "outcome"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected websocket subscribers",
		},
	)
)
