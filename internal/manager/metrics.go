package manager

import (
	"github.com/prometheus/client_golang/prometheus"

	"chatd/pkg/types"
)

var (
	modelState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Name:      "model_state",
		Help:      "Model load state: 0=initializing 1=downloading 2=ready 3=error.",
	})
	loadAttemptsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "model_load_attempts_total",
		Help:      "Number of times an engine was asked to acquire the model.",
	})
	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "generations_total",
		Help:      "Engine generation calls by result.",
	}, []string{"result"})
	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatd",
		Name:      "generation_duration_seconds",
		Help:      "Duration of engine generation calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Name:      "queue_depth",
		Help:      "Requests holding a queue slot, in-flight included.",
	})
	inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatd",
		Name:      "inflight_generations",
		Help:      "Generations currently running on the engine (0 or 1).",
	})
	backpressureTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatd",
		Name:      "admission_rejections_total",
		Help:      "Generations rejected by admission control by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(modelState, loadAttemptsTotal, generationsTotal, generationDuration,
		queueDepth, inflight, backpressureTotal)
}

func stateValue(s types.LoadStatus) float64 {
	switch s {
	case types.LoadDownloading:
		return 1
	case types.LoadReady:
		return 2
	case types.LoadError:
		return 3
	default:
		return 0
	}
}
