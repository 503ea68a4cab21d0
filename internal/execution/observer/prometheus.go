package observer

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coderun"

// PrometheusRecorder exports execution metrics to a Prometheus registry.
type PrometheusRecorder struct {
	compiles   *prometheus.CounterVec
	compileDur *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	runDur     *prometheus.HistogramVec
	runMemory  *prometheus.HistogramVec
	failures   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the execution collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compile stages by language and outcome.",
		}, []string{"language", "ok"}),
		compileDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_ms",
			Help:      "Compile stage wall time in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"language"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_total",
			Help:      "Completed run stages by language and exit code.",
		}, []string{"language", "exit_code"}),
		runDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_ms",
			Help:      "Run stage wall time in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"language"}),
		runMemory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_peak_memory_kb",
			Help:      "Sampled peak resident memory of the run stage in kilobytes.",
			Buckets:   prometheus.ExponentialBuckets(256, 2, 14),
		}, []string{"language"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_failures_total",
			Help:      "Executions aborted before a result was produced.",
		}, []string{"language", "reason"}),
	}
	collectors := []prometheus.Collector{r.compiles, r.compileDur, r.runs, r.runDur, r.runMemory, r.failures}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) ObserveCompile(ctx context.Context, languageID string, ok bool, timeMs float64) {
	r.compiles.WithLabelValues(languageID, strconv.FormatBool(ok)).Inc()
	r.compileDur.WithLabelValues(languageID).Observe(timeMs)
}

func (r *PrometheusRecorder) ObserveRun(ctx context.Context, languageID string, exitCode int, timeMs float64, memoryKB float64) {
	r.runs.WithLabelValues(languageID, strconv.Itoa(exitCode)).Inc()
	r.runDur.WithLabelValues(languageID).Observe(timeMs)
	r.runMemory.WithLabelValues(languageID).Observe(memoryKB)
}

func (r *PrometheusRecorder) ObserveFailure(ctx context.Context, languageID string, reason string) {
	r.failures.WithLabelValues(languageID, reason).Inc()
}
