package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds only pdfrename collectors so the textfile stays small.
var Registry = prometheus.NewRegistry()

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrename",
			Name:      "jobs_total",
			Help:      "Files processed by outcome (renamed, skipped, failed)",
		},
		[]string{"outcome"},
	)

	providerReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfrename",
			Name:      "provider_requests_total",
			Help:      "Total provider requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfrename",
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of provider requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pdfrename",
			Name:      "stage_duration_seconds",
			Help:      "Duration of per-file stages (extract, infer, rename, refresh)",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pdfrename",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last batch finished",
		},
	)
)

func init() {
	Registry.MustRegister(jobsTotal, providerReqs, providerLatency, stageDuration, lastRun)
}

func ObserveProvider(provider, model, result string, dur time.Duration) {
	providerReqs.WithLabelValues(provider, model, result).Inc()
	providerLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

// IncRefusal tracks content refusal events by provider and model
func IncRefusal(provider, model string) {
	providerReqs.WithLabelValues(provider, model, "content_refused").Inc()
}

func IncJob(outcome string) { jobsTotal.WithLabelValues(outcome).Inc() }

func ObserveStage(stage string, dur time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(dur.Seconds())
}

func MarkRunFinished(t time.Time) { lastRun.Set(float64(t.Unix())) }

// WriteTextfile dumps the registry in the node-exporter textfile format.
// The write goes through a temp file so collectors never see a partial file.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
