package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	runDuration   *prom.HistogramVec
	runOutcomes   *prom.CounterVec
	fetchDuration *prom.HistogramVec
	filesWritten  *prom.CounterVec
	webhooks      *prom.CounterVec
	queueDepth    prom.Gauge
}

// NewPrometheusRecorder constructs and registers metrics on the given registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docsync",
		Name:      "run_duration_seconds",
		Help:      "Total duration of sync runs",
		Buckets:   prom.DefBuckets,
	}, []string{"source"})
	pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docsync",
		Name:      "run_outcomes_total",
		Help:      "Sync run outcomes by final status",
	}, []string{"source", "outcome"})
	pr.fetchDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "docsync",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of upstream clone/update operations",
		Buckets:   prom.DefBuckets,
	}, []string{"source", "result"})
	pr.filesWritten = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docsync",
		Name:      "files_written_total",
		Help:      "Documents written into the site repository",
	}, []string{"source"})
	pr.webhooks = prom.NewCounterVec(prom.CounterOpts{
		Namespace: "docsync",
		Name:      "webhooks_total",
		Help:      "Webhook deliveries by forge and acceptance",
	}, []string{"forge", "result"})
	pr.queueDepth = prom.NewGauge(prom.GaugeOpts{
		Namespace: "docsync",
		Name:      "queue_depth",
		Help:      "Pending sync jobs in the daemon queue",
	})
	reg.MustRegister(pr.runDuration, pr.runOutcomes, pr.fetchDuration, pr.filesWritten, pr.webhooks, pr.queueDepth)
	return pr
}

// Handler returns an http.Handler exposing the registry in Prometheus format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *PrometheusRecorder) ObserveRunDuration(source string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(source string, outcome Outcome) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(source, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveFetchDuration(source string, d time.Duration, success bool) {
	if p == nil || p.fetchDuration == nil {
		return
	}
	p.fetchDuration.WithLabelValues(source, resultLabel(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFilesWritten(source string, n int) {
	if p == nil || p.filesWritten == nil || n <= 0 {
		return
	}
	p.filesWritten.WithLabelValues(source).Add(float64(n))
}

func (p *PrometheusRecorder) IncWebhook(forge string, accepted bool) {
	if p == nil || p.webhooks == nil {
		return
	}
	label := "accepted"
	if !accepted {
		label = "rejected"
	}
	p.webhooks.WithLabelValues(forge, label).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(n int) {
	if p == nil || p.queueDepth == nil {
		return
	}
	p.queueDepth.Set(float64(n))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
