package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stepDuration  *prom.HistogramVec
	stepResults   *prom.CounterVec
	bundleSize    prom.Gauge
	watchEvents   prom.Counter
	notifications prom.Counter
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "elmtasks",
			Name:      "step_duration_seconds",
			Help:      "Duration of pipeline steps (clean, compile, minify)",
			Buckets:   prom.DefBuckets,
		}, []string{"step"}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "elmtasks",
			Name:      "step_results_total",
			Help:      "Pipeline step results by outcome",
		}, []string{"step", "result"}),
		bundleSize: prom.NewGauge(prom.GaugeOpts{
			Namespace: "elmtasks",
			Name:      "bundle_size_bytes",
			Help:      "Size of the last written bundle",
		}),
		watchEvents: prom.NewCounter(prom.CounterOpts{
			Namespace: "elmtasks",
			Name:      "watch_events_total",
			Help:      "Source change events that triggered a compile",
		}),
		notifications: prom.NewCounter(prom.CounterOpts{
			Namespace: "elmtasks",
			Name:      "reload_notifications_total",
			Help:      "Reload notifications sent after a finished compile",
		}),
	}
	reg.MustRegister(pr.stepDuration, pr.stepResults, pr.bundleSize, pr.watchEvents, pr.notifications)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(step string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stepResults.WithLabelValues(step, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBundleSize(bytes int) {
	if p == nil {
		return
	}
	p.bundleSize.Set(float64(bytes))
}

func (p *PrometheusRecorder) IncWatchEvent() {
	if p == nil {
		return
	}
	p.watchEvents.Inc()
}

func (p *PrometheusRecorder) IncReloadNotification() {
	if p == nil {
		return
	}
	p.notifications.Inc()
}
