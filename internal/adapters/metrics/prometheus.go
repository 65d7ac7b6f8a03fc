package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/ports"
)

const namespace = "caprepair"

// Recorder exports validation and write outcomes on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	validations   *prometheus.CounterVec
	writes        *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec
}

var _ ports.Metrics = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validations_total",
			Help:      "Record admission checks by kind, mode and outcome.",
		}, []string{"kind", "mode", "outcome"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Storage writes by kind, action and outcome.",
		}, []string{"kind", "action", "outcome"}),
		writeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Storage write latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "action"}),
	}
	r.registry.MustRegister(
		r.validations,
		r.writes,
		r.writeDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) ObserveValidation(kind domain.Kind, mode domain.Mode, outcome string) {
	r.validations.WithLabelValues(string(kind), string(mode), outcome).Inc()
}

func (r *Recorder) ObserveWrite(kind domain.Kind, action domain.ChangeAction, outcome string, elapsed time.Duration) {
	r.writes.WithLabelValues(string(kind), string(action), outcome).Inc()
	r.writeDuration.WithLabelValues(string(kind), string(action)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
