// Package metrics exports tick results and tribe gauges to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moszee/generic-sim/internal/engine"
	"github.com/Moszee/generic-sim/internal/tribe"
)

// Recorder implements engine.Observer on a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	ticks      *prometheus.CounterVec
	duration   prometheus.Histogram
	deaths     prometheus.Counter
	population *prometheus.GaugeVec
	food       *prometheus.GaugeVec
	water      *prometheus.GaugeVec
	bond       *prometheus.GaugeVec
	progress   *prometheus.GaugeVec

	mu    sync.Mutex
	known map[tribe.TribeID]bool
}

// NewRecorder registers the tribesim collectors plus the Go runtime and
// process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tribesim",
			Name:      name,
			Help:      help,
		}, []string{"tribe"})
	}

	r := &Recorder{
		registry: reg,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tribesim",
			Name:      "ticks_total",
			Help:      "Tribe ticks by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tribesim",
			Name:      "tick_duration_seconds",
			Help:      "Time spent running one tribe tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		deaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tribesim",
			Name:      "deaths_total",
			Help:      "Members removed at cleanup.",
		}),
		population: gauge("population", "Living members per tribe."),
		food:       gauge("food", "Food held by families per tribe."),
		water:      gauge("water", "Water held by families per tribe."),
		bond:       gauge("bond_level", "Bond level per tribe."),
		progress:   gauge("progress_points", "Progress points per tribe."),
		known:      make(map[tribe.TribeID]bool),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ticks, r.duration, r.deaths,
		r.population, r.food, r.water, r.bond, r.progress,
	)
	return r
}

// TickCompleted records a successful tick.
func (r *Recorder) TickCompleted(report *engine.TickReport) {
	r.ticks.WithLabelValues("success").Inc()
	r.duration.Observe(report.Duration.Seconds())
	r.deaths.Add(float64(report.Deaths))

	label := tribeLabel(report.TribeID)
	r.population.WithLabelValues(label).Set(float64(report.Population))
	r.food.WithLabelValues(label).Set(float64(report.Resources.Food))
	r.water.WithLabelValues(label).Set(float64(report.Resources.Water))
	r.bond.WithLabelValues(label).Set(float64(report.BondLevel))
	r.progress.WithLabelValues(label).Set(float64(report.Progress))

	r.mu.Lock()
	r.known[report.TribeID] = true
	r.mu.Unlock()
}

// TickFailed records a failed tick.
func (r *Recorder) TickFailed(tribe.TribeID, error) {
	r.ticks.WithLabelValues("error").Inc()
}

// Forget drops the gauges of a deleted tribe.
func (r *Recorder) Forget(id tribe.TribeID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.known[id] {
		return
	}
	delete(r.known, id)
	label := tribeLabel(id)
	for _, g := range []*prometheus.GaugeVec{r.population, r.food, r.water, r.bond, r.progress} {
		g.DeleteLabelValues(label)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func tribeLabel(id tribe.TribeID) string {
	return strconv.FormatUint(uint64(id), 10)
}
