// Package metrics exposes run and generation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "evoloop"

// Collectors groups the evoloop metrics registered on one registry.
type Collectors struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	GenerationsTotal *prometheus.CounterVec
	BestFitness      *prometheus.GaugeVec
	MeanFitness      *prometheus.GaugeVec
	RunDuration      *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry so independent runners
// and tests do not collide on the global one.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by problem and status",
		}, []string{"problem", "status"}),
		GenerationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation steps executed by problem",
		}, []string{"problem"}),
		BestFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_fitness",
			Help:      "Best fitness of the latest generation by problem",
		}, []string{"problem"}),
		MeanFitness: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mean_fitness",
			Help:      "Mean fitness of the latest generation by problem",
		}, []string{"problem"}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a run in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"problem"}),
	}
}

// ObserveGeneration records one ranked generation. Generation 0 is the
// initial population and does not count as a step.
func (c *Collectors) ObserveGeneration(problem string, generation int, best, mean float64) {
	if c == nil {
		return
	}
	if generation > 0 {
		c.GenerationsTotal.WithLabelValues(problem).Inc()
	}
	c.BestFitness.WithLabelValues(problem).Set(best)
	c.MeanFitness.WithLabelValues(problem).Set(mean)
}

func (c *Collectors) ObserveRun(problem, status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RunsTotal.WithLabelValues(problem, status).Inc()
	c.RunDuration.WithLabelValues(problem).Observe(elapsed.Seconds())
}

func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
