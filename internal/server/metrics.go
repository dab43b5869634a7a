package server

import (
	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "chatty"

// Collector is a prometheus.Collector for prompt traffic.
type Collector struct {
	prompts        *prometheus.CounterVec
	promptDuration prometheus.Histogram
	pieces         prometheus.Counter
	busy           prometheus.Gauge
}

func NewCollector() *Collector {
	return &Collector{
		prompts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "prompts_total",
				Help:      "Prompts served, by response mode and outcome.",
			}, []string{"mode", "outcome"},
		),
		promptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "prompt_duration_seconds",
				Help:      "Time from engine call to saved session.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		pieces: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "generated_pieces_total",
				Help:      "Text pieces received from the engine.",
			},
		),
		busy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "engine_busy",
				Help:      "1 while a prediction is running.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.prompts.Describe(ch)
	c.promptDuration.Describe(ch)
	c.pieces.Describe(ch)
	c.busy.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.prompts.Collect(ch)
	c.promptDuration.Collect(ch)
	c.pieces.Collect(ch)
	c.busy.Collect(ch)
}

func metricsHandler(reg *prometheus.Registry) echo.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return func(c *echo.Context) error {
		h.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

func promptMode(stream bool) string {
	if stream {
		return "stream"
	}
	return "json"
}
