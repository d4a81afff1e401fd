// Package metrics exposes pipeline counters and account gauges to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "trader"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	Ticks    prometheus.Counter
	Plans    *prometheus.CounterVec
	Skips    *prometheus.CounterVec
	Orders   *prometheus.CounterVec
	Equity   prometheus.Gauge
	Drawdown prometheus.Gauge
}

// New creates the collectors and registers Go runtime and process metrics
// alongside them.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Pipeline ticks evaluated",
	})
	m.Plans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plans_total",
		Help:      "Trade plans produced by the risk engine",
	}, []string{"action"})
	m.Skips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skips_total",
		Help:      "Intents the risk engine declined",
	}, []string{"reason"})
	m.Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Orders submitted by the execution engine",
	}, []string{"type"})
	m.Equity = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "equity",
		Help:      "Paper account equity in USDT",
	})
	m.Drawdown = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "drawdown",
		Help:      "Paper account drawdown from peak equity in USDT",
	})

	reg.MustRegister(m.Ticks, m.Plans, m.Skips, m.Orders, m.Equity, m.Drawdown)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

func (m *Metrics) Plan(action string) {
	if m == nil {
		return
	}
	m.Plans.WithLabelValues(action).Inc()
}

func (m *Metrics) Skip(reason string) {
	if m == nil {
		return
	}
	m.Skips.WithLabelValues(reason).Inc()
}

func (m *Metrics) Order(orderType string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(orderType).Inc()
}

// Account records the latest equity and drawdown.
func (m *Metrics) Account(equity, drawdown float64) {
	if m == nil {
		return
	}
	m.Equity.Set(equity)
	m.Drawdown.Set(drawdown)
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts a metrics HTTP server on addr and returns a function that
// shuts it down.
func (m *Metrics) Serve(addr string, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", addr).Msg("metrics server listening")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}
}
