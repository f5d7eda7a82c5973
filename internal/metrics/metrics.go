// Package metrics exposes the worker_manager observability surface named
// in SPEC_FULL.md §4.6/§6: per-worker-kind counters and gauges collected
// with github.com/prometheus/client_golang, served over a
// github.com/valyala/fasthttp listener alongside a liveness probe.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/skyforge-astro/boom/internal/nlog"
)

// Registry groups the per-worker-kind counters/gauges, keyed by worker kind
// so a single process hosting mixed pools reports cleanly. The metrics are
// registered and served, but no worker in this repository updates them.
type Registry struct {
	reg *prometheus.Registry

	PacketsProcessed  *prometheus.CounterVec
	PacketsDuplicate  *prometheus.CounterVec
	PacketsDeadLetter *prometheus.CounterVec
	ProcessLatency    *prometheus.HistogramVec
	PoolSize          *prometheus.GaugeVec
	CrossmatchErrors  *prometheus.CounterVec
}

// New builds a fresh Registry with all metrics registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		PacketsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boom",
			Name:      "packets_processed_total",
			Help:      "Total packets fully processed by worker kind.",
		}, []string{"worker"}),
		PacketsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boom",
			Name:      "packets_duplicate_total",
			Help:      "Total packets dropped as duplicates.",
		}, []string{"worker"}),
		PacketsDeadLetter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boom",
			Name:      "packets_dead_letter_total",
			Help:      "Total packets pushed to the dead-letter list.",
		}, []string{"worker"}),
		ProcessLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "boom",
			Name:      "process_latency_seconds",
			Help:      "Per-packet processing latency by worker kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker"}),
		PoolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "boom",
			Name:      "pool_size",
			Help:      "Current worker count by pool kind.",
		}, []string{"pool"}),
		CrossmatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boom",
			Name:      "crossmatch_errors_total",
			Help:      "Total cross-match catalog query failures.",
		}, []string{"catalog"}),
	}
	reg.MustRegister(r.PacketsProcessed, r.PacketsDuplicate, r.PacketsDeadLetter, r.ProcessLatency, r.PoolSize, r.CrossmatchErrors)
	return r
}

// Serve starts a fasthttp listener on addr exposing /metrics (Prometheus
// text exposition) and /healthz (always 200 while the process is up — a
// liveness, not readiness, probe). Serve blocks until the listener errors.
func (r *Registry) Serve(addr string) error {
	promHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}))

	handler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/metrics":
			promHandler(ctx)
		case "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	nlog.Infof("metrics: listening on %s", addr)
	return fasthttp.ListenAndServe(addr, handler)
}
