// Package metrics exposes the store service's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder is what the gRPC layer reports to.
type Recorder interface {
	RecordRPC(method, code string, duration time.Duration)
	RecordSignUp(outcome string)
	RecordSignIn(outcome string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	rpcs       *prometheus.CounterVec
	rpcLatency *prometheus.HistogramVec
	signUps    *prometheus.CounterVec
	signIns    *prometheus.CounterVec
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifedash_store_rpc_total",
			Help: "Store RPCs handled, by method and status code.",
		}, []string{"method", "code"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifedash_store_rpc_duration_seconds",
			Help:    "Store RPC latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		signUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifedash_store_sign_ups_total",
			Help: "Sign-up attempts by outcome.",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifedash_store_sign_ins_total",
			Help: "Sign-in attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(c.rpcs, c.rpcLatency, c.signUps, c.signIns)

	return c
}

func (c *Collector) RecordRPC(method, code string, duration time.Duration) {
	c.rpcs.WithLabelValues(method, code).Inc()
	c.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
}

func (c *Collector) RecordSignUp(outcome string) {
	c.signUps.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordSignIn(outcome string) {
	c.signIns.WithLabelValues(outcome).Inc()
}

// Nop discards everything. Used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) RecordRPC(string, string, time.Duration) {}
func (Nop) RecordSignUp(string)                     {}
func (Nop) RecordSignIn(string)                     {}

// Handler serves the /metrics endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
