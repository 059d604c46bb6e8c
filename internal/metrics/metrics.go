// Package metrics instruments the pipeline runtime with Prometheus
// counters and histograms (events processed, per-algorithm execute
// wall time, errors by kind), grounded on the teacher's own use of
// github.com/prometheus/client_golang throughout internal/memorystore
// and pkg/metricstore. Purely observational: nothing in spec §4-§8
// depends on metrics being collected or served.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahcal-reco/ahcal-reco/pkg/rlog"
)

var (
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ahcalreco_events_processed_total",
		Help: "Number of events that completed the full algorithm sequence.",
	})

	AlgExecuteSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ahcalreco_alg_execute_seconds",
		Help:    "Wall time of one algorithm's Execute call, per algorithm name.",
		Buckets: prometheus.DefBuckets,
	}, []string{"alg"})

	ErrorsByKind = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ahcalreco_errors_total",
		Help: "Pipeline errors, partitioned by error kind.",
	}, []string{"kind"})
)

// ObserveExecute times fn's execution under the named algorithm's
// histogram, returning whatever error fn returns.
func ObserveExecute(alg string, fn func() error) error {
	start := time.Now()
	err := fn()
	AlgExecuteSeconds.WithLabelValues(alg).Observe(time.Since(start).Seconds())
	return err
}

// Server serves /metrics via promhttp, plain net/http with no router —
// matching memorystore/api.go's HandleHealthCheck, which itself writes
// directly to an http.ResponseWriter rather than reaching for a router
// dependency.
type Server struct {
	httpServer *http.Server
}

// NewServer binds a /metrics handler to addr. The server does not
// start listening until Start is called.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the server in the background, logging (not panicking) on
// any error other than the expected shutdown one.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rlog.Errorf("metrics server: %v", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
