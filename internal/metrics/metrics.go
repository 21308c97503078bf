// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus collectors for workflow runs, model
// calls, ingestion and web search on a private registry.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "ragrun"

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recorder holds the collectors. A nil *Recorder is valid and records
// nothing, so callers need not check whether metrics are enabled.
type Recorder struct {
	registry *prometheus.Registry

	workflowRuns   *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	llmCalls       *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	ingestDuration prometheus.Histogram
	ingestChunks   prometheus.Counter
	webSearches    *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,

		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"outcome"}),

		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_node_duration_seconds",
			Help:      "Time spent in each workflow node.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"node"}),

		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Model calls by purpose and status.",
		}, []string{"purpose", "status"}),

		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Model call latency by purpose.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"purpose"}),

		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Document ingestion time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		ingestChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Chunks embedded and indexed.",
		}),

		webSearches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websearch_requests_total",
			Help:      "Web search requests by provider and status.",
		}, []string{"provider", "status"}),
	}

	reg.MustRegister(
		r.workflowRuns,
		r.nodeDuration,
		r.llmCalls,
		r.llmDuration,
		r.ingestDuration,
		r.ingestChunks,
		r.webSearches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// =============================================================================
// RECORDING
// =============================================================================

// ObserveRun counts a finished workflow run.
func (r *Recorder) ObserveRun(outcome string) {
	if r == nil {
		return
	}
	if outcome == "" {
		outcome = "none"
	}
	r.workflowRuns.WithLabelValues(outcome).Inc()
}

// ObserveNode records one node execution.
func (r *Recorder) ObserveNode(node string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.nodeDuration.WithLabelValues(node).Observe(elapsed.Seconds())
}

// ObserveLLMCall records one model call.
func (r *Recorder) ObserveLLMCall(purpose string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	r.llmCalls.WithLabelValues(purpose, status(err)).Inc()
	r.llmDuration.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

// ObserveIngest records a completed ingestion.
func (r *Recorder) ObserveIngest(elapsed time.Duration, chunks int) {
	if r == nil {
		return
	}
	r.ingestDuration.Observe(elapsed.Seconds())
	r.ingestChunks.Add(float64(chunks))
}

// ObserveWebSearch records one web search request.
func (r *Recorder) ObserveWebSearch(provider string, err error) {
	if r == nil {
		return
	}
	r.webSearches.WithLabelValues(provider, status(err)).Inc()
}

// =============================================================================
// HTTP
// =============================================================================

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is canceled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
