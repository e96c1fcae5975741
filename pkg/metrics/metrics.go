package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics. promauto registers them with the default registry on init.

var (
	// HttpRequestsTotal counts requests, labeled by method, path, and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektormatch_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektormatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// MatchRunsTotal counts matching runs by outcome
	// (ok, persist_error, invalid_input, snapshot_error, canceled, error).
	MatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektormatch_match_runs_total",
			Help: "Total number of subgraph matching runs",
		},
		[]string{"outcome"},
	)

	// MatchDuration measures a whole matching run, snapshot to persistence.
	// Layer products are cubic in the large side, so buckets reach minutes.
	MatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kektormatch_match_duration_seconds",
			Help:    "Duration of subgraph matching runs in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 120, 600},
		},
	)

	// MatchedSubgraphs observes how many subgraphs each run produced.
	MatchedSubgraphs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kektormatch_matched_subgraphs",
			Help:    "Number of matched subgraphs per run",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// GraphNodes tracks the node count of the embedded graph store.
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektormatch_graph_nodes",
			Help: "Total number of nodes in the graph store",
		},
	)

	// GraphEdges tracks the edge count of the embedded graph store.
	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektormatch_graph_edges",
			Help: "Total number of edges in the graph store",
		},
	)

	// ClusterRunsTotal counts clustering runs by outcome.
	ClusterRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektormatch_cluster_runs_total",
			Help: "Total number of node clustering runs",
		},
		[]string{"outcome"},
	)
)
