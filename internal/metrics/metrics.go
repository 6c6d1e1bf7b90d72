// Package metrics holds the Prometheus collectors the node daemon exposes
// for cluster membership and pipeline throughput, and the HTTP handler that
// serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ClusterNodesTotal is the number of nodes this node's registry
	// currently considers live, updated on every membership change.
	ClusterNodesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veridian_cluster_nodes_total",
			Help: "Number of nodes currently tracked by this node's registry",
		},
	)

	// PipelinesRunning, PipelinesSucceeded and PipelinesFailed mirror
	// pipeline.ServiceCounters, so a scrape sees the same numbers a
	// pipeline-observe call would return.
	PipelinesRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veridian_pipelines_running",
			Help: "Number of extraction pipelines currently running on this node",
		},
	)

	PipelinesSucceeded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veridian_pipelines_succeeded_total",
			Help: "Total number of extraction pipelines that have reached PipelineSucceeded",
		},
	)

	PipelinesFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "veridian_pipelines_failed_total",
			Help: "Total number of extraction pipelines that have reached a failed terminal state",
		},
	)
)

func init() {
	prometheus.MustRegister(ClusterNodesTotal)
	prometheus.MustRegister(PipelinesRunning)
	prometheus.MustRegister(PipelinesSucceeded)
	prometheus.MustRegister(PipelinesFailed)
}

// Handler returns the HTTP handler a node daemon mounts at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
