package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK        = "ok"
	outcomeInvalid   = "invalid"
	outcomeReadError = "read_error"
)

var (
	// buildsTotal counts Build calls. Labels: outcome (ok, invalid, read_error)
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitgraph",
		Subsystem: "builder",
		Name:      "builds_total",
		Help:      "Total graph builds by outcome",
	}, []string{"outcome"})

	// entitiesTotal counts entities produced by successful builds.
	entitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitgraph",
		Subsystem: "builder",
		Name:      "entities_total",
		Help:      "Total entities built by kind",
	}, []string{"kind"})

	// unresolvedTotal counts references pointing outside the scanned range.
	unresolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gitgraph",
		Subsystem: "builder",
		Name:      "unresolved_references_total",
		Help:      "Total unresolved parent, head and target references",
	}, []string{"kind"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gitgraph",
		Subsystem: "builder",
		Name:      "build_duration_seconds",
		Help:      "Time spent building one graph",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)

func observeBuild(g *Graph, took time.Duration) {
	buildsTotal.WithLabelValues(outcomeOK).Inc()
	buildDuration.Observe(took.Seconds())
	for _, e := range g.created {
		entitiesTotal.WithLabelValues(string(e.EntityKind())).Inc()
	}
}
