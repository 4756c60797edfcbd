package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sketchUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamsketch",
		Name:      "sketch_updates_total",
		Help:      "Number of update operations applied, per sketch.",
	}, []string{"sketch", "type"})

	sketchQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamsketch",
		Name:      "sketch_queries_total",
		Help:      "Number of point queries answered, per sketch.",
	}, []string{"sketch", "type"})
)
