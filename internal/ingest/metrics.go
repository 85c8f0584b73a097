package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// itemsIngested counts ingested items. Labels: outcome (inserted, existing)
	itemsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "ingest",
		Name:      "items_total",
		Help:      "Feed items received for ingest",
	}, []string{"outcome"})

	duplicatesLinked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "feedsift",
		Subsystem: "ingest",
		Name:      "duplicate_links_total",
		Help:      "Duplicate links recorded at ingest",
	})
)
