package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	groupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "groups_total",
		Help:      "Event groups dispatched",
	})

	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Events dispatched, by route",
	}, []string{"route"})

	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "events_dropped_total",
		Help:      "Events skipped because shutdown interrupted their group",
	})

	resumesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "resumes_total",
		Help:      "Groups resumed after a unanimous listener vote",
	})

	listenerFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "listener_failures_total",
		Help:      "Listener or lifecycle callbacks that panicked",
	})

	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rdbg",
		Subsystem: "dispatch",
		Name:      "batch_size",
		Help:      "Model events published per group",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
	})
)

func init() {
	prometheus.MustRegister(groupsTotal, eventsTotal, droppedTotal, resumesTotal, listenerFailuresTotal, batchSize)
}
