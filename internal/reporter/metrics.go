package reporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksMined = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnsim",
		Subsystem: "bitcoin",
		Name:      "blocks_total",
		Help:      "Blocks recorded by the simulation, labeled by lifecycle event.",
	}, []string{"event"})

	attackEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnsim",
		Subsystem: "bitcoin",
		Name:      "attack_events_total",
		Help:      "Double-spend attack state transitions, labeled by event type.",
	}, []string{"event"})

	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cnsim",
		Subsystem: "bitcoin",
		Name:      "events_dispatched_total",
		Help:      "Scheduler events dispatched, labeled by event kind.",
	}, []string{"kind"})

	errorsLogged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cnsim",
		Subsystem: "bitcoin",
		Name:      "structure_errors_total",
		Help:      "Non-fatal structure/event errors encountered during dispatch.",
	})
)
