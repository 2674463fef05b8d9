// Package metrics holds the fleet's Prometheus collectors. Unlike a
// generic metrics-provider abstraction, the collectors here are
// declared directly against a package-level registry since squawkd is
// a single binary with a fixed, known metric set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector registered below. It is separate from
// prometheus.DefaultRegisterer so tests can register a fresh App without
// tripping "duplicate metrics collector registration" across test cases.
var Registry = prometheus.NewRegistry()

var (
	MissionsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squawk_missions_submitted_total",
		Help: "Missions submitted for decomposition.",
	})

	SortieStatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squawk_sortie_status_transitions_total",
		Help: "Sortie status transitions, labeled by the new status.",
	}, []string{"status"})

	ConflictsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squawk_conflicts_detected_total",
		Help: "Conflicts detected by the sweeper, labeled by kind.",
	}, []string{"kind"})

	CheckpointsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squawk_checkpoints_created_total",
		Help: "Checkpoints saved, labeled by trigger.",
	}, []string{"trigger"})

	SpecialistsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "squawk_specialists_active",
		Help: "Specialists currently running, sampled by the heartbeat watcher.",
	})
)

func init() {
	Registry.MustRegister(
		MissionsSubmitted,
		SortieStatusTransitions,
		ConflictsDetected,
		CheckpointsCreated,
		SpecialistsActive,
	)
}

// Handler exposes Registry for an http.Server to mount at /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
