package conflict

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/internal/metrics"
	"github.com/fleettools/squawk/specialists"
)

// DefaultSweepInterval is how often Sweeper samples the active
// specialist set for new conflicts.
const DefaultSweepInterval = 10 * time.Second

// Sweeper is the Conflict Resolver's (C8) supervised background worker:
// it periodically snapshots active specialists, runs the detectors, and
// resolves whatever it finds, emitting one event per conflict. Grounded
// on specialists.HeartbeatWatcher's ticker-driven Run/sweep shape.
type Sweeper struct {
	registry  *specialists.Registry
	events    *eventstore.Store
	clock     clock.Clock
	interval  time.Duration
	threshold Severity
	logger    *slog.Logger

	seen map[string]bool // subject key -> already emitted, cleared when it drops out
}

// NewSweeper creates a Sweeper. A zero interval defaults to
// DefaultSweepInterval; a zero threshold defaults to
// DefaultAutoResolveThreshold.
func NewSweeper(registry *specialists.Registry, events *eventstore.Store, clk clock.Clock, interval time.Duration, threshold Severity, logger *slog.Logger) *Sweeper {
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if threshold == "" {
		threshold = DefaultAutoResolveThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{registry: registry, events: events, clock: clk, interval: interval, threshold: threshold, logger: logger, seen: make(map[string]bool)}
}

// Run blocks, sweeping on each tick, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				s.logger.Warn("conflict sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// sweep detects and resolves conflicts in the current active set,
// emitting a conflict.detected event for each one not already seen in a
// prior pass, and clearing seen entries whose subject has dropped out
// (so the same overlap can be re-detected if it recurs later).
func (s *Sweeper) sweep(ctx context.Context) error {
	active, err := s.registry.Active(ctx)
	if err != nil {
		return err
	}

	found := Detect(active, s.clock)
	resolved := ResolveAll(found, s.threshold)

	current := make(map[string]bool, len(resolved))
	for _, c := range resolved {
		key := string(c.Kind) + ":" + c.Subject
		current[key] = true
		if s.seen[key] {
			continue
		}
		s.seen[key] = true
		metrics.ConflictsDetected.WithLabelValues(string(c.Kind)).Inc()
		s.emit(ctx, c)
	}
	for key := range s.seen {
		if !current[key] {
			delete(s.seen, key)
		}
	}
	return nil
}

func (s *Sweeper) emit(ctx context.Context, c Conflict) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(c)
	s.events.Append(ctx, eventstore.AppendInput{
		EventType:  "conflict.detected",
		StreamType: eventstore.StreamConflict,
		StreamID:   c.ID,
		Data:       data,
	})
}
