package checkpoint

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultRetentionSchedule prunes once a day at 02:00: checkpoint
// retention is a daily housekeeping concern, not a tight ticker loop.
const DefaultRetentionSchedule = "0 2 * * *"

// Pruner runs Store.PruneExpired on a cron schedule.
type Pruner struct {
	store    *Store
	maxAge   time.Duration
	logger   *slog.Logger
	cron     *cron.Cron
}

// NewPruner creates a Pruner. schedule is a standard 5-field cron
// expression; an empty string defaults to DefaultRetentionSchedule.
func NewPruner(store *Store, maxAge time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	if schedule == "" {
		schedule = DefaultRetentionSchedule
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{store: store, maxAge: maxAge, logger: logger, cron: cron.New()}
	if _, err := p.cron.AddFunc(schedule, p.runOnce); err != nil {
		return nil, err
	}
	return p, nil
}

// Start begins the cron schedule in the background. Stop must be called
// to release its goroutine.
func (p *Pruner) Start() {
	p.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight run to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Pruner) runOnce() {
	n, err := p.store.PruneExpired(context.Background(), p.maxAge)
	if err != nil {
		p.logger.Warn("checkpoint retention prune failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		p.logger.Info("pruned expired checkpoints", slog.Int("count", n))
	}
}
