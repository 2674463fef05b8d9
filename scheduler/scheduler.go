// Package scheduler implements the Scheduler/Spawner (C7): it separates a
// validated SortieTree's sorties into independent and dependent sets,
// launches the independent set in parallel (barrier on completion), then
// the dependent set sequentially in topological order.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/lockmgr"
	"github.com/fleettools/squawk/mailbox"
	"github.com/fleettools/squawk/missionstore"
)

// Handle is whatever the Launcher capability returns to identify a
// running specialist process; the scheduler never inspects it.
type Handle any

// Launcher is the injected capability that actually starts work; the
// scheduler itself never executes workload.
type Launcher interface {
	Launch(ctx context.Context, sortie *missionstore.Sortie) (Handle, error)
}

// LaunchResult records the outcome of one sortie's launch attempt.
type LaunchResult struct {
	SortieID string
	Launched bool
	Handle   Handle
	Err      error
	Skipped  bool
	Reason   string
}

// Scheduler is the Scheduler/Spawner component.
type Scheduler struct {
	locks    *lockmgr.Manager
	missions *missionstore.Store
	mailbox  *mailbox.Bus
	events   *eventstore.Store
	launcher Launcher
	lockTimeout time.Duration // how long each file reservation is held
}

// New builds a Scheduler. lockTimeout is how long each file reservation
// is held before the lock reaper would consider it expired.
func New(locks *lockmgr.Manager, missions *missionstore.Store, bus *mailbox.Bus, events *eventstore.Store, launcher Launcher, lockTimeout time.Duration) *Scheduler {
	return &Scheduler{locks: locks, missions: missions, mailbox: bus, events: events, launcher: launcher, lockTimeout: lockTimeout}
}

// Run executes mixed mode, the default: independent sorties launch in
// parallel first, then dependent sorties launch sequentially in
// topological order. sorties must already be validated and pending.
func (s *Scheduler) Run(ctx context.Context, sorties []*missionstore.Sortie) ([]LaunchResult, error) {
	independent, dependent := partition(sorties)

	results, err := s.launchParallel(ctx, independent)
	if err != nil {
		return results, err
	}

	depResults := s.launchSequential(ctx, dependent, results)
	return append(results, depResults...), nil
}

func partition(sorties []*missionstore.Sortie) (independent, dependent []*missionstore.Sortie) {
	for _, s := range sorties {
		if len(s.Dependencies) == 0 {
			independent = append(independent, s)
		} else {
			dependent = append(dependent, s)
		}
	}
	return
}

// launchParallel launches every independent sortie concurrently and
// awaits them all. errgroup is used only for the wait-all barrier: the
// group's derived context is never read by launchOne, so one sortie's
// failure does not cancel its siblings, unlike errgroup's usual
// fail-fast idiom.
func (s *Scheduler) launchParallel(ctx context.Context, sorties []*missionstore.Sortie) ([]LaunchResult, error) {
	results := make([]LaunchResult, len(sorties))
	g, gctx := errgroup.WithContext(ctx)
	_ = gctx // deliberately unused: see doc comment above

	for i, sortie := range sorties {
		i, sortie := i, sortie
		g.Go(func() error {
			results[i] = s.launchOne(ctx, sortie)
			return nil // never propagate: a failed launch is recorded, not fatal to the group
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// launchSequential launches dependent sorties in the order given
// (assumed topological), skipping any whose dependencies have not all
// reached SortieCompleted among prior results.
func (s *Scheduler) launchSequential(ctx context.Context, sorties []*missionstore.Sortie, prior []LaunchResult) []LaunchResult {
	succeeded := make(map[string]bool)
	for _, r := range prior {
		if r.Launched {
			succeeded[r.SortieID] = true
		}
	}

	var results []LaunchResult
	for _, sortie := range sorties {
		ready := true
		for _, depID := range sortie.Dependencies {
			if !succeeded[depID] {
				ready = false
				break
			}
		}
		if !ready {
			results = append(results, LaunchResult{SortieID: sortie.ID, Skipped: true, Reason: "dependency not yet successfully completed"})
			continue
		}
		result := s.launchOne(ctx, sortie)
		results = append(results, result)
		if result.Launched {
			succeeded[sortie.ID] = true
		}
	}
	return results
}

// launchOne reserves sortie.Files, transitions it to assigned, creates or
// reuses a mailbox, emits sortie.assigned, and calls the Launcher.
func (s *Scheduler) launchOne(ctx context.Context, sortie *missionstore.Sortie) LaunchResult {
	for _, file := range sortie.Files {
		acq, err := s.locks.Acquire(ctx, file, sortie.ID, s.lockTimeout, lockmgr.PurposeEdit, nil)
		if err != nil {
			return LaunchResult{SortieID: sortie.ID, Err: fmt.Errorf("acquire lock on %s: %w", file, err)}
		}
		if acq.Conflict {
			return LaunchResult{SortieID: sortie.ID, Err: fmt.Errorf("file %s already locked by %s", file, acq.ExistingLock.ReservedBy)}
		}
	}

	if err := s.missions.UpdateSortieStatus(ctx, sortie.ID, missionstore.SortieAssigned); err != nil {
		return LaunchResult{SortieID: sortie.ID, Err: fmt.Errorf("transition to assigned: %w", err)}
	}

	mailboxID, err := s.mailbox.CreateMailbox(ctx, sortie.ID)
	if err != nil {
		return LaunchResult{SortieID: sortie.ID, Err: fmt.Errorf("create mailbox: %w", err)}
	}

	if s.events != nil {
		data, _ := json.Marshal(map[string]string{"sortie_id": sortie.ID, "mailbox_id": mailboxID})
		s.events.Append(ctx, eventstore.AppendInput{
			EventType:  "sortie.assigned",
			StreamType: eventstore.StreamSortie,
			StreamID:   sortie.ID,
			Data:       data,
		})
	}

	handle, err := s.launcher.Launch(ctx, sortie)
	if err != nil {
		return LaunchResult{SortieID: sortie.ID, Err: fmt.Errorf("launch: %w", err)}
	}

	return LaunchResult{SortieID: sortie.ID, Launched: true, Handle: handle}
}
