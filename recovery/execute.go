package recovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fleettools/squawk/eventstore"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/lockmgr"
	"github.com/fleettools/squawk/missionstore"
)

// MaxErrorFraction is the share of attempted items that may fail while
// the overall recovery is still considered successful.
const MaxErrorFraction = 0.10

// DefaultRestoredLockTTL is how long a re-acquired lock is held before
// the reaper would consider it expired again.
const DefaultRestoredLockTTL = time.Hour

var priorityRank = map[string]int{"high": 0, "medium": 1, "low": 2}

// Executor runs a Plan against the live store/lock/mission contracts
// directly — never via re-entrant HTTP to sibling endpoints.
type Executor struct {
	missions    *missionstore.Store
	locks       *lockmgr.Manager
	events      *eventstore.Store
	clock       clock.Clock
	logPath     string
	lockTimeout time.Duration
}

// NewExecutor creates an Executor. logPath is the NDJSON recovery log
// file (`{datadir}/recovery.log`); an empty path disables logging. A
// zero lockTimeout defaults to DefaultRestoredLockTTL.
func NewExecutor(missions *missionstore.Store, locks *lockmgr.Manager, events *eventstore.Store, clk clock.Clock, logPath string, lockTimeout time.Duration) *Executor {
	if clk == nil {
		clk = clock.System{}
	}
	if lockTimeout == 0 {
		lockTimeout = DefaultRestoredLockTTL
	}
	return &Executor{missions: missions, locks: locks, events: events, clock: clk, logPath: logPath, lockTimeout: lockTimeout}
}

// ExecuteRecovery runs the three phases — agent restore, task resume,
// lock restore — in order. Per-item errors do not abort; the result is
// successful overall if failures are at most MaxErrorFraction of items
// attempted. If dryRun is true, no mutation is performed; every item is
// still logged as attempted so plan/log shape stays identical between
// dry and live runs.
func (e *Executor) ExecuteRecovery(ctx context.Context, plan *Plan, dryRun bool) (*Result, error) {
	result := &Result{}

	agents := append([]AgentRestore(nil), plan.AgentsToRestore...)
	sort.SliceStable(agents, func(i, j int) bool {
		return priorityRank[agents[i].Priority] < priorityRank[agents[j].Priority]
	})

	for _, a := range agents {
		e.attempt(ctx, result, "agents", a.SortieID, func() error {
			return e.restoreAgent(ctx, a, dryRun)
		})
	}
	for _, t := range plan.TasksToResume {
		e.attempt(ctx, result, "tasks", t.SortieID, func() error {
			return e.resumeTask(ctx, t, dryRun)
		})
	}
	for _, l := range plan.LocksToRestore {
		e.attempt(ctx, result, "locks", l.File, func() error {
			return e.restoreLock(ctx, l, dryRun)
		})
	}

	if result.ItemsAttempted == 0 {
		result.Success = true
	} else {
		result.Success = float64(result.ItemsFailed)/float64(result.ItemsAttempted) <= MaxErrorFraction
	}

	if err := e.appendLog(result.Entries); err != nil {
		return result, fmt.Errorf("write recovery log: %w", err)
	}
	return result, nil
}

func (e *Executor) attempt(ctx context.Context, result *Result, phase, item string, fn func() error) {
	result.ItemsAttempted++
	entry := LogEntry{Phase: phase, Item: item, At: e.clock.Now(), Success: true}

	if err := fn(); err != nil {
		entry.Success = false
		entry.Error = err.Error()
		result.ItemsFailed++
	}

	entry.EventID = e.emit(ctx, phase, item, entry.Success, entry.Error)
	result.Entries = append(result.Entries, entry)
}

func (e *Executor) emit(ctx context.Context, phase, item string, success bool, errMsg string) string {
	if e.events == nil {
		return ""
	}
	data, _ := json.Marshal(map[string]any{"phase": phase, "item": item, "success": success, "error": errMsg})
	ev, err := e.events.Append(ctx, eventstore.AppendInput{
		EventType:  "recovery.item_" + phase,
		StreamType: eventstore.StreamSystem,
		StreamID:   item,
		Data:       data,
	})
	if err != nil {
		return ""
	}
	return ev.EventID
}

func (e *Executor) restoreAgent(ctx context.Context, a AgentRestore, dryRun bool) error {
	if dryRun {
		return nil
	}
	return e.missions.UpdateSortieStatus(ctx, a.SortieID, missionstore.SortieAssigned)
}

func (e *Executor) resumeTask(ctx context.Context, t TaskResume, dryRun bool) error {
	if dryRun {
		return nil
	}
	return e.missions.UpdateProgress(ctx, t.SortieID, t.Progress, nil)
}

func (e *Executor) restoreLock(ctx context.Context, l LockRestore, dryRun bool) error {
	if dryRun {
		return nil
	}
	acq, err := e.locks.Acquire(ctx, l.File, l.ReservedBy, e.lockTimeout, lockmgr.PurposeEdit, nil)
	if err != nil {
		return err
	}
	if acq.Conflict && acq.ExistingLock.ReservedBy != l.ReservedBy {
		return fmt.Errorf("lock on %s now held by %s, conflict check failed", l.File, acq.ExistingLock.ReservedBy)
	}
	return nil
}

// appendLog appends entries as newline-delimited JSON to e.logPath.
func (e *Executor) appendLog(entries []LogEntry) error {
	if e.logPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(e.logPath), 0o755); err != nil {
		return fmt.Errorf("create recovery log directory: %w", err)
	}
	f, err := os.OpenFile(e.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	return nil
}
