package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fleettools/squawk/checkpoint"
	"github.com/fleettools/squawk/internal/clock"
	"github.com/fleettools/squawk/lockmgr"
	"github.com/fleettools/squawk/specialists"
)

// MaxSafeAgentCount is the "high agent count" risk threshold.
const MaxSafeAgentCount = 5

// CheckpointAgeRisk is the age beyond which a checkpoint is flagged
// stale.
const CheckpointAgeRisk = 24 * time.Hour

// Planner builds recovery plans from checkpoints.
type Planner struct {
	checkpoints *checkpoint.Store
	locks       *lockmgr.Manager
	specialists *specialists.Registry
	clock       clock.Clock
}

// NewPlanner creates a Planner. locks may be nil in tests that don't
// exercise the already-held-lock idempotence check.
func NewPlanner(checkpoints *checkpoint.Store, locks *lockmgr.Manager, reg *specialists.Registry, clk clock.Clock) *Planner {
	if clk == nil {
		clk = clock.System{}
	}
	return &Planner{checkpoints: checkpoints, locks: locks, specialists: reg, clock: clk}
}

// agentTypeFrom derives an agent type from an assignment string by
// substring match, defaulting to backend.
func agentTypeFrom(assignment string) string {
	lower := strings.ToLower(assignment)
	for _, t := range []string{"frontend", "backend", "testing", "documentation", "security", "performance"} {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return "backend"
}

// CreateRecoveryPlan builds a Plan from checkpointID. force suppresses
// the "active agents present" risk (it does not skip re-planning locks
// already held — ExecuteRecovery's re-acquire is naturally idempotent
// there).
func (p *Planner) CreateRecoveryPlan(ctx context.Context, checkpointID string, force bool) (*Plan, error) {
	c, err := p.checkpoints.Get(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	plan := &Plan{CheckpointID: c.ID, MissionID: c.MissionID}

	for _, s := range c.Sorties {
		if s.Status == "in_progress" {
			assignment := ""
			if s.AssignedTo != nil {
				assignment = *s.AssignedTo
			}
			priority := s.Priority
			if priority == "" {
				priority = "medium"
			}
			plan.AgentsToRestore = append(plan.AgentsToRestore, AgentRestore{
				SortieID:  s.ID,
				AgentType: agentTypeFrom(assignment),
				Priority:  priority,
			})
		}
		if s.Status != "completed" {
			plan.TasksToResume = append(plan.TasksToResume, TaskResume{
				SortieID:      s.ID,
				Progress:      s.Progress,
				AssignedAgent: s.AssignedTo,
				NextSteps:     c.RecoveryContext.NextSteps,
			})
		}
	}

	for _, l := range c.ActiveLocks {
		if p.alreadyRestored(ctx, l) {
			continue // locks already held are not re-planned
		}
		plan.LocksToRestore = append(plan.LocksToRestore, LockRestore{
			File:               l.File,
			ReservedBy:         l.ReservedBy,
			NeedsConflictCheck: true,
		})
	}

	plan.Risks = p.surfaceRisks(ctx, c, plan, force)
	return plan, nil
}

func (p *Planner) alreadyRestored(ctx context.Context, l checkpoint.LockSnapshot) bool {
	if p.locks == nil {
		return false
	}
	live, err := p.locks.GetByFile(ctx, l.File)
	return err == nil && live != nil && live.ReservedBy == l.ReservedBy
}

func (p *Planner) surfaceRisks(ctx context.Context, c *checkpoint.Checkpoint, plan *Plan, force bool) []string {
	var risks []string

	if p.clock.Now().Sub(c.Timestamp) > CheckpointAgeRisk {
		risks = append(risks, "Checkpoint is more than 24 hours old")
	}
	if len(plan.LocksToRestore) > 0 {
		risks = append(risks, "Active locks may conflict with current state")
	}
	if !force && p.specialists != nil {
		if active, err := p.specialists.Active(ctx); err == nil && len(active) > 0 {
			risks = append(risks, "Active agents are already running for this mission")
		}
	}
	if len(plan.AgentsToRestore) > MaxSafeAgentCount {
		risks = append(risks, "High agent count may strain scheduling capacity")
	}
	return risks
}
