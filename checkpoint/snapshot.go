package checkpoint

import (
	"context"
	"fmt"

	"github.com/fleettools/squawk/lockmgr"
	"github.com/fleettools/squawk/mailbox"
	"github.com/fleettools/squawk/missionstore"
)

// BuildSnapshot assembles the C1+C2+C3+C5 state a checkpoint freezes:
// the Checkpoint Engine periodically snapshots mission, sortie, lock,
// and mailbox state. It does not persist anything; call Store.Save on
// the result.
func BuildSnapshot(ctx context.Context, missions *missionstore.Store, locks *lockmgr.Manager, bus *mailbox.Bus, missionID string, trigger Trigger, recoveryCtx RecoveryContext) (*Checkpoint, error) {
	sorties, err := missions.ListSortiesByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("list sorties: %w", err)
	}

	c := &Checkpoint{
		MissionID:       missionID,
		Trigger:         trigger,
		RecoveryContext: recoveryCtx,
		CreatedBy:       "checkpoint-engine",
	}

	var completed, total int
	for _, s := range sorties {
		total++
		if s.Status == missionstore.SortieCompleted {
			completed++
		}
		c.Sorties = append(c.Sorties, SortieSnapshot{
			ID:         s.ID,
			Title:      s.Title,
			Status:     string(s.Status),
			Priority:   string(s.Priority),
			AssignedTo: s.AssignedTo,
			Progress:   s.Progress,
		})

		if bus != nil && (s.Status == missionstore.SortieAssigned || s.Status == missionstore.SortieInProgress) {
			msgs, err := bus.List(ctx, s.ID)
			if err == nil {
				for _, m := range msgs {
					if m.Status != mailbox.StatusAcked {
						c.PendingMessages = append(c.PendingMessages, MessageSnapshot{
							ID:        m.ID,
							MailboxID: m.MailboxID,
							Status:    string(m.Status),
						})
					}
				}
			}
		}
	}
	if total > 0 {
		c.ProgressPercent = 100 * float64(completed) / float64(total)
	}

	if locks != nil {
		missionSorties := make(map[string]bool, len(sorties))
		for _, s := range sorties {
			missionSorties[s.ID] = true
		}

		active, err := locks.GetActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("list active locks: %w", err)
		}
		for _, l := range active {
			if !missionSorties[l.ReservedBy] {
				continue // GetActive is system-wide; keep only this mission's reservations
			}
			c.ActiveLocks = append(c.ActiveLocks, LockSnapshot{
				ID:         l.ID,
				File:       l.File,
				ReservedBy: l.ReservedBy,
			})
		}
	}

	return c, nil
}
