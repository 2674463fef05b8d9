package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/clock"
)

func TestPruner_RunOnceDelegatesToStore(t *testing.T) {
	frozen := &clock.Frozen{At: time.Unix(1000, 0)}
	store := newTestStore(t, frozen)
	ctx := context.Background()

	old := &Checkpoint{MissionID: "msn-1", Trigger: TriggerManual, CreatedBy: "test"}
	require.NoError(t, store.Save(ctx, old))

	frozen.At = frozen.At.Add(time.Second)
	p, err := NewPruner(store, time.Nanosecond, "", nil)
	require.NoError(t, err)

	p.runOnce()

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewPruner_RejectsInvalidSchedule(t *testing.T) {
	store := newTestStore(t, clock.System{})
	_, err := NewPruner(store, time.Hour, "not a cron expression", nil)
	assert.Error(t, err)
}
