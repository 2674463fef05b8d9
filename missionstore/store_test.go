package missionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleettools/squawk/internal/dbsql"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := dbsql.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil, nil)
}

func createMission(t *testing.T, s *Store) *Mission {
	t.Helper()
	m := &Mission{
		Title:       "refactor handlers",
		Description: "swap in the new error helper",
		Strategy:    StrategyFileBased,
		Priority:    PriorityMedium,
	}
	require.NoError(t, s.CreateMission(context.Background(), m))
	return m
}

func TestCreateAndGetMission(t *testing.T) {
	store := newTestStore(t)
	m := createMission(t, store)

	got, err := store.GetMission(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, MissionPending, got.Status)
	assert.Equal(t, "refactor handlers", got.Title)
}

func TestUpdateMissionStatus_CompletedIsTerminal(t *testing.T) {
	store := newTestStore(t)
	m := createMission(t, store)
	ctx := context.Background()

	require.NoError(t, store.UpdateMissionStatus(ctx, m.ID, MissionCompleted))
	err := store.UpdateMissionStatus(ctx, m.ID, MissionInProgress)
	assert.Error(t, err)
}

// TestUpdateProgress_Monotonic asserts a non-terminal sortie's progress
// never decreases.
func TestUpdateProgress_Monotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m := createMission(t, store)

	sortie := &Sortie{
		Title:                "implement handler",
		Description:          "add the endpoint",
		Priority:              PriorityMedium,
		Complexity:            ComplexityLow,
		EstimatedEffortHours:  2,
		Files:                 []string{"a.go"},
		Dependencies:          []string{},
	}
	require.NoError(t, store.CreateSortie(ctx, sortie, m.ID))

	require.NoError(t, store.UpdateProgress(ctx, sortie.ID, 50, nil))
	err := store.UpdateProgress(ctx, sortie.ID, 20, nil)
	assert.Error(t, err)

	require.NoError(t, store.UpdateProgress(ctx, sortie.ID, 80, nil))
	got, err := store.GetSortie(ctx, sortie.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
}

func TestUpdateSortieStatus_CompletedIncrementsMissionCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m := createMission(t, store)
	m.TotalSorties = 1
	_, err := store.db.ExecContext(ctx, `UPDATE missions SET total_sorties = 1 WHERE id = ?`, m.ID)
	require.NoError(t, err)

	sortie := &Sortie{
		Title:                "task",
		Description:          "desc",
		Priority:              PriorityLow,
		Complexity:            ComplexityLow,
		EstimatedEffortHours:  1,
		Files:                 []string{"a.go"},
		Dependencies:          []string{},
	}
	require.NoError(t, store.CreateSortie(ctx, sortie, m.ID))
	require.NoError(t, store.UpdateSortieStatus(ctx, sortie.ID, SortieCompleted))

	got, err := store.GetMission(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedSorties)
}
