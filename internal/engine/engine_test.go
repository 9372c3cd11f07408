package engine

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/notify"
	"choreboard/internal/points"
	"choreboard/internal/schedule"
)

func newTestEngine(start time.Time) (*Engine, *FakeClock, *notify.Recorder) {
	clock := NewFakeClock(start)
	rec := &notify.Recorder{}
	e := New(
		chore.NewMemoryRepo(),
		kid.NewMemoryRepo(),
		instance.NewMemoryRepo(),
		points.NewEvaluator(points.NewMemoryRepo()),
		rec,
		clock,
		log.New(io.Discard, "", 0),
		Options{DueSoonWindow: 4 * time.Hour, ReminderLead: 30 * time.Minute},
	)
	return e, clock, rec
}

func dailyChore(id string, reset chore.ResetType) chore.Chore {
	return chore.Chore{
		ID:           id,
		Name:         "chore " + id,
		Points:       5,
		KidIDs:       []string{"k1"},
		Recurrence:   schedule.Config{Frequency: schedule.FreqDaily},
		ResetType:    reset,
		Overdue:      chore.OverdueClearAtReset,
		PendingClaim: chore.ClaimHold,
		Criteria:     chore.CriteriaIndependent,
	}
}

func mustCreateChore(t *testing.T, e *Engine, ch chore.Chore) chore.Chore {
	t.Helper()
	created, err := e.Chores.Create(context.Background(), ch)
	require.NoError(t, err)
	return created
}

func mustCreateInstance(t *testing.T, e *Engine, in instance.Instance) instance.Instance {
	t.Helper()
	created, err := e.Instances.Create(context.Background(), in)
	require.NoError(t, err)
	return created
}

func mustGetInstance(t *testing.T, e *Engine, id string) instance.Instance {
	t.Helper()
	in, err := e.Instances.Get(context.Background(), id)
	require.NoError(t, err)
	return in
}

func ts(h, m int) time.Time {
	return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC)
}

func TestAssignChore_Independent(t *testing.T) {
	e, _, _ := newTestEngine(ts(9, 0))
	ch := dailyChore("ch1", chore.ResetMidnightSingle)
	ch.KidIDs = []string{"k1", "k2"}
	ch = mustCreateChore(t, e, ch)

	created, err := e.AssignChore(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, in := range created {
		require.Equal(t, instance.StatePending, in.State)
		require.NotNil(t, in.DueAt)
		require.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), *in.DueAt)
	}
}

func TestAssignChore_SharedCreatesOneInstance(t *testing.T) {
	e, _, _ := newTestEngine(ts(9, 0))
	ch := dailyChore("ch1", chore.ResetMidnightSingle)
	ch.KidIDs = []string{"k1", "k2"}
	ch.Criteria = chore.CriteriaSharedAll
	ch = mustCreateChore(t, e, ch)

	created, err := e.AssignChore(context.Background(), ch)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.True(t, created[0].Shared())
}
