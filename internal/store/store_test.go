package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/kid"
	"choreboard/internal/points"
	"choreboard/internal/schedule"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testChore(name string) chore.Chore {
	return chore.Chore{
		Name:         name,
		Points:       5,
		KidIDs:       []string{"k1"},
		Recurrence:   schedule.Config{Frequency: schedule.FreqDaily},
		ResetType:    chore.ResetMidnightSingle,
		Overdue:      chore.OverdueClearAtReset,
		PendingClaim: chore.ClaimHold,
		Criteria:     chore.CriteriaIndependent,
	}
}

func TestChoreRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Chores()

	created, err := repo.Create(ctx, testChore("dishes"))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dishes", got.Name)
	assert.Equal(t, schedule.FreqDaily, got.Recurrence.Frequency)
	assert.Equal(t, []string{"k1"}, got.KidIDs)

	got.Name = "wash dishes"
	updated, err := repo.Update(ctx, got)
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))

	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "wash dishes", got.Name)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.ErrorIs(t, err, chore.ErrNotFound)
}

func TestChoreRepo_CreateValidates(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Chores()

	bad := testChore("bad mix")
	bad.Recurrence.Frequency = schedule.FreqDailyMulti
	bad.Recurrence.Slots = []schedule.Slot{{Hour: 8}, {Hour: 18}}
	bad.ResetType = chore.ResetMidnightSingle

	_, err := repo.Create(ctx, bad)
	assert.ErrorIs(t, err, chore.ErrBadPolicyMix)
}

func TestChoreRepo_ListOrdersByName(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Chores()

	for _, name := range []string{"trash", "bed", "dishes"} {
		_, err := repo.Create(ctx, testChore(name))
		require.NoError(t, err)
	}

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "bed", got[0].Name)
	assert.Equal(t, "dishes", got[1].Name)
	assert.Equal(t, "trash", got[2].Name)
}

func TestKidRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Kids()

	created, err := repo.Create(ctx, kid.Kid{Name: "Ada"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	require.NoError(t, repo.Delete(ctx, created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID), kid.ErrNotFound)
}

func TestInstanceRepo_DefaultsAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Instances()

	created, err := repo.Create(ctx, instance.Instance{ChoreID: "ch1", KidID: "k1"})
	require.NoError(t, err)
	assert.Equal(t, instance.StatePending, created.State)
	assert.False(t, created.PeriodStart.IsZero())
	assert.NotNil(t, created.Claims)

	due := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	created.State = instance.StateClaimed
	created.DueAt = &due
	created.Claims["k1"] = instance.Claim{KidID: "k1", ClaimedAt: due.Add(-time.Hour)}

	_, err = repo.Update(ctx, created)
	require.NoError(t, err)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.StateClaimed, got.State)
	require.NotNil(t, got.DueAt)
	assert.True(t, got.DueAt.Equal(due))
	require.Contains(t, got.Claims, "k1")
	assert.True(t, got.Claims["k1"].ClaimedAt.Equal(due.Add(-time.Hour)))
}

func TestInstanceRepo_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Instances()

	early := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	late := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

	mk := func(choreID, kidID string, state instance.State, due *time.Time) instance.Instance {
		in, err := repo.Create(ctx, instance.Instance{
			ChoreID: choreID, KidID: kidID, State: state, DueAt: due,
		})
		require.NoError(t, err)
		return in
	}

	noDue := mk("ch1", "k1", instance.StatePending, nil)
	lateIn := mk("ch1", "k2", instance.StateClaimed, &late)
	earlyIn := mk("ch1", "k1", instance.StatePending, &early)
	mk("ch2", "k1", instance.StatePending, &early)

	got, err := repo.List(ctx, instance.ListFilter{ChoreID: "ch1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, earlyIn.ID, got[0].ID, "due soonest first")
	assert.Equal(t, lateIn.ID, got[1].ID)
	assert.Equal(t, noDue.ID, got[2].ID, "nil due dates last")

	got, err = repo.List(ctx, instance.ListFilter{
		ChoreID: "ch1", KidID: "k1", States: []instance.State{instance.StatePending},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, in := range got {
		assert.Equal(t, "k1", in.KidID)
		assert.Equal(t, instance.StatePending, in.State)
	}
}

func TestLedgerRepo_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Ledgers()

	_, err := repo.Get(ctx, "k1")
	assert.ErrorIs(t, err, points.ErrNotFound)

	require.NoError(t, repo.Put(ctx, points.Ledger{KidID: "k1", Points: 5, Streak: 1}))
	require.NoError(t, repo.Put(ctx, points.Ledger{KidID: "k1", Points: 12, Streak: 2}))

	got, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Points)
	assert.Equal(t, 2, got.Streak)
}

func TestLedgerRepo_WorksWithEvaluator(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Ledgers()
	eval := points.NewEvaluator(repo)

	res, err := eval.Award(ctx, "k1", 5, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Counted)

	got, err := repo.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Points)
	assert.Equal(t, 1, got.Streak)
}
