package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choreboard/internal/chore"
	"choreboard/internal/instance"
	"choreboard/internal/schedule"
)

func TestScan_OverdueBucket(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))
	past := ts(8, 0)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &past,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	require.Len(t, b.Overdue, 1)
	assert.Equal(t, in.ID, b.Overdue[0].Instance.ID)
}

func TestScan_NeverOverdueIsExcluded(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	ch := dailyChore("ch1", chore.ResetMidnightSingle)
	ch.Overdue = chore.OverdueNever
	created := mustCreateChore(t, e, ch)

	// ten days past due, still never bucketed
	longPast := ts(8, 0).AddDate(0, 0, -10)
	mustCreateInstance(t, e, instance.Instance{
		ChoreID: created.ID, KidID: "k1", State: instance.StatePending, DueAt: &longPast,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Empty(t, b.Overdue)
}

func TestScan_CompletedStatesAreNotOverdue(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))
	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))

	past := ts(8, 0)
	for _, st := range []instance.State{instance.StateApproved, instance.StateApprovedInPart, instance.StateOverdue} {
		mustCreateInstance(t, e, instance.Instance{
			ChoreID: ch.ID, KidID: "k1", State: st, DueAt: &past,
		})
	}

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Empty(t, b.Overdue)
}

func TestScan_BoundaryBuckets(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	past := ts(8, 0)
	future := ts(18, 0)

	midnight := mustCreateChore(t, e, dailyChore("mid", chore.ResetMidnightSingle))
	dueDate := mustCreateChore(t, e, dailyChore("due", chore.ResetDueDateSingle))
	onDone := mustCreateChore(t, e, dailyChore("done", chore.ResetOnCompletion))

	mustCreateInstance(t, e, instance.Instance{ChoreID: midnight.ID, KidID: "k1", State: instance.StatePending, DueAt: &future})
	duePassed := mustCreateInstance(t, e, instance.Instance{ChoreID: dueDate.ID, KidID: "k1", State: instance.StateApproved, DueAt: &past})
	mustCreateInstance(t, e, instance.Instance{ChoreID: dueDate.ID, KidID: "k2", State: instance.StateApproved, DueAt: &future})
	mustCreateInstance(t, e, instance.Instance{ChoreID: onDone.ID, KidID: "k1", State: instance.StateApproved, DueAt: &past})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)

	// midnight bucket: all midnight-reset instances regardless of due date
	require.Len(t, b.BoundaryMidnight, 1)
	// due-date bucket: only instances whose due date has passed
	require.Len(t, b.BoundaryDueDate, 1)
	assert.Equal(t, duePassed.ID, b.BoundaryDueDate[0].Instance.ID)
}

func TestScan_DueSoonAndReminderOverlap(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))
	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))

	// 20 minutes out: inside both the 4h due window and the 30m reminder lead
	soon := ts(12, 20)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &soon,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	require.Len(t, b.DueSoon, 1)
	require.Len(t, b.ReminderDue, 1)
	assert.Equal(t, in.ID, b.DueSoon[0].Instance.ID)
	assert.Equal(t, in.ID, b.ReminderDue[0].Instance.ID)

	// 2 hours out: due-soon only
	later := ts(14, 0)
	_, err = e.Instances.Update(ctx, func() instance.Instance {
		got := mustGetInstance(t, e, in.ID)
		got.DueAt = &later
		return got
	}())
	require.NoError(t, err)

	b, err = e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Len(t, b.DueSoon, 1)
	assert.Empty(t, b.ReminderDue)
}

func TestScan_ChoreWindowOverridesDefault(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	ch := dailyChore("ch1", chore.ResetMidnightSingle)
	ch.DueWindow = 30 * time.Minute
	created := mustCreateChore(t, e, ch)

	twoHoursOut := ts(14, 0)
	mustCreateInstance(t, e, instance.Instance{
		ChoreID: created.ID, KidID: "k1", State: instance.StatePending, DueAt: &twoHoursOut,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Empty(t, b.DueSoon, "2h out is outside the overridden 30m window")
}

func TestMarkOverdue_FlagsInstance(t *testing.T) {
	ctx := context.Background()
	e, _, rec := newTestEngine(ts(12, 0))
	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))

	past := ts(8, 0)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &past,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	e.MarkOverdue(ctx, b.Overdue, ts(12, 0))

	got := mustGetInstance(t, e, in.ID)
	assert.Equal(t, instance.StateOverdue, got.State)
	require.NotNil(t, got.OverdueSince)
	assert.Len(t, rec.ByKind("overdue"), 1)

	// already flagged: the next scan produces an empty overdue bucket
	b, err = e.Scan(ctx, ts(13, 0))
	require.NoError(t, err)
	assert.Empty(t, b.Overdue)
}

func TestMarkOverdue_ClearOnLateResetsImmediately(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	ch := dailyChore("ch1", chore.ResetMidnightSingle)
	ch.Overdue = chore.OverdueClearOnLate
	created := mustCreateChore(t, e, ch)

	past := ts(8, 0)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: created.ID, KidID: "k1", State: instance.StatePending, DueAt: &past,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	e.MarkOverdue(ctx, b.Overdue, ts(12, 0))

	got := mustGetInstance(t, e, in.ID)
	// resolved in the same pass: back to pending with a future due date
	assert.Equal(t, instance.StatePending, got.State)
	assert.Nil(t, got.OverdueSince)
	require.NotNil(t, got.DueAt)
	assert.True(t, got.DueAt.After(ts(12, 0)))
}

func TestMarkOverdue_ClaimAfterFlaggingSurvivesNextTick(t *testing.T) {
	ctx := context.Background()
	e, clock, rec := newTestEngine(ts(12, 0))

	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))
	past := ts(8, 0)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &past,
	})

	report, err := e.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overdue)

	_, err = e.Claim(ctx, in.ID, "k1")
	require.NoError(t, err)

	// the flag stands until reset, so the next pass leaves the claim alone
	clock.Set(ts(12, 5))
	report, err = e.RunTick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Overdue)

	got := mustGetInstance(t, e, in.ID)
	assert.Equal(t, instance.StateClaimed, got.State)
	assert.Len(t, rec.ByKind("overdue"), 1)
}

func TestScan_ClaimedFlaggingFollowsPendingClaimPolicy(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		policy  chore.PendingClaimType
		flagged bool
	}{
		{chore.ClaimHold, false},
		{chore.ClaimAutoApprove, false},
		{chore.ClaimClear, true},
	}
	for _, tc := range tests {
		t.Run(string(tc.policy), func(t *testing.T) {
			e, _, _ := newTestEngine(ts(12, 0))

			ch := dailyChore("ch1", chore.ResetMidnightSingle)
			ch.PendingClaim = tc.policy
			created := mustCreateChore(t, e, ch)

			past := ts(8, 0)
			mustCreateInstance(t, e, instance.Instance{
				ChoreID: created.ID, KidID: "k1", State: instance.StateClaimed, DueAt: &past,
				Claims: claimedAt("k1", ts(9, 0)),
			})

			b, err := e.Scan(ctx, ts(12, 0))
			require.NoError(t, err)
			if tc.flagged {
				assert.Len(t, b.Overdue, 1, "discard-policy claims go overdue like pending work")
			} else {
				assert.Empty(t, b.Overdue, "claims awaiting a boundary decision are not late")
			}
		})
	}
}

func TestSetWindows_TakesEffectOnNextScan(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))
	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))

	// 2h out: inside the default 4h window
	due := ts(14, 0)
	mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &due,
	})

	b, err := e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Len(t, b.DueSoon, 1)

	e.SetWindows(30*time.Minute, 10*time.Minute)
	b, err = e.Scan(ctx, ts(12, 0))
	require.NoError(t, err)
	assert.Empty(t, b.DueSoon, "2h out is outside the shrunk 30m window")

	e.SetWindows(0, 0)
	got := e.Windows()
	assert.Equal(t, 30*time.Minute, got.DueSoonWindow, "non-positive values are ignored")
}

func TestSetWindows_ConcurrentWithScan(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))
	ch := mustCreateChore(t, e, dailyChore("ch1", chore.ResetMidnightSingle))

	due := ts(14, 0)
	mustCreateInstance(t, e, instance.Instance{
		ChoreID: ch.ID, KidID: "k1", State: instance.StatePending, DueAt: &due,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			e.SetWindows(time.Duration(i+1)*time.Minute, time.Duration(i+1)*time.Second)
		}
	}()
	for i := 0; i < 100; i++ {
		if _, err := e.Scan(ctx, ts(12, 0)); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	<-done
}

func TestScan_DailyMultiSlotChore(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(ts(12, 0))

	ch := chore.Chore{
		ID:     "meds",
		Name:   "take medicine",
		Points: 2,
		KidIDs: []string{"k1"},
		Recurrence: schedule.Config{
			Frequency: schedule.FreqDailyMulti,
			Slots:     []schedule.Slot{{Hour: 8}, {Hour: 12}, {Hour: 18}},
		},
		ResetType:    chore.ResetDueDateSingle,
		Overdue:      chore.OverdueClearAtReset,
		PendingClaim: chore.ClaimClear,
		Criteria:     chore.CriteriaIndependent,
	}
	created := mustCreateChore(t, e, ch)

	slot := ts(12, 0)
	in := mustCreateInstance(t, e, instance.Instance{
		ChoreID: created.ID, KidID: "k1", State: instance.StateApproved, DueAt: &slot,
	})

	b, err := e.Scan(ctx, ts(12, 30))
	require.NoError(t, err)
	require.Len(t, b.BoundaryDueDate, 1)
	assert.Equal(t, in.ID, b.BoundaryDueDate[0].Instance.ID)
}
