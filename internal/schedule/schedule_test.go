package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNext(t *testing.T, cfg Config, ref time.Time) time.Time {
	t.Helper()
	due, err := NextDue(cfg, ref, nil)
	require.NoError(t, err)
	require.NotNil(t, due)
	return *due
}

func TestNextDue_FixedIntervals(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		cfg  Config
		want time.Time
	}{
		{"daily", Config{Frequency: FreqDaily}, ref.AddDate(0, 0, 1)},
		{"weekly", Config{Frequency: FreqWeekly}, ref.AddDate(0, 0, 7)},
		{"biweekly", Config{Frequency: FreqBiweekly}, ref.AddDate(0, 0, 14)},
		{"monthly", Config{Frequency: FreqMonthly}, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"quarterly", Config{Frequency: FreqQuarterly}, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{"yearly", Config{Frequency: FreqYearly}, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"every_n_days", Config{Frequency: FreqEveryNDays, IntervalDays: 3}, ref.AddDate(0, 0, 3)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, mustNext(t, tc.cfg, ref))
		})
	}
}

func TestNextDue_None(t *testing.T) {
	due, err := NextDue(Config{Frequency: FreqNone}, time.Now(), nil)
	require.NoError(t, err)
	assert.Nil(t, due)
}

func TestNextDue_Deterministic(t *testing.T) {
	cfg := Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}, {18, 0}, {12, 0}}}
	ref := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	first := mustNext(t, cfg, ref)
	for range 10 {
		assert.Equal(t, first, mustNext(t, cfg, ref))
	}
}

func TestNextDue_FromCompletionAnchorsAtCompletion(t *testing.T) {
	cfg := Config{Frequency: FreqFromCompletion, IntervalDays: 2}
	due := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	done := time.Date(2025, 6, 3, 15, 0, 0, 0, time.UTC)

	got, err := NextDue(cfg, due, &done)
	require.NoError(t, err)
	assert.Equal(t, done.AddDate(0, 0, 2), *got)

	// without a completion instant it falls back to the reference
	got, err = NextDue(cfg, due, nil)
	require.NoError(t, err)
	assert.Equal(t, due.AddDate(0, 0, 2), *got)
}

func TestNextDue_WeekdaySnapping(t *testing.T) {
	// 2025-06-06 is a Friday; daily advance lands on Saturday, which is not
	// applicable, so the date snaps forward to Monday.
	cfg := Config{
		Frequency: FreqDaily,
		Weekdays:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}
	ref := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)

	got := mustNext(t, cfg, ref)
	assert.Equal(t, time.Monday, got.Weekday())
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestNextDue_WeekdaySnappingNeverMoreThanSevenDays(t *testing.T) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		cfg := Config{Frequency: FreqDaily, Weekdays: []time.Weekday{wd}}
		ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		got := mustNext(t, cfg, ref)
		if days := int(got.Sub(ref).Hours() / 24); days > 8 {
			t.Fatalf("weekday %s: snapped %d days forward", wd, days)
		}
		assert.Equal(t, wd, got.Weekday())
	}
}

func TestNextDue_MonthEndClamping(t *testing.T) {
	cfg := Config{Frequency: FreqMonthly}

	jan31 := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	got := mustNext(t, cfg, jan31)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC), got)

	// leap year clamps to Feb 29
	jan31 = time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	got = mustNext(t, cfg, jan31)
	assert.Equal(t, time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), got)
}

func TestNextDue_YearlyLeapDay(t *testing.T) {
	cfg := Config{Frequency: FreqYearly}
	feb29 := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	got := mustNext(t, cfg, feb29)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestNextDue_SlotWrap(t *testing.T) {
	cfg := Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}, {12, 0}, {18, 0}}}

	ref := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	got := mustNext(t, cfg, ref)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got)

	ref = time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC)
	got = mustNext(t, cfg, ref)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), got)
}

func TestNextDue_SlotExactlyAtReferenceIsSkipped(t *testing.T) {
	cfg := Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}, {12, 0}}}
	ref := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	got := mustNext(t, cfg, ref)
	// strictly after: 12:00 at 12:00 wraps to the next morning
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), got)
}

func TestNextDue_SlotAcrossDSTSpringForward(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-03-09 02:00 EST jumps to 03:00 EDT. A 08:00 slot the morning after
	// the transition must still fire at wall-clock 08:00.
	cfg := Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}}}
	ref := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)

	got := mustNext(t, cfg, ref)
	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, 0, got.Minute())
	assert.Equal(t, 9, got.Day())
}

func TestNextDue_PeriodBoundaries(t *testing.T) {
	// 2025-06-04 is a Wednesday
	ref := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		freq Frequency
		want time.Time
	}{
		{FreqDayEnd, time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)},
		{FreqWeekEnd, time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)},
		{FreqMonthEnd, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{FreqQuarterEnd, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{FreqYearEnd, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(string(tc.freq), func(t *testing.T) {
			assert.Equal(t, tc.want, mustNext(t, Config{Frequency: tc.freq}, ref))
		})
	}
}

func TestNextDue_PeriodBoundaryChains(t *testing.T) {
	// Rescheduling from a prior boundary lands on the next one, so a chain of
	// due dates never stalls on the same instant.
	cfg := Config{Frequency: FreqMonthEnd}
	cur := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		next := mustNext(t, cfg, cur)
		require.True(t, next.After(cur), "boundary did not advance: %s -> %s", cur, next)
		assert.Equal(t, 1, next.Day())
		cur = next
	}
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), cur)
}

func TestFirstDue(t *testing.T) {
	ref := time.Date(2025, 6, 1, 14, 45, 0, 0, time.UTC)

	due, err := FirstDue(Config{Frequency: FreqNone}, ref)
	require.NoError(t, err)
	assert.Nil(t, due)

	due, err = FirstDue(Config{Frequency: FreqDaily}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), *due)

	due, err = FirstDue(Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}, {18, 0}}}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC), *due)

	due, err = FirstDue(Config{Frequency: FreqWeekEnd}, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, due.Weekday())
}

func TestParseSlot(t *testing.T) {
	s, err := ParseSlot("08:30")
	require.NoError(t, err)
	assert.Equal(t, Slot{8, 30}, s)
	assert.Equal(t, "08:30", s.String())

	for _, bad := range []string{"", "8", "25:00", "08:61", "ab:cd"} {
		if _, err := ParseSlot(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"daily ok", Config{Frequency: FreqDaily}, false},
		{"multi with slots ok", Config{Frequency: FreqDailyMulti, Slots: []Slot{{8, 0}}}, false},
		{"multi without slots", Config{Frequency: FreqDailyMulti}, true},
		{"every_n_days without interval", Config{Frequency: FreqEveryNDays}, true},
		{"slots on daily", Config{Frequency: FreqDaily, Slots: []Slot{{8, 0}}}, true},
		{"weekdays on period end", Config{Frequency: FreqMonthEnd, Weekdays: []time.Weekday{time.Monday}}, true},
		{"unknown", Config{Frequency: "sometimes"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
