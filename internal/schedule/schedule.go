package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Frequency selects how the next due date is derived from the previous one.
type Frequency string

const (
	FreqNone           Frequency = "none"
	FreqDaily          Frequency = "daily"
	FreqDailyMulti     Frequency = "daily_multi"
	FreqWeekly         Frequency = "weekly"
	FreqBiweekly       Frequency = "biweekly"
	FreqMonthly        Frequency = "monthly"
	FreqQuarterly      Frequency = "quarterly"
	FreqYearly         Frequency = "yearly"
	FreqEveryNDays     Frequency = "every_n_days"
	FreqFromCompletion Frequency = "from_completion"
	FreqDayEnd         Frequency = "day_end"
	FreqWeekEnd        Frequency = "week_end"
	FreqMonthEnd       Frequency = "month_end"
	FreqQuarterEnd     Frequency = "quarter_end"
	FreqYearEnd        Frequency = "year_end"
)

var (
	ErrIterationLimit  = errors.New("period boundary search exceeded iteration limit")
	ErrUnknownFreq     = errors.New("unknown frequency")
	ErrNoSlots         = errors.New("daily_multi frequency requires at least one slot")
	ErrBadInterval     = errors.New("interval must be at least 1 day")
	ErrBadSlot         = errors.New("slot must be HH:MM")
)

// maxBoundaryIterations bounds the day-by-day walk to the next period
// boundary. A breach means malformed data, never a calendar quirk: the
// longest legitimate walk is one year plus leap slack.
const maxBoundaryIterations = 370

// IsPeriodEnd reports whether f is one of the period-end variants.
func (f Frequency) IsPeriodEnd() bool {
	switch f {
	case FreqDayEnd, FreqWeekEnd, FreqMonthEnd, FreqQuarterEnd, FreqYearEnd:
		return true
	}
	return false
}

// NeedsPriorDue reports whether NextDue requires a prior due date as its
// reference. Completion-anchored and period-end frequencies do not.
func (f Frequency) NeedsPriorDue() bool {
	switch f {
	case FreqNone, FreqFromCompletion:
		return false
	}
	return !f.IsPeriodEnd()
}

// Slot is a wall-clock time of day.
type Slot struct {
	Hour   int `json:"hour" yaml:"hour"`
	Minute int `json:"minute" yaml:"minute"`
}

func ParseSlot(s string) (Slot, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Slot{}, fmt.Errorf("%w: %q", ErrBadSlot, s)
	}
	return Slot{Hour: h, Minute: m}, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

func (s Slot) minuteOfDay() int {
	return s.Hour*60 + s.Minute
}

// Config is a chore's recurrence configuration. It is pure data; all
// calculation happens in NextDue and FirstDue with an explicit reference
// instant, so two calls with identical inputs always agree.
type Config struct {
	Frequency    Frequency      `json:"frequency" yaml:"frequency"`
	IntervalDays int            `json:"interval_days,omitempty" yaml:"interval_days"`
	Weekdays     []time.Weekday `json:"weekdays,omitempty" yaml:"weekdays"`
	Slots        []Slot         `json:"slots,omitempty" yaml:"slots"`
}

func (c Config) Validate() error {
	switch c.Frequency {
	case FreqNone, FreqDaily, FreqWeekly, FreqBiweekly, FreqMonthly,
		FreqQuarterly, FreqYearly,
		FreqDayEnd, FreqWeekEnd, FreqMonthEnd, FreqQuarterEnd, FreqYearEnd:
	case FreqDailyMulti:
		if len(c.Slots) == 0 {
			return ErrNoSlots
		}
	case FreqEveryNDays, FreqFromCompletion:
		if c.IntervalDays < 1 {
			return ErrBadInterval
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFreq, c.Frequency)
	}
	if len(c.Slots) > 0 && c.Frequency != FreqDailyMulti {
		return fmt.Errorf("slots only apply to %s frequency", FreqDailyMulti)
	}
	if len(c.Weekdays) > 0 && c.Frequency.IsPeriodEnd() {
		return fmt.Errorf("weekday constraints do not apply to period-end frequencies")
	}
	return nil
}

// NextDue computes the next due instant strictly after ref.
//
// ref is the anchor for the calculation: for fixed-interval frequencies the
// prior due date, for period-end frequencies any instant inside the current
// period, for daily_multi the instant to search forward from. completedAt is
// consulted only by from_completion, which anchors at the completion instant
// instead of the prior due date.
//
// The function never reads the clock. A nil result with a nil error means
// the chore does not recur (FreqNone).
func NextDue(cfg Config, ref time.Time, completedAt *time.Time) (*time.Time, error) {
	switch cfg.Frequency {
	case FreqNone:
		return nil, nil

	case FreqDaily:
		return snapWeekday(ref.AddDate(0, 0, 1), cfg.Weekdays)
	case FreqWeekly:
		return snapWeekday(ref.AddDate(0, 0, 7), cfg.Weekdays)
	case FreqBiweekly:
		return snapWeekday(ref.AddDate(0, 0, 14), cfg.Weekdays)
	case FreqMonthly:
		return snapWeekday(addMonthsClamped(ref, 1), cfg.Weekdays)
	case FreqQuarterly:
		return snapWeekday(addMonthsClamped(ref, 3), cfg.Weekdays)
	case FreqYearly:
		return snapWeekday(addMonthsClamped(ref, 12), cfg.Weekdays)

	case FreqEveryNDays:
		if cfg.IntervalDays < 1 {
			return nil, ErrBadInterval
		}
		return snapWeekday(ref.AddDate(0, 0, cfg.IntervalDays), cfg.Weekdays)

	case FreqFromCompletion:
		if cfg.IntervalDays < 1 {
			return nil, ErrBadInterval
		}
		anchor := ref
		if completedAt != nil {
			anchor = *completedAt
		}
		return snapWeekday(anchor.AddDate(0, 0, cfg.IntervalDays), cfg.Weekdays)

	case FreqDailyMulti:
		return nextSlot(cfg.Slots, ref)

	case FreqDayEnd, FreqWeekEnd, FreqMonthEnd, FreqQuarterEnd, FreqYearEnd:
		return nextPeriodBoundary(cfg.Frequency, ref)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFreq, cfg.Frequency)
	}
}

// FirstDue computes the initial due instant for a freshly assigned chore.
// Day-granular frequencies anchor at the midnight starting ref's day so the
// first cycle lands on a day boundary rather than the assignment instant.
func FirstDue(cfg Config, ref time.Time) (*time.Time, error) {
	switch cfg.Frequency {
	case FreqNone:
		return nil, nil
	case FreqDailyMulti:
		return nextSlot(cfg.Slots, ref)
	case FreqDayEnd, FreqWeekEnd, FreqMonthEnd, FreqQuarterEnd, FreqYearEnd:
		return nextPeriodBoundary(cfg.Frequency, ref)
	default:
		return NextDue(cfg, startOfDay(ref), nil)
	}
}

// snapWeekday advances t day-by-day until it lands on an applicable weekday.
// With a non-empty constraint the walk terminates within 7 steps.
func snapWeekday(t time.Time, weekdays []time.Weekday) (*time.Time, error) {
	if len(weekdays) == 0 {
		return &t, nil
	}
	for i := 0; i < 7; i++ {
		if slices.Contains(weekdays, t.Weekday()) {
			return &t, nil
		}
		t = t.AddDate(0, 0, 1)
	}
	return nil, fmt.Errorf("no applicable weekday within 7 days of %s", t.Format(time.RFC3339))
}

// nextSlot returns the first slot strictly after ref's wall-clock time on
// the same day, wrapping to the earliest slot of the next day. Construction
// goes through time.Date with civil components so a DST transition between
// ref and the slot neither skips nor doubles it.
func nextSlot(slots []Slot, ref time.Time) (*time.Time, error) {
	if len(slots) == 0 {
		return nil, ErrNoSlots
	}
	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	slices.SortFunc(sorted, func(a, b Slot) int { return a.minuteOfDay() - b.minuteOfDay() })

	refMin := ref.Hour()*60 + ref.Minute()
	y, m, d := ref.Date()
	for _, s := range sorted {
		if s.minuteOfDay() > refMin {
			t := time.Date(y, m, d, s.Hour, s.Minute, 0, 0, ref.Location())
			return &t, nil
		}
	}
	first := sorted[0]
	t := time.Date(y, m, d+1, first.Hour, first.Minute, 0, 0, ref.Location())
	return &t, nil
}

// nextPeriodBoundary walks forward one day at a time from the midnight after
// ref until the cursor sits on the first instant of the next period. The walk
// is capped; a breach is reported rather than looped on.
func nextPeriodBoundary(freq Frequency, ref time.Time) (*time.Time, error) {
	cursor := startOfDay(ref).AddDate(0, 0, 1)
	for i := 0; i < maxBoundaryIterations; i++ {
		if isPeriodStart(freq, cursor) {
			return &cursor, nil
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return nil, fmt.Errorf("%w: %s from %s", ErrIterationLimit, freq, ref.Format(time.RFC3339))
}

func isPeriodStart(freq Frequency, t time.Time) bool {
	switch freq {
	case FreqDayEnd:
		return true
	case FreqWeekEnd:
		return t.Weekday() == time.Monday
	case FreqMonthEnd:
		return t.Day() == 1
	case FreqQuarterEnd:
		return t.Day() == 1 && (t.Month() == time.January || t.Month() == time.April ||
			t.Month() == time.July || t.Month() == time.October)
	case FreqYearEnd:
		return t.Day() == 1 && t.Month() == time.January
	}
	return false
}

// addMonthsClamped adds n months keeping the day-of-month, clamping to the
// last valid day of the target month (Jan 31 + 1 month = Feb 28/29, not Mar 2).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
