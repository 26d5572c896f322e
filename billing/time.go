package billing

import (
	"math"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day in a specific IANA zone
// =============================================================================
// Every date in a payment plan is a *day*, and the day boundary depends on
// the academy's timezone. A plan in "America/Sao_Paulo" rolls its due dates
// at Sao Paulo midnight, not UTC midnight. All comparisons and arithmetic
// normalize to midnight in the point's own zone so DST transitions never
// shift an obligation by a day.

type TimePoint struct {
	Time time.Time
	Loc  *time.Location
}

// Constructors
func NewTimePoint(year int, month time.Month, day int, loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.UTC
	}
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, loc), Loc: loc}
}

// DayOf returns the calendar day containing the instant t, in loc.
func DayOf(t time.Time, loc *time.Location) TimePoint {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return NewTimePoint(local.Year(), local.Month(), local.Day(), loc)
}

func Today(loc *time.Location) TimePoint {
	return DayOf(time.Now(), loc)
}

func (tp TimePoint) Location() *time.Location {
	if tp.Loc == nil {
		return time.UTC
	}
	return tp.Loc
}

func (tp TimePoint) normalize() time.Time {
	loc := tp.Location()
	local := tp.Time.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint {
	t := tp.normalize().AddDate(0, 0, n)
	return NewTimePoint(t.Year(), t.Month(), t.Day(), tp.Location())
}

// AddMonths steps whole calendar months, clamping the day to the target
// month's length. Jan 31 + 1 month is Feb 28, never Mar 3.
func (tp TimePoint) AddMonths(n int) TimePoint {
	t := tp.normalize()
	year, month := addCalendarMonths(t.Year(), t.Month(), n)
	return ClampDayOfMonth(year, month, t.Day(), tp.Location())
}

// Properties
func (tp TimePoint) Year() int         { return tp.normalize().Year() }
func (tp TimePoint) Month() time.Month { return tp.normalize().Month() }
func (tp TimePoint) Day() int          { return tp.normalize().Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.normalize().Format("2006-01-02")
}

// DaysBetween returns the number of calendar days from `from` to `to`.
// Negative when `to` precedes `from`. Rounding absorbs the 23h/25h days
// that DST transitions produce.
func DaysBetween(from, to TimePoint) int {
	return int(math.Round(to.normalize().Sub(from.normalize()).Hours() / 24))
}

// =============================================================================
// MONTH ARITHMETIC - Clamped day-of-month recurrence
// =============================================================================
// Subscription due dates repeat on a configured day-of-month. When that day
// does not exist in the target month (day 31 in February), the due date
// clamps to the month's last day. The clamp applies per-month: a day-31
// subscription is due Feb 28, then Mar 31 again.

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDayOfMonth returns `day` of the given month, clamped to the month's
// last day when the month is shorter.
func ClampDayOfMonth(year int, month time.Month, day int, loc *time.Location) TimePoint {
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	if day < 1 {
		day = 1
	}
	return NewTimePoint(year, month, day, loc)
}

// addCalendarMonths shifts a (year, month) pair without touching days,
// so clamping stays the caller's decision.
func addCalendarMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + n
	return idx / 12, time.Month(idx%12 + 1)
}
