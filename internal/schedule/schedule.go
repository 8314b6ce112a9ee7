// Package schedule holds the working-hours model shared by queues and
// bookable services: minute-of-day clock values, per-weekday windows with
// an optional break, and the interval overlap test used for slot conflicts.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// MinuteOfDay is a clock time expressed as minutes since midnight (0..1439).
type MinuteOfDay int

var (
	ErrBadClock = errors.New("clock value must be HH:MM")
	ErrBadDate  = errors.New("date must be YYYY-MM-DD")
)

// ParseClock parses "HH:MM" into a MinuteOfDay. Both fields must be
// exactly two digits.
func ParseClock(s string) (MinuteOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, ErrBadClock
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, ErrBadClock
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, ErrBadClock
	}
	return MinuteOfDay(h*60 + m), nil
}

func (m MinuteOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// AtTime is the MinuteOfDay of a wall-clock instant.
func AtTime(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

const DateLayout = "2006-01-02"

// ParseDate parses a calendar date in the stored YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

// Overlaps reports whether the half-open intervals [aStart, aStart+aLen)
// and [bStart, bStart+bLen) intersect. Minute lengths of zero or less
// never overlap anything.
func Overlaps(aStart MinuteOfDay, aLen int, bStart MinuteOfDay, bLen int) bool {
	if aLen <= 0 || bLen <= 0 {
		return false
	}
	return int(aStart) < int(bStart)+bLen && int(bStart) < int(aStart)+aLen
}

// DaySchedule is the availability window for one weekday. A window with
// End <= Start crosses midnight (End == 0 means "until midnight").
type DaySchedule struct {
	Enabled    bool
	Start      MinuteOfDay
	End        MinuteOfDay
	HasBreak   bool
	BreakStart MinuteOfDay
	BreakEnd   MinuteOfDay
}

var (
	ErrBreakOrder   = errors.New("break end must be after break start")
	ErrBreakOutside = errors.New("break must fall inside the working window")
)

// Validate rejects break windows that are inverted or stick out of the
// working window. Midnight-crossing windows cannot carry a break.
func (d DaySchedule) Validate() error {
	if !d.HasBreak {
		return nil
	}
	if d.BreakEnd <= d.BreakStart {
		return ErrBreakOrder
	}
	if d.End <= d.Start || d.BreakStart < d.Start || d.BreakEnd > d.End {
		return ErrBreakOutside
	}
	return nil
}

// Covers reports whether the window is open at the given clock minute,
// accounting for midnight-crossing windows and the break.
func (d DaySchedule) Covers(at MinuteOfDay) bool {
	if !d.Enabled {
		return false
	}
	crossesMidnight := d.End <= d.Start
	if crossesMidnight {
		if d.End == 0 {
			if at < d.Start {
				return false
			}
		} else if at < d.Start && at >= d.End {
			return false
		}
	} else {
		if at < d.Start || at >= d.End {
			return false
		}
	}
	if d.HasBreak && at >= d.BreakStart && at < d.BreakEnd {
		return false
	}
	return true
}

// WeekSchedule maps each weekday to its availability window, indexed by
// time.Weekday (Sunday = 0). A zero-value entry is a disabled day.
type WeekSchedule [7]DaySchedule

// Day returns the window for the given weekday.
func (w *WeekSchedule) Day(wd time.Weekday) DaySchedule {
	return w[int(wd)]
}

// SetDay replaces the window for the given weekday.
func (w *WeekSchedule) SetDay(wd time.Weekday, d DaySchedule) {
	w[int(wd)] = d
}

// OpenAt reports whether the schedule is open at the given instant.
func (w *WeekSchedule) OpenAt(t time.Time) bool {
	return w.Day(t.Weekday()).Covers(AtTime(t))
}

// Validate checks every enabled day.
func (w *WeekSchedule) Validate() error {
	for wd, d := range w {
		if !d.Enabled {
			continue
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%s: %w", time.Weekday(wd), err)
		}
	}
	return nil
}
