// Package period provides time-of-day and calendar-date ranges.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/errs"
)

// Clock is a time of day with second precision.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseClock parses "15:04" or "15:04:05".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return Clock{}, errs.Invalid("time", "cannot parse %q", s)
}

func (c Clock) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// Before reports whether c is earlier in the day than o.
func (c Clock) Before(o Clock) bool {
	return c.seconds() < o.seconds()
}

func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant of c on date's calendar day in loc.
func (c Clock) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.In(loc).Date()
	return time.Date(y, m, d, c.Hour, c.Minute, c.Second, 0, loc)
}

// TimePeriod is a range of times of day. Start <= End unless Wrap is set,
// in which case the period crosses midnight.
type TimePeriod struct {
	Start Clock
	End   Clock
	Wrap  bool
}

// DefaultTimePeriod is the whole day, 00:00 to 23:59:59.
func DefaultTimePeriod() TimePeriod {
	return TimePeriod{Start: Clock{}, End: Clock{Hour: 23, Minute: 59, Second: 59}}
}

// NewTimePeriod builds a period, rejecting an inverted range unless allowWrap.
func NewTimePeriod(start, end Clock, allowWrap bool) (TimePeriod, error) {
	if end.Before(start) {
		if !allowWrap {
			return TimePeriod{}, errs.Invalid("time period", "%s is after %s", start, end)
		}
		return TimePeriod{Start: start, End: end, Wrap: true}, nil
	}
	return TimePeriod{Start: start, End: end}, nil
}

// ParseTimePeriod parses "09:00-18:00". A range crossing midnight is accepted.
func ParseTimePeriod(s string) (TimePeriod, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return TimePeriod{}, errs.Invalid("time period", "expected HH:MM-HH:MM, got %q", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return TimePeriod{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return TimePeriod{}, err
	}
	return NewTimePeriod(start, end, true)
}

// Contains reports whether c falls inside the period, bounds included.
func (p TimePeriod) Contains(c Clock) bool {
	if p.Wrap {
		return !c.Before(p.Start) || !p.End.Before(c)
	}
	return !c.Before(p.Start) && !p.End.Before(c)
}

// Duration is the length of the period.
func (p TimePeriod) Duration() time.Duration {
	d := time.Duration(p.End.seconds()-p.Start.seconds()) * time.Second
	if p.Wrap {
		d += 24 * time.Hour
	}
	return d
}

// On returns the concrete instants of the period on date in loc.
func (p TimePeriod) On(date time.Time, loc *time.Location) (time.Time, time.Time) {
	start := p.Start.On(date, loc)
	end := p.End.On(date, loc)
	if p.Wrap {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

func (p TimePeriod) String() string {
	return p.Start.String() + "-" + p.End.String()
}

// DatePeriod is an inclusive range of calendar days. Start and End are kept at
// midnight of their day.
type DatePeriod struct {
	Start time.Time
	End   time.Time
}

// DefaultDatePeriod runs from today through one week from today.
func DefaultDatePeriod(now time.Time) DatePeriod {
	today := StartOfDay(now)
	return DatePeriod{Start: today, End: today.AddDate(0, 0, 7)}
}

// NewDatePeriod builds a period from two dates, rejecting end before start.
func NewDatePeriod(start, end time.Time) (DatePeriod, error) {
	start, end = StartOfDay(start), StartOfDay(end)
	if end.Before(start) {
		return DatePeriod{}, errs.Invalid("date period", "%s is after %s", start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return DatePeriod{Start: start, End: end}, nil
}

// WeekOf returns Monday through Sunday of the week containing date.
func WeekOf(date time.Time) DatePeriod {
	day := StartOfDay(date)
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	return DatePeriod{Start: monday, End: monday.AddDate(0, 0, 6)}
}

// Contains reports whether t's calendar day is within the period.
func (p DatePeriod) Contains(t time.Time) bool {
	day := StartOfDay(t.In(p.Start.Location()))
	return !day.Before(p.Start) && !day.After(p.End)
}

// Days lists every day of the period at midnight.
func (p DatePeriod) Days() []time.Time {
	var days []time.Time
	for d := p.Start; !d.After(p.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Window returns the half-open instant range covering the period in loc.
func (p DatePeriod) Window(loc *time.Location) (time.Time, time.Time) {
	start := Clock{}.On(p.Start, loc)
	return start, Clock{}.On(p.End, loc).AddDate(0, 0, 1)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDate reports whether a and b fall on the same calendar day in a's location.
func SameDate(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateBefore reports whether a's calendar day is strictly before b's.
func DateBefore(a, b time.Time) bool {
	return StartOfDay(a).Before(StartOfDay(b.In(a.Location())))
}

// WithDate keeps the time of day of t and replaces its date by date's.
func WithDate(t, date time.Time) time.Time {
	return ClockOf(t).On(date, t.Location()).Add(time.Duration(t.Nanosecond()))
}
