package cli

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/builder"
	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/period"
)

var (
	clockText    = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?\s*(am|pm|a\.m\.?|p\.m\.?)?$`)
	relativeDays = regexp.MustCompile(`^\+(\d+)d$`)
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// parseDate reads YYYY-MM-DD, today, tomorrow, yesterday, +Nd or a weekday
// name, which means its next occurrence after today.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	today := period.StartOfDay(now)
	switch s {
	case "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	if m := relativeDays.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, n), nil
	}
	if wd, ok := weekdays[s]; ok {
		offset := (int(wd) - int(today.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return today.AddDate(0, 0, offset), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, s, now.Location())
	if err != nil {
		return time.Time{}, errs.Invalid("date", "expected YYYY-MM-DD, today, tomorrow, +Nd or a weekday, got %q", s)
	}
	return d, nil
}

// parseClockText reads 24-hour HH:MM and 12-hour forms such as 7am or 3:30 p.m.
func parseClockText(s string) (period.Clock, error) {
	m := clockText.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return period.Clock{}, errs.Invalid("time", "expected HH:MM or a time like 7am, got %q", s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	if suffix := m[3]; suffix != "" {
		if hour < 1 || hour > 12 {
			return period.Clock{}, errs.Invalid("time", "hour %d out of range in %q", hour, s)
		}
		hour %= 12
		if strings.HasPrefix(suffix, "p") {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return period.Clock{}, errs.Invalid("time", "out of range: %q", s)
	}
	return period.Clock{Hour: hour, Minute: minute}, nil
}

// fragment combines optional date and time flags into a builder fragment.
func fragment(dateText, timeText string, now time.Time) (builder.Fragment, error) {
	var f builder.Fragment
	f.Value = now
	if dateText != "" {
		d, err := parseDate(dateText, now)
		if err != nil {
			return builder.Fragment{}, err
		}
		f.Value = d
		f.HasDate = true
	}
	if timeText != "" {
		c, err := parseClockText(timeText)
		if err != nil {
			return builder.Fragment{}, err
		}
		f.Value = c.On(f.Value, now.Location())
		f.HasTime = true
	}
	return f, nil
}

// parseDeadline reads a date with an optional HH:MM. A bare date means the end
// of that day.
func parseDeadline(s string, now time.Time) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	dateText, timeText, hasTime := strings.Cut(strings.TrimSpace(s), " ")
	d, err := parseDate(dateText, now)
	if err != nil {
		return nil, err
	}
	c := period.Clock{Hour: 23, Minute: 59}
	if hasTime {
		if c, err = parseClockText(timeText); err != nil {
			return nil, err
		}
	}
	deadline := c.On(d, now.Location())
	return &deadline, nil
}
