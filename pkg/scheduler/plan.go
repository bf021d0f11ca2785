package scheduler

import (
	"slices"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

type interval struct {
	start, end time.Time
}

// busyIntervals returns the timed events overlapping [start, end) as sorted,
// coalesced intervals.
func busyIntervals(events []model.Event, start, end time.Time) []interval {
	var busy []interval
	for _, e := range events {
		if e.AllDay || !e.Start.Before(e.End) || !e.Overlaps(start, end) {
			continue
		}
		busy = append(busy, interval{start: e.Start, end: e.End})
	}
	slices.SortFunc(busy, func(a, b interval) int { return a.start.Compare(b.start) })

	merged := busy[:0]
	for _, b := range busy {
		if n := len(merged); n > 0 && !b.start.After(merged[n-1].end) {
			if b.end.After(merged[n-1].end) {
				merged[n-1].end = b.end
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

// place walks the free gaps of [windowStart, windowEnd) in order and fills
// each with the first remaining task, in priority order, whose duration fits.
// When nothing fits, the walk skips past the next busy interval. Tasks that
// were never placed are returned in their original order.
func place(tasks []model.Task, busy []interval, windowStart, windowEnd time.Time) ([]model.Event, []model.Task) {
	remaining := slices.Clone(tasks)
	var placed []model.Event

	current := windowStart
	next := 0
	for current.Before(windowEnd) && len(remaining) > 0 {
		for next < len(busy) && !busy[next].end.After(current) {
			next++
		}
		if next < len(busy) && !busy[next].start.After(current) {
			current = busy[next].end
			next++
			continue
		}

		limit := windowEnd
		if next < len(busy) && busy[next].start.Before(windowEnd) {
			limit = busy[next].start
		}

		i := firstFit(remaining, limit.Sub(current))
		if i < 0 {
			if limit.Equal(windowEnd) {
				break
			}
			current = busy[next].end
			next++
			continue
		}

		event := remaining[i].ToEvent(current)
		placed = append(placed, event)
		current = event.End
		remaining = slices.Delete(remaining, i, i+1)
	}
	return placed, remaining
}

func firstFit(tasks []model.Task, gap time.Duration) int {
	return slices.IndexFunc(tasks, func(t model.Task) bool {
		return t.Duration <= gap
	})
}
