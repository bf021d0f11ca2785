package model

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// AutoScheduledMarker is embedded in the description of every event the
// scheduler creates, so backends without a metadata field can still tell
// generated events from user-created ones.
const AutoScheduledMarker = "#zenkai-autoscheduled"

// Event is a calendar event, independent of any specific calendar provider.
type Event struct {
	// ID is assigned by the calendar backend; empty until persisted.
	ID          string
	Title       string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	URL         string
	// AllDay events span whole calendar days and never block scheduling.
	AllDay bool
	// AutoScheduled is the structured tag for generated events.
	AutoScheduled bool
	// Color is a provider color ID. Empty keeps the calendar default.
	Color string
}

// Validate checks the start < end invariant required before persistence.
func (e Event) Validate() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return errors.New("event needs both a start and an end")
	}
	if !e.Start.Before(e.End) {
		return errors.New("event must start before it ends")
	}
	return nil
}

// IsAutoScheduled reports whether the event was generated by the scheduler.
func (e Event) IsAutoScheduled() bool {
	return e.AutoScheduled || strings.Contains(e.Description, AutoScheduledMarker)
}

// Overlaps reports whether [e.Start, e.End) intersects [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && start.Before(e.End)
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// SameSlot reports whether both events share title, start and end.
func (e Event) SameSlot(o Event) bool {
	return e.Title == o.Title && e.Start.Equal(o.Start) && e.End.Equal(o.End)
}

// SortByStart orders events by start time, then end time. The sort is stable.
func SortByStart(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})
}
