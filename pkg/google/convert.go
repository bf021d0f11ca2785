package google

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
)

// autoScheduledProperty is the private extended property tagging generated events.
const autoScheduledProperty = "zenkai_autoscheduled"

// toCalendarEvent converts an event for insertion.
func toCalendarEvent(e model.Event) *calendar.Event {
	event := &calendar.Event{
		Summary:     e.Title,
		Description: e.Description,
		Location:    e.Location,
		ColorId:     e.Color,
	}
	if e.AllDay {
		event.Start = &calendar.EventDateTime{Date: e.Start.Format(time.DateOnly)}
		event.End = &calendar.EventDateTime{Date: e.End.Format(time.DateOnly)}
	} else {
		event.Start = dateTime(e.Start)
		event.End = dateTime(e.End)
	}
	if e.URL != "" {
		event.Source = &calendar.EventSource{Title: e.Title, Url: e.URL}
	}
	if e.AutoScheduled {
		event.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{autoScheduledProperty: "true"},
		}
	}
	return event
}

func dateTime(t time.Time) *calendar.EventDateTime {
	dt := &calendar.EventDateTime{DateTime: t.Format(time.RFC3339)}
	if name := t.Location().String(); name != "Local" && name != "UTC" {
		dt.TimeZone = name
	}
	return dt
}

// fromCalendarEvent converts an API event. All-day dates are read in loc.
func fromCalendarEvent(event *calendar.Event, loc *time.Location) (model.Event, error) {
	if event.Start == nil || event.End == nil {
		return model.Event{}, fmt.Errorf("event %s has no start or end", event.Id)
	}
	start, allDay, err := parseEventTime(event.Start, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s start: %w", event.Id, err)
	}
	end, _, err := parseEventTime(event.End, loc)
	if err != nil {
		return model.Event{}, fmt.Errorf("event %s end: %w", event.Id, err)
	}

	e := model.Event{
		ID:          event.Id,
		Title:       event.Summary,
		Start:       start,
		End:         end,
		Description: event.Description,
		Location:    event.Location,
		URL:         event.HtmlLink,
		AllDay:      allDay,
		Color:       event.ColorId,
	}
	if event.Source != nil && event.Source.Url != "" {
		e.URL = event.Source.Url
	}
	if event.ExtendedProperties != nil && event.ExtendedProperties.Private[autoScheduledProperty] == "true" {
		e.AutoScheduled = true
	}
	return e, nil
}

func parseEventTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, err
		}
		return t.In(loc), false, nil
	}
	if dt.Date == "" {
		return time.Time{}, false, fmt.Errorf("neither date nor dateTime set")
	}
	d, err := time.ParseInLocation(time.DateOnly, dt.Date, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return period.StartOfDay(d), true, nil
}
