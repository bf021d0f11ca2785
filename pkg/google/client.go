package google

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/zenkai/pkg/auth"
)

// Scopes requested for the calendar backend.
var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// NewClient authenticates through flow and returns a client for the calendar
// whose name is calendarName.
func NewClient(ctx context.Context, flow *auth.Flow, calendarName string, opts Options) (*CalendarClient, error) {
	httpClient, err := flow.Client(ctx, Scopes)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve Calendar client")
	}
	calendarID, err := FindCalendarID(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, opts), nil
}

// FindCalendarID resolves a calendar name to its ID. "primary" is accepted as is.
func FindCalendarID(ctx context.Context, srv *calendar.Service, calendarName string) (string, error) {
	if calendarName == "primary" {
		return calendarName, nil
	}
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "unable to retrieve calendar list")
	}
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			return item.Id, nil
		}
	}
	return "", errors.Errorf("calendar '%s' not found", calendarName)
}
