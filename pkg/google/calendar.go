package google

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
)

const (
	// MaxBatchSize bounds the number of operations sent per round trip.
	MaxBatchSize = 50
	maxPageSize  = 2500
)

// Options tune a CalendarClient.
type Options struct {
	BatchSize         int
	RequestsPerSecond float64
	Location          *time.Location
	Logger            *zap.Logger
}

// CalendarClient is a Google Calendar API client implementing service.EventService.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	batchSize  int
	limiter    *rate.Limiter
	loc        *time.Location
	logger     *zap.Logger
	now        func() time.Time
}

// NewCalendarClient creates a new Google Calendar client.
func NewCalendarClient(srv *calendar.Service, calendarID string, opts Options) *CalendarClient {
	c := &CalendarClient{
		srv:        srv,
		calendarID: calendarID,
		batchSize:  opts.BatchSize,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		loc:        opts.Location,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if c.batchSize <= 0 || c.batchSize > MaxBatchSize {
		c.batchSize = MaxBatchSize
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), c.batchSize)
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

func (c *CalendarClient) ReadEvents(ctx context.Context, date time.Time) ([]model.Event, error) {
	start := period.StartOfDay(date.In(c.loc))
	return c.GetEvents(ctx, start, start.AddDate(0, 0, 1), 0)
}

func (c *CalendarClient) ReadFollowingEvents(ctx context.Context, n int, maxDate time.Time) ([]model.Event, error) {
	return c.GetEvents(ctx, c.now(), maxDate, n)
}

// GetEvents lists single events overlapping [start, end), following pages
// until maxResults events were read.
func (c *CalendarClient) GetEvents(ctx context.Context, start, end time.Time, maxResults int) ([]model.Event, error) {
	call := c.srv.Events.List(c.calendarID).SingleEvents(true).OrderBy("startTime")
	if !start.IsZero() {
		call = call.TimeMin(start.Format(time.RFC3339))
	}
	if !end.IsZero() {
		call = call.TimeMax(end.Format(time.RFC3339))
	}
	return c.list(ctx, call, maxResults)
}

func (c *CalendarClient) FindEvent(ctx context.Context, query string) (*model.Event, error) {
	events, err := c.list(ctx, c.srv.Events.List(c.calendarID).SingleEvents(true).Q(query), 1)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// FindEvents runs a free-text search over titles, descriptions and locations.
func (c *CalendarClient) FindEvents(ctx context.Context, query string) ([]model.Event, error) {
	events, err := c.list(ctx, c.srv.Events.List(c.calendarID).SingleEvents(true).Q(query), 0)
	if err != nil {
		return nil, err
	}
	model.SortByStart(events)
	return events, nil
}

// FindAutoScheduled lists events carrying the private auto-scheduled property
// that end after from.
func (c *CalendarClient) FindAutoScheduled(ctx context.Context, from time.Time) ([]model.Event, error) {
	call := c.srv.Events.List(c.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		PrivateExtendedProperty(autoScheduledProperty + "=true").
		TimeMin(from.Format(time.RFC3339))
	return c.list(ctx, call, 0)
}

func (c *CalendarClient) list(ctx context.Context, call *calendar.EventsListCall, maxResults int) ([]model.Event, error) {
	var out []model.Event
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		pageSize := maxPageSize
		if maxResults > 0 && maxResults-len(out) < pageSize {
			pageSize = maxResults - len(out)
		}
		page, err := call.MaxResults(int64(pageSize)).PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			return nil, errors.Wrap(err, "unable to retrieve events from calendar")
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			e, err := fromCalendarEvent(item, c.loc)
			if err != nil {
				c.logger.Warn("skipping unreadable event", zap.String("event_id", item.Id), zap.Error(err))
				continue
			}
			out = append(out, e)
		}
		pageToken = page.NextPageToken
		if pageToken == "" || (maxResults > 0 && len(out) >= maxResults) {
			break
		}
	}
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (c *CalendarClient) CreateEvent(ctx context.Context, event model.Event) (model.Event, error) {
	created, err := c.CreateEvents(ctx, []model.Event{event})
	if err != nil {
		return model.Event{}, err
	}
	return created[0], nil
}

// CreateEvents inserts the events in batches of at most BatchSize concurrent
// requests. The result keeps the input order.
func (c *CalendarClient) CreateEvents(ctx context.Context, events []model.Event) ([]model.Event, error) {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, errors.Wrapf(err, "event %q", e.Title)
		}
	}
	created := make([]model.Event, len(events))
	err := c.batch(ctx, len(events), func(ctx context.Context, i int) error {
		inserted, err := c.srv.Events.Insert(c.calendarID, toCalendarEvent(events[i])).Context(ctx).Do()
		if err != nil {
			return errors.Wrapf(err, "unable to insert event %q", events[i].Title)
		}
		e, err := fromCalendarEvent(inserted, c.loc)
		if err != nil {
			return err
		}
		created[i] = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (c *CalendarClient) RemoveEvent(ctx context.Context, event model.Event) error {
	return c.RemoveEvents(ctx, []string{event.ID})
}

// RemoveEvents deletes events by ID in batches. Events already gone are ignored.
func (c *CalendarClient) RemoveEvents(ctx context.Context, ids []string) error {
	return c.batch(ctx, len(ids), func(ctx context.Context, i int) error {
		err := c.srv.Events.Delete(c.calendarID, ids[i]).Context(ctx).Do()
		if isGone(err) {
			return nil
		}
		return errors.Wrapf(err, "unable to delete event %s", ids[i])
	})
}

func (c *CalendarClient) RemoveEventsMatching(ctx context.Context, query string) error {
	events, err := c.FindEvents(ctx, query)
	if err != nil {
		return err
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return c.RemoveEvents(ctx, ids)
}

// batch runs op for indexes [0, n) in consecutive groups of batchSize, each
// group concurrently. A failing group stops the remaining ones.
func (c *CalendarClient) batch(ctx context.Context, n int, op func(ctx context.Context, i int) error) error {
	for from := 0; from < n; from += c.batchSize {
		to := min(from+c.batchSize, n)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.batchSize)
		for i := from; i < to; i++ {
			g.Go(func() error {
				if err := c.limiter.Wait(gctx); err != nil {
					return err
				}
				return op(gctx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		c.logger.Debug("batch done", zap.Int("from", from), zap.Int("to", to))
	}
	return nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
