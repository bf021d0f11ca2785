package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

// fakeCalendar serves the subset of the Calendar v3 REST API the client uses.
type fakeCalendar struct {
	mu       sync.Mutex
	events   map[string]*calendar.Event
	nextID   int
	pageSize int
	inserts  int
	deletes  int
	lists    int
	queries  []url.Values
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]*calendar.Event{}}
}

func (f *fakeCalendar) add(e *calendar.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.Id = fmt.Sprintf("ev%d", f.nextID)
	f.events[e.Id] = e
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const prefix = "/calendars/cal/events"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		f.lists++
		f.list(w, r)
	case r.Method == http.MethodPost && id == "":
		f.inserts++
		var e calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nextID++
		e.Id = fmt.Sprintf("ev%d", f.nextID)
		f.events[e.Id] = &e
		json.NewEncoder(w).Encode(&e)
	case r.Method == http.MethodDelete && id != "":
		f.deletes++
		if _, ok := f.events[id]; !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"Not Found"}}`)
			return
		}
		delete(f.events, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeCalendar) list(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	f.queries = append(f.queries, params)
	q := strings.ToLower(params.Get("q"))
	property, value, _ := strings.Cut(params.Get("privateExtendedProperty"), "=")
	var items []*calendar.Event
	for _, e := range f.events {
		if q != "" && !strings.Contains(strings.ToLower(e.Summary+" "+e.Description), q) {
			continue
		}
		if property != "" && (e.ExtendedProperties == nil || e.ExtendedProperties.Private[property] != value) {
			continue
		}
		if from := params.Get("timeMin"); from != "" && e.End.DateTime != "" && e.End.DateTime <= from {
			continue
		}
		items = append(items, e)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Start.DateTime < items[j].Start.DateTime })

	resp := &calendar.Events{}
	if f.pageSize > 0 && len(items) > f.pageSize {
		if r.URL.Query().Get("pageToken") == "" {
			items = items[:f.pageSize]
			resp.NextPageToken = "next"
		} else {
			items = items[f.pageSize:]
		}
	}
	resp.Items = items
	json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, fake *fakeCalendar, opts Options) *CalendarClient {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return NewCalendarClient(svc, "cal", opts)
}

func apiEvent(title string, start, end time.Time) *calendar.Event {
	return &calendar.Event{
		Summary: title,
		Start:   &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
}

func TestGetEventsFollowsPages(t *testing.T) {
	fake := newFakeCalendar()
	fake.pageSize = 2
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		fake.add(apiEvent(fmt.Sprintf("meeting %d", i), base.Add(time.Duration(i)*time.Hour), base.Add(time.Duration(i)*time.Hour+30*time.Minute)))
	}
	client := newTestClient(t, fake, Options{})

	events, err := client.GetEvents(context.Background(), base, base.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "meeting 0", events[0].Title)
	assert.Equal(t, "meeting 2", events[2].Title)
	assert.Equal(t, 2, fake.lists)
}

func TestGetEventsMaxResults(t *testing.T) {
	fake := newFakeCalendar()
	fake.pageSize = 2
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		fake.add(apiEvent(fmt.Sprintf("meeting %d", i), base.Add(time.Duration(i)*time.Hour), base.Add(time.Duration(i)*time.Hour+30*time.Minute)))
	}
	client := newTestClient(t, fake, Options{})

	events, err := client.GetEvents(context.Background(), base, time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGetEventsSkipsCancelled(t *testing.T) {
	fake := newFakeCalendar()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	cancelled := apiEvent("gone", base, base.Add(time.Hour))
	cancelled.Status = "cancelled"
	fake.add(cancelled)
	fake.add(apiEvent("kept", base, base.Add(time.Hour)))
	client := newTestClient(t, fake, Options{})

	events, err := client.GetEvents(context.Background(), base, base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].Title)
}

func TestCreateEventsKeepsOrderAcrossBatches(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, Options{BatchSize: 2})
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	var in []model.Event
	for i := 0; i < 5; i++ {
		in = append(in, model.Event{
			Title:         fmt.Sprintf("task %d", i),
			Start:         base.Add(time.Duration(i) * time.Hour),
			End:           base.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			AutoScheduled: true,
		})
	}
	created, err := client.CreateEvents(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, created, 5)
	for i, e := range created {
		assert.Equal(t, in[i].Title, e.Title)
		assert.NotEmpty(t, e.ID)
		assert.True(t, e.AutoScheduled)
		assert.True(t, e.Start.Equal(in[i].Start))
	}
	assert.Equal(t, 5, fake.inserts)
}

func TestCreateEventsRejectsInvalid(t *testing.T) {
	fake := newFakeCalendar()
	client := newTestClient(t, fake, Options{})
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	_, err := client.CreateEvents(context.Background(), []model.Event{
		{Title: "ok", Start: base, End: base.Add(time.Hour)},
		{Title: "backwards", Start: base, End: base.Add(-time.Hour)},
	})
	assert.Error(t, err)
	assert.Zero(t, fake.inserts)
}

func TestRemoveEventsIgnoresMissing(t *testing.T) {
	fake := newFakeCalendar()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	fake.add(apiEvent("standup", base, base.Add(15*time.Minute)))
	client := newTestClient(t, fake, Options{})

	err := client.RemoveEvents(context.Background(), []string{"ev1", "missing"})
	require.NoError(t, err)
	assert.Empty(t, fake.events)
	assert.Equal(t, 2, fake.deletes)
}

func TestRemoveEventsMatching(t *testing.T) {
	fake := newFakeCalendar()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	fake.add(&calendar.Event{
		Summary:     "write report",
		Description: "\n\n" + model.AutoScheduledMarker,
		Start:       &calendar.EventDateTime{DateTime: base.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: base.Add(time.Hour).Format(time.RFC3339)},
	})
	fake.add(apiEvent("lunch", base.Add(3*time.Hour), base.Add(4*time.Hour)))
	client := newTestClient(t, fake, Options{})

	require.NoError(t, client.RemoveEventsMatching(context.Background(), model.AutoScheduledMarker))
	require.Len(t, fake.events, 1)
	for _, e := range fake.events {
		assert.Equal(t, "lunch", e.Summary)
	}
}

func TestFindEvent(t *testing.T) {
	fake := newFakeCalendar()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	fake.add(apiEvent("dentist", base, base.Add(time.Hour)))
	client := newTestClient(t, fake, Options{})

	e, err := client.FindEvent(context.Background(), "dentist")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "dentist", e.Title)

	e, err = client.FindEvent(context.Background(), "plumber")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestFindAutoScheduledFiltersByProperty(t *testing.T) {
	fake := newFakeCalendar()
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	auto := func(title string, start time.Time) *calendar.Event {
		e := apiEvent(title, start, start.Add(time.Hour))
		e.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{autoScheduledProperty: "true"},
		}
		return e
	}
	fake.add(auto("gym", now.AddDate(0, 0, 2)))
	fake.add(auto("old review", now.AddDate(0, 0, -3)))
	fake.add(apiEvent("mentions "+model.AutoScheduledMarker, now.Add(time.Hour), now.Add(2*time.Hour)))
	client := newTestClient(t, fake, Options{})

	events, err := client.FindAutoScheduled(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "gym", events[0].Title)
	assert.True(t, events[0].AutoScheduled)

	require.Len(t, fake.queries, 1)
	params := fake.queries[0]
	assert.Equal(t, autoScheduledProperty+"=true", params.Get("privateExtendedProperty"))
	assert.Equal(t, now.Format(time.RFC3339), params.Get("timeMin"))
	assert.Empty(t, params.Get("q"))
}
