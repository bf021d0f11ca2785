// Package scheduler packs pending tasks into the free gaps of a calendar.
//
// A run reads a snapshot of events and tasks, computes a placement and writes
// it back. Nothing locks the calendar between the read and the write, so two
// runs for the same calendar at the same time can both write their placement.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
	"github.com/harrisonrobin/zenkai/pkg/service"
)

// Result of a scheduling run.
type Result struct {
	WindowStart time.Time
	WindowEnd   time.Time
	// Scheduled holds the auto-scheduled events placed by this run.
	Scheduled []model.Event
	// Events is every external event plus Scheduled, sorted by start.
	Events []model.Event
	// Tasks is the backlog snapshot the run considered, in priority order.
	Tasks []model.Task
	// Missed lists tasks whose deadline falls before the window end and that
	// got no event ending by that deadline.
	Missed []model.Task
}

type Scheduler struct {
	events   service.EventService
	tasks    service.TaskService
	logger   *zap.Logger
	now      func() time.Time
	decorate func(model.Task, *model.Event)
}

func New(events service.EventService, tasks service.TaskService, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{events: events, tasks: tasks, logger: logger, now: time.Now}
}

// WithClock replaces the clock used to tell past events from upcoming ones.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithDecorator sets a hook run on every new event before it is created, with
// the task it was placed for.
func (s *Scheduler) WithDecorator(decorate func(model.Task, *model.Event)) *Scheduler {
	s.decorate = decorate
	return s
}

// Location resolves a timezone name. An empty name means fallback.
func Location(timezone string, fallback *time.Location) (*time.Location, error) {
	if timezone == "" {
		return fallback, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errs.Invalid("timezone", "unknown timezone %q", timezone)
	}
	return loc, nil
}

// Schedule places pending TODO tasks into the free gaps of [windowStart, windowEnd).
// Previously auto-scheduled events inside the window are replaced. Events
// auto-scheduled elsewhere keep their tasks out of this run.
func (s *Scheduler) Schedule(ctx context.Context, windowStart, windowEnd time.Time, timezone string) (*Result, error) {
	if windowStart.IsZero() || windowEnd.IsZero() {
		return nil, errs.Missing("window")
	}
	loc, err := Location(timezone, windowStart.Location())
	if err != nil {
		return nil, err
	}
	return s.schedule(ctx, windowStart.In(loc), windowEnd.In(loc), nil)
}

// ScheduleDays runs one window per day of dates, bounded by hours. Windows
// already over are skipped and a window already started begins now.
func (s *Scheduler) ScheduleDays(ctx context.Context, dates period.DatePeriod, hours period.TimePeriod, timezone string) (*Result, error) {
	loc, err := Location(timezone, dates.Start.Location())
	if err != nil {
		return nil, err
	}

	now := s.now().In(loc)
	total := &Result{}
	placed := make(map[string]bool)
	seenEvents := make(map[string]bool)
	seenTasks := make(map[string]bool)
	for _, day := range dates.Days() {
		start, end := hours.On(day, loc)
		if !end.After(now) {
			continue
		}
		if start.Before(now) {
			start = now.Truncate(time.Minute).Add(time.Minute)
		}
		if !start.Before(end) {
			continue
		}

		res, err := s.schedule(ctx, start, end, placed)
		if err != nil {
			return nil, err
		}
		if total.WindowStart.IsZero() {
			total.WindowStart = res.WindowStart
		}
		total.WindowEnd = res.WindowEnd

		for _, e := range res.Scheduled {
			placed[e.Title] = true
		}
		total.Scheduled = append(total.Scheduled, res.Scheduled...)
		for _, e := range res.Events {
			if e.ID != "" {
				if seenEvents[e.ID] {
					continue
				}
				seenEvents[e.ID] = true
			}
			total.Events = append(total.Events, e)
		}
		for _, t := range res.Tasks {
			if !seenTasks[t.Title] {
				seenTasks[t.Title] = true
				total.Tasks = append(total.Tasks, t)
			}
		}
	}
	model.SortByStart(total.Scheduled)
	model.SortByStart(total.Events)
	total.Missed = missedDeadlines(total.Tasks, total.Scheduled, total.WindowEnd)
	return total, nil
}

func (s *Scheduler) schedule(ctx context.Context, windowStart, windowEnd time.Time, exclude map[string]bool) (*Result, error) {
	if !windowStart.Before(windowEnd) {
		return nil, errs.Invalid("window", "start %s is not before end %s", windowStart.Format(time.RFC3339), windowEnd.Format(time.RFC3339))
	}
	log := s.logger.With(zap.Time("window_start", windowStart), zap.Time("window_end", windowEnd))

	fetchStart := period.StartOfDay(windowStart)
	fetchEnd := period.StartOfDay(windowEnd.AddDate(0, 0, 1))
	fetched, err := s.events.GetEvents(ctx, fetchStart, fetchEnd, 0)
	if err != nil {
		return nil, errs.Backend("get events", err)
	}
	now := s.now()
	marked, err := s.events.FindAutoScheduled(ctx, now)
	if err != nil {
		return nil, errs.Backend("find auto-scheduled events", err)
	}
	p := partition(fetched, marked, windowStart, windowEnd, now)

	todo, err := s.tasks.GetTasks(ctx, model.TODO)
	if err != nil {
		return nil, errs.Backend("get tasks", err)
	}
	var candidates []model.Task
	for _, t := range todo {
		if !t.HasDuration() || p.elsewhere[t.Title] || exclude[t.Title] {
			continue
		}
		candidates = append(candidates, t)
	}
	model.SortByPriority(candidates)

	res := &Result{WindowStart: windowStart, WindowEnd: windowEnd, Tasks: candidates}
	model.SortByStart(p.external)
	if len(candidates) == 0 {
		log.Debug("no pending timed tasks to schedule")
		res.Events = p.external
		return res, nil
	}

	scheduled, remaining := place(candidates, busyIntervals(p.external, windowStart, windowEnd), windowStart, windowEnd)
	log.Info("placed tasks",
		zap.Int("candidates", len(candidates)),
		zap.Int("placed", len(scheduled)),
		zap.Int("unplaced", len(remaining)),
	)

	switch {
	case len(scheduled) == 0:
		res.Events = p.external
	case sameSlots(scheduled, p.inRange):
		log.Debug("placement unchanged, nothing to write")
		res.Scheduled = p.inRange
	default:
		s.decorateAll(candidates, scheduled)
		if len(p.inRange) > 0 {
			if err := s.events.RemoveEvents(ctx, ids(p.inRange)); err != nil {
				return nil, errs.Backend("remove stale auto-scheduled events", err)
			}
		}
		created, err := s.events.CreateEvents(ctx, scheduled)
		if err != nil {
			return nil, errs.Backend("create events", err)
		}
		res.Scheduled = created
	}

	if res.Events == nil {
		res.Events = append(append([]model.Event{}, p.external...), res.Scheduled...)
	}
	model.SortByStart(res.Scheduled)
	model.SortByStart(res.Events)
	res.Missed = missedDeadlines(candidates, res.Scheduled, windowEnd)
	if len(res.Missed) > 0 {
		log.Warn("tasks will miss their deadline", zap.Strings("tasks", model.Titles(res.Missed)))
	}
	return res, nil
}

func (s *Scheduler) decorateAll(tasks []model.Task, events []model.Event) {
	if s.decorate == nil {
		return
	}
	byTitle := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		if _, ok := byTitle[t.Title]; !ok {
			byTitle[t.Title] = t
		}
	}
	for i := range events {
		s.decorate(byTitle[events[i].Title], &events[i])
	}
}

type partitioned struct {
	inRange   []model.Event
	external  []model.Event
	elsewhere map[string]bool
}

// partition splits fetched events into auto-scheduled ones inside the window,
// titles auto-scheduled outside the window and still upcoming, and external
// events. An auto-scheduled event already in progress stays where it is and
// counts as busy. marked adds auto-scheduled events found beyond the fetched range.
func partition(fetched, marked []model.Event, windowStart, windowEnd, now time.Time) partitioned {
	p := partitioned{elsewhere: make(map[string]bool)}
	seen := make(map[string]bool)
	auto := func(e model.Event) {
		switch {
		case e.Start.Before(now) && e.End.After(now):
			p.external = append(p.external, e)
			p.elsewhere[e.Title] = true
		case e.Overlaps(windowStart, windowEnd):
			p.inRange = append(p.inRange, e)
		case e.End.After(now):
			p.elsewhere[e.Title] = true
		}
	}
	for _, e := range fetched {
		if e.ID != "" {
			seen[e.ID] = true
		}
		if e.IsAutoScheduled() {
			auto(e)
		} else {
			p.external = append(p.external, e)
		}
	}
	for _, e := range marked {
		if (e.ID != "" && seen[e.ID]) || !e.IsAutoScheduled() {
			continue
		}
		auto(e)
	}
	return p
}

func sameSlots(a, b []model.Event) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]model.Event{}, a...), append([]model.Event{}, b...)
	model.SortByStart(sa)
	model.SortByStart(sb)
	for i := range sa {
		if !sa[i].SameSlot(sb[i]) {
			return false
		}
	}
	return true
}

func missedDeadlines(tasks []model.Task, scheduled []model.Event, windowEnd time.Time) []model.Task {
	var missed []model.Task
	for _, t := range tasks {
		if !t.HasDeadline() || !t.Deadline.Before(windowEnd) {
			continue
		}
		onTime := false
		for _, e := range scheduled {
			if e.Title == t.Title && !e.End.After(*t.Deadline) {
				onTime = true
				break
			}
		}
		if !onTime {
			missed = append(missed, t)
		}
	}
	return missed
}

func ids(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		if e.ID != "" {
			out = append(out, e.ID)
		}
	}
	return out
}
