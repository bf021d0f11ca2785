// Package builder turns partial date and time fragments into one calendar event.
package builder

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/match"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
	"github.com/harrisonrobin/zenkai/pkg/scheduler"
	"github.com/harrisonrobin/zenkai/pkg/service"
)

const (
	pastTolerance   = time.Minute
	defaultDuration = time.Hour
)

// DefaultTriggers are title phrases asking to plan the backlog instead of
// creating a single event.
var DefaultTriggers = []string{
	"schedule my tasks",
	"schedule my day",
	"plan my tasks",
	"plan my day",
	"organize my day",
	"auto-schedule",
	"autoschedule",
}

// Fragment is a possibly partial point in time. Only the components flagged
// present are read from Value.
type Fragment struct {
	Value   time.Time
	HasDate bool
	HasTime bool
}

// At is a fragment with both date and time.
func At(t time.Time) Fragment {
	return Fragment{Value: t, HasDate: true, HasTime: true}
}

// OnDate is a date-only fragment.
func OnDate(t time.Time) Fragment {
	return Fragment{Value: t, HasDate: true}
}

// AtTime is a time-only fragment.
func AtTime(t time.Time) Fragment {
	return Fragment{Value: t, HasTime: true}
}

func (f Fragment) IsZero() bool {
	return !f.HasDate && !f.HasTime
}

// resolve completes the fragment with now's date or time of day.
func (f Fragment) resolve(now time.Time) time.Time {
	switch {
	case f.HasDate && f.HasTime:
		return f.Value
	case f.HasDate:
		return period.WithDate(now, f.Value.In(now.Location()))
	case f.HasTime:
		return period.WithDate(f.Value, now.In(f.Value.Location()))
	}
	return now
}

// Request carries the candidate values extracted from the user's phrase.
type Request struct {
	Start Fragment
	End   Fragment
	// EndTimeExplicit is set when the user gave an end time, not just a date.
	// It is ignored when End is zero.
	EndTimeExplicit bool

	StartDateText string
	EndDateText   string
	StartTimeText string
	EndTimeText   string

	Title    string
	Location string
	Now      time.Time
}

// Planner schedules the backlog over a window.
type Planner interface {
	Schedule(ctx context.Context, windowStart, windowEnd time.Time, timezone string) (*scheduler.Result, error)
}

// Outcome of a build. Exactly one of Event and Schedule is set.
type Outcome struct {
	Event     *model.Event
	Conflicts []model.Event
	// Schedule is set when the request asked to plan the backlog.
	Schedule *scheduler.Result
	Created  bool
}

type Builder struct {
	events   service.EventService
	planner  Planner
	morning  MorningDetector
	triggers []string
	hours    period.TimePeriod
	locale   string
	logger   *zap.Logger
}

type Option func(*Builder)

func WithMorningDetector(d MorningDetector) Option {
	return func(b *Builder) { b.morning = d }
}

func WithTriggers(triggers []string) Option {
	return func(b *Builder) { b.triggers = triggers }
}

// WithPlanningHours bounds the window handed to the planner for a trigger phrase.
func WithPlanningHours(hours period.TimePeriod) Option {
	return func(b *Builder) { b.hours = hours }
}

func WithLocale(locale string) Option {
	return func(b *Builder) { b.locale = locale }
}

// New returns a Builder. planner may be nil, in which case trigger phrases
// are treated as plain titles.
func New(events service.EventService, planner Planner, logger *zap.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{
		events:   events,
		planner:  planner,
		triggers: DefaultTriggers,
		hours:    period.DefaultTimePeriod(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.morning == nil {
		b.morning = Keywords{Locale: b.locale}
	}
	return b
}

// Build resolves the request into a single event and checks it against the
// calendar. A conflict is returned as *errs.ConflictError together with an
// Outcome holding the candidate, so callers may still persist it.
func (b *Builder) Build(ctx context.Context, req Request) (*Outcome, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errs.Missing("title")
	}
	if req.Start.IsZero() {
		return nil, errs.Missing("start date or time")
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	if req.Start.HasDate && b.isPlanningRequest(req) {
		res, err := b.plan(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Outcome{Schedule: res}, nil
	}

	start, end := b.Resolve(req)
	event := model.Event{
		Title:    strings.TrimSpace(req.Title),
		Start:    start,
		End:      end,
		Location: req.Location,
	}
	if err := event.Validate(); err != nil {
		return nil, errs.Invalid("event", "%v", err)
	}

	events, err := b.events.GetEvents(ctx, start, end, 0)
	if err != nil {
		return nil, errs.Backend("get events", err)
	}
	var conflicts []model.Event
	for _, e := range events {
		if !e.AllDay && e.Overlaps(start, end) {
			conflicts = append(conflicts, e)
		}
	}
	out := &Outcome{Event: &event, Conflicts: conflicts}
	if len(conflicts) > 0 {
		return out, &errs.ConflictError{Candidate: event, Conflicts: conflicts}
	}
	return out, nil
}

// Create builds the event and persists it. With force, the event is persisted
// even if it conflicts; otherwise the conflict error is returned.
func (b *Builder) Create(ctx context.Context, req Request, force bool) (*Outcome, error) {
	out, err := b.Build(ctx, req)
	if err != nil {
		if _, ok := errs.Conflicts(err); !ok || !force {
			return out, err
		}
	}
	if out.Event == nil {
		return out, nil
	}
	created, err := b.events.CreateEvent(ctx, *out.Event)
	if err != nil {
		return out, errs.Backend("create event", err)
	}
	out.Event = &created
	out.Created = true
	b.logger.Info("event created",
		zap.String("title", created.Title),
		zap.Time("start", created.Start),
		zap.Time("end", created.End),
		zap.Int("conflicts", len(out.Conflicts)),
	)
	return out, nil
}

// Resolve applies the date/time disambiguation rules and returns the final
// start and end. The order of the steps matters: each works on the value the
// previous one corrected.
func (b *Builder) Resolve(req Request) (time.Time, time.Time) {
	now := req.Now
	log := b.logger.With(zap.String("title", req.Title))

	start := req.Start.resolve(now)
	end := start
	if !req.End.IsZero() {
		end = req.End.resolve(now)
	}

	if shifted := shiftPast(start, now); !shifted.Equal(start) {
		log.Debug("start was in the past", zap.Time("from", start), zap.Time("to", shifted))
		start = shifted
	}

	if period.DateBefore(end, start) {
		end = period.WithDate(end, start)
	}

	if (!req.EndTimeExplicit || req.End.IsZero()) && period.SameDate(start, end) {
		end = start.Add(defaultDuration)
	}

	if !end.After(start) {
		endMorning := b.morning.IsMorning(req.EndTimeText)
		if b.morning.IsMorning(req.StartTimeText) || endMorning {
			start = shiftPast(start.AddDate(0, 0, -1), now)
		}
		end = forward(end, start, endMorning)
		log.Debug("inverted range corrected", zap.Time("start", start), zap.Time("end", end))
	}
	return start, end
}

func (b *Builder) isPlanningRequest(req Request) bool {
	if b.planner == nil {
		return false
	}
	title := match.Normalize(req.Title, b.locale)
	for _, trigger := range b.triggers {
		if t := match.Normalize(trigger, b.locale); t != "" && strings.Contains(title, t) {
			return true
		}
	}
	return false
}

func (b *Builder) plan(ctx context.Context, req Request) (*scheduler.Result, error) {
	loc := req.Now.Location()
	start, end := b.hours.On(req.Start.Value, loc)
	if start.Before(req.Now) {
		start = req.Now
	}
	if !start.Before(end) {
		return nil, errs.Invalid("date", "%s is already over", req.Start.Value.Format(time.DateOnly))
	}
	b.logger.Info("planning backlog", zap.Time("window_start", start), zap.Time("window_end", end))
	return b.planner.Schedule(ctx, start, end, loc.String())
}

// shiftPast moves a start more than a minute in the past to today, then to the
// next day on which its time of day has not passed yet.
func shiftPast(start, now time.Time) time.Time {
	limit := now.Add(-pastTolerance)
	if !start.Before(limit) {
		return start
	}
	if period.DateBefore(start, now) {
		start = period.WithDate(start, now.In(start.Location()))
	}
	for start.Before(limit) {
		start = start.AddDate(0, 0, 1)
	}
	return start
}

// forward moves end past start. An end that is not morning-flavored is first
// read as the afternoon hour, then whole days are added.
func forward(end, start time.Time, morning bool) time.Time {
	if !morning && end.Hour() < 12 {
		if pm := end.Add(12 * time.Hour); pm.After(start) && period.SameDate(pm, end) {
			return pm
		}
	}
	for !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}
