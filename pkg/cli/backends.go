package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harrisonrobin/zenkai/pkg/auth"
	"github.com/harrisonrobin/zenkai/pkg/builder"
	"github.com/harrisonrobin/zenkai/pkg/colors"
	"github.com/harrisonrobin/zenkai/pkg/config"
	"github.com/harrisonrobin/zenkai/pkg/google"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/scheduler"
	"github.com/harrisonrobin/zenkai/pkg/service"
	"github.com/harrisonrobin/zenkai/pkg/store"
	"github.com/harrisonrobin/zenkai/pkg/taskwarrior"
	"github.com/harrisonrobin/zenkai/pkg/workflow"
)

const colorsFile = "tag_colors.json"

func (a *app) localStore() (*store.Store, error) {
	if a.local != nil {
		return a.local, nil
	}
	s, err := store.Open(a.cfg.LocalStorePath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.local = s.WithClock(a.now)
	return a.local, nil
}

func (a *app) authFlow() *auth.Flow {
	return auth.NewFlow(filepath.Dir(a.cfg.Path), a.logger)
}

func (a *app) eventService(ctx context.Context) (service.EventService, error) {
	if a.events != nil {
		return a.events, nil
	}
	switch a.cfg.EventBackend {
	case config.BackendLocal:
		s, err := a.localStore()
		if err != nil {
			return nil, err
		}
		a.events = s
	default:
		client, err := google.NewClient(ctx, a.authFlow(), a.cfg.Calendar, google.Options{
			BatchSize:         a.cfg.BatchSize,
			RequestsPerSecond: a.cfg.RequestsPerSecond,
			Location:          a.loc,
			Logger:            a.logger.Named("google"),
		})
		if err != nil {
			return nil, fmt.Errorf("connect to Google Calendar: %w", err)
		}
		a.events = client
	}
	return a.events, nil
}

func (a *app) taskService() (service.TaskService, error) {
	if a.tasks != nil {
		return a.tasks, nil
	}
	switch a.cfg.TaskBackend {
	case config.BackendLocal:
		s, err := a.localStore()
		if err != nil {
			return nil, err
		}
		a.tasks = s
	default:
		a.tasks = taskwarrior.NewClient(
			taskwarrior.WithLogger(a.logger.Named("taskwarrior")),
			taskwarrior.WithClock(a.now),
		)
	}
	return a.tasks, nil
}

func (a *app) scheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	events, err := a.eventService(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := a.taskService()
	if err != nil {
		return nil, err
	}
	palette, err := a.palette()
	if err != nil {
		return nil, err
	}
	return scheduler.New(events, tasks, a.logger.Named("scheduler")).
		WithClock(a.now).
		WithDecorator(func(task model.Task, e *model.Event) {
			e.Color = palette.ColorFor(task.Tags)
		}), nil
}

func (a *app) palette() (*colors.Palette, error) {
	if a.colors != nil {
		return a.colors, nil
	}
	p, err := colors.Open(filepath.Join(filepath.Dir(a.cfg.Path), colorsFile))
	if err != nil {
		return nil, fmt.Errorf("open tag colors: %w", err)
	}
	a.colors = p.WithClock(a.now)
	return a.colors, nil
}

func (a *app) builder(ctx context.Context) (*builder.Builder, error) {
	events, err := a.eventService(ctx)
	if err != nil {
		return nil, err
	}
	planner, err := a.scheduler(ctx)
	if err != nil {
		return nil, err
	}
	hours, err := a.cfg.Hours()
	if err != nil {
		return nil, err
	}
	opts := []builder.Option{
		builder.WithLocale(a.cfg.Locale),
		builder.WithPlanningHours(hours),
	}
	if len(a.cfg.RecurringTriggers) > 0 {
		opts = append(opts, builder.WithTriggers(a.cfg.RecurringTriggers))
	}
	return builder.New(events, planner, a.logger.Named("builder"), opts...), nil
}

func (a *app) workflow() (*workflow.Manager, error) {
	tasks, err := a.taskService()
	if err != nil {
		return nil, err
	}
	return workflow.New(tasks, a.cfg.Locale, a.logger.Named("workflow")), nil
}
