// Package service declares the calendar and task backends the engine consumes.
//
// Implementations are not required to be read-your-writes consistent: callers
// must rely on the values returned by CreateEvent and CreateEvents instead of
// re-reading right after a write.
package service

import (
	"context"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

// EventService reads and writes calendar events.
type EventService interface {
	// ReadEvents returns the events on date's calendar day.
	ReadEvents(ctx context.Context, date time.Time) ([]model.Event, error)
	// ReadFollowingEvents returns up to n events starting from now, optionally
	// bounded by maxDate (zero means unbounded).
	ReadFollowingEvents(ctx context.Context, n int, maxDate time.Time) ([]model.Event, error)
	// GetEvents returns events overlapping [start, end). Zero bounds and a
	// zero maxResults mean unbounded.
	GetEvents(ctx context.Context, start, end time.Time, maxResults int) ([]model.Event, error)
	// FindEvent returns the first event matching a free-text query, or nil.
	FindEvent(ctx context.Context, query string) (*model.Event, error)
	FindEvents(ctx context.Context, query string) ([]model.Event, error)
	// FindAutoScheduled returns the auto-scheduled events ending after from.
	FindAutoScheduled(ctx context.Context, from time.Time) ([]model.Event, error)
	CreateEvent(ctx context.Context, event model.Event) (model.Event, error)
	// CreateEvents returns the created events in input order.
	CreateEvents(ctx context.Context, events []model.Event) ([]model.Event, error)
	RemoveEvent(ctx context.Context, event model.Event) error
	RemoveEvents(ctx context.Context, ids []string) error
	// RemoveEventsMatching removes every event matching a free-text query.
	RemoveEventsMatching(ctx context.Context, query string) error
}

// TaskService reads and writes backlog tasks.
type TaskService interface {
	// GetTasks returns the tasks in status, sorted by deadline priority.
	GetTasks(ctx context.Context, status model.Status) ([]model.Task, error)
	AddTask(ctx context.Context, task model.Task) (model.Task, error)
	// UpdateTask replaces the stored task with the same ID.
	UpdateTask(ctx context.Context, task model.Task) (model.Task, error)
	// ArchiveTask soft-deletes the task with the same ID.
	ArchiveTask(ctx context.Context, task model.Task) error
}
