// Package workflow moves backlog tasks between statuses and undoes those moves.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/match"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/service"
)

// ErrNoMatch is returned when no backlog task matches a query.
var ErrNoMatch = errors.New("no matching task")

type Kind int

const (
	Unchanged Kind = iota
	Created
	Moved
	Archived
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Moved:
		return "moved"
	case Archived:
		return "archived"
	}
	return "unchanged"
}

// Change records what an operation did, so it can be rolled back.
type Change struct {
	Kind Kind
	Task model.Task
	// Previous is the status the task had before a move.
	Previous model.Status
}

type Manager struct {
	tasks  service.TaskService
	locale string
	logger *zap.Logger
}

func New(tasks service.TaskService, locale string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{tasks: tasks, locale: locale, logger: logger}
}

// Backlog fetches every task, grouped by status in board order.
func (m *Manager) Backlog(ctx context.Context) ([]model.Task, error) {
	var all []model.Task
	for _, status := range model.AllStatuses {
		tasks, err := m.tasks.GetTasks(ctx, status)
		if err != nil {
			return nil, errs.Backend("get tasks", err)
		}
		all = append(all, tasks...)
	}
	return all, nil
}

// Find returns the backlog task best matching query.
func (m *Manager) Find(ctx context.Context, query string) (model.Task, error) {
	if strings.TrimSpace(query) == "" {
		return model.Task{}, errs.Missing("task title")
	}
	backlog, err := m.Backlog(ctx)
	if err != nil {
		return model.Task{}, err
	}
	task, ok := match.BestMatch(backlog, query, m.locale)
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %q", ErrNoMatch, query)
	}
	return task, nil
}

// SameTaskSimilarity is the word similarity at which Add treats a new title as
// an existing task.
const SameTaskSimilarity = 0.75

// Add creates the task, or moves an existing task with a matching title to
// the requested status so that repeating the same request does not duplicate it.
func (m *Manager) Add(ctx context.Context, task model.Task) (Change, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return Change{}, errs.Missing("task title")
	}
	if task.Status == "" {
		task.Status = model.TODO
	}

	existing, err := m.Find(ctx, task.Title)
	switch {
	case err == nil && match.Similarity(existing.Title, task.Title, m.locale) >= SameTaskSimilarity:
		return m.move(ctx, existing, task.Status)
	case err != nil && !errors.Is(err, ErrNoMatch):
		return Change{}, err
	}

	created, err := m.tasks.AddTask(ctx, task)
	if err != nil {
		return Change{}, errs.Backend("add task", err)
	}
	m.logger.Info("task created", zap.String("title", created.Title), zap.Stringer("status", created.Status))
	return Change{Kind: Created, Task: created}, nil
}

// Move sets the status of the task best matching query. Only the status changes.
func (m *Manager) Move(ctx context.Context, query string, to model.Status) (Change, error) {
	task, err := m.Find(ctx, query)
	if err != nil {
		return Change{}, err
	}
	return m.move(ctx, task, to)
}

// Archive soft-deletes the task best matching query.
func (m *Manager) Archive(ctx context.Context, query string) (Change, error) {
	task, err := m.Find(ctx, query)
	if err != nil {
		return Change{}, err
	}
	if err := m.tasks.ArchiveTask(ctx, task); err != nil {
		return Change{}, errs.Backend("archive task", err)
	}
	m.logger.Info("task archived", zap.String("title", task.Title))
	return Change{Kind: Archived, Task: task, Previous: task.Status}, nil
}

// Rollback undoes c: a move is reverted to the previous status and a created
// task is archived. Archived tasks cannot be restored.
func (m *Manager) Rollback(ctx context.Context, c Change) (Change, error) {
	switch c.Kind {
	case Unchanged:
		return c, nil
	case Created:
		if err := m.tasks.ArchiveTask(ctx, c.Task); err != nil {
			return Change{}, errs.Backend("archive task", err)
		}
		return Change{Kind: Archived, Task: c.Task, Previous: c.Task.Status}, nil
	case Moved:
		return m.move(ctx, c.Task, c.Previous)
	}
	return Change{}, errs.Invalid("change", "cannot roll back %s task %q", c.Kind, c.Task.Title)
}

func (m *Manager) move(ctx context.Context, task model.Task, to model.Status) (Change, error) {
	if task.Status == to {
		return Change{Kind: Unchanged, Task: task, Previous: to}, nil
	}
	from := task.Status
	task.Status = to
	updated, err := m.tasks.UpdateTask(ctx, task)
	if err != nil {
		return Change{}, errs.Backend("update task", err)
	}
	m.logger.Info("task moved",
		zap.String("title", updated.Title),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return Change{Kind: Moved, Task: updated, Previous: from}, nil
}
