// Package store is a local backend keeping events and tasks in memory,
// optionally persisted to a JSON file.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
)

type Store struct {
	Events []model.Event `json:"events"`
	Tasks  []storedTask  `json:"tasks"`
	Path   string        `json:"-"`
	now    func() time.Time
	mu     sync.RWMutex
	dirty  bool
}

type storedTask struct {
	model.Task
	Archived bool `json:"archived,omitempty"`
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{now: time.Now}
}

// Open loads the store at path, starting empty if the file does not exist.
func Open(path string) (*Store, error) {
	s := New()
	s.Path = path
	if _, err := os.Stat(path); err == nil {
		if err := s.Load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithClock replaces the clock used by ReadFollowingEvents.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Load() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewDecoder(f).Decode(s)
}

// Save writes the store back to Path if anything changed. A store without
// Path is never written.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || s.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func matches(query string, fields ...string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func (s *Store) ReadEvents(ctx context.Context, date time.Time) ([]model.Event, error) {
	start := period.StartOfDay(date)
	return s.GetEvents(ctx, start, start.AddDate(0, 0, 1), 0)
}

func (s *Store) ReadFollowingEvents(ctx context.Context, n int, maxDate time.Time) ([]model.Event, error) {
	return s.GetEvents(ctx, s.now(), maxDate, n)
}

func (s *Store) GetEvents(_ context.Context, start, end time.Time, maxResults int) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.Events {
		if !start.IsZero() && !e.End.After(start) {
			continue
		}
		if !end.IsZero() && !e.Start.Before(end) {
			continue
		}
		out = append(out, e)
	}
	model.SortByStart(out)
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

func (s *Store) FindEvent(ctx context.Context, query string) (*model.Event, error) {
	events, err := s.FindEvents(ctx, query)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

func (s *Store) FindEvents(_ context.Context, query string) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.Events {
		if matches(query, e.Title, e.Description, e.Location) {
			out = append(out, e)
		}
	}
	model.SortByStart(out)
	return out, nil
}

func (s *Store) FindAutoScheduled(_ context.Context, from time.Time) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.Events {
		if e.IsAutoScheduled() && e.End.After(from) {
			out = append(out, e)
		}
	}
	model.SortByStart(out)
	return out, nil
}

func (s *Store) CreateEvent(_ context.Context, event model.Event) (model.Event, error) {
	if err := event.Validate(); err != nil {
		return model.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = uuid.NewString()
	s.Events = append(s.Events, event)
	s.dirty = true
	return event, nil
}

func (s *Store) CreateEvents(ctx context.Context, events []model.Event) ([]model.Event, error) {
	created := make([]model.Event, 0, len(events))
	for _, e := range events {
		c, err := s.CreateEvent(ctx, e)
		if err != nil {
			return created, err
		}
		created = append(created, c)
	}
	return created, nil
}

func (s *Store) RemoveEvent(ctx context.Context, event model.Event) error {
	return s.RemoveEvents(ctx, []string{event.ID})
}

func (s *Store) RemoveEvents(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.Events)
	s.Events = slices.DeleteFunc(s.Events, func(e model.Event) bool {
		return slices.Contains(ids, e.ID)
	})
	if len(s.Events) != before {
		s.dirty = true
	}
	return nil
}

func (s *Store) RemoveEventsMatching(ctx context.Context, query string) error {
	events, err := s.FindEvents(ctx, query)
	if err != nil {
		return err
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return s.RemoveEvents(ctx, ids)
}

func (s *Store) GetTasks(_ context.Context, status model.Status) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Task
	for _, t := range s.Tasks {
		if !t.Archived && t.Status == status {
			out = append(out, t.Task)
		}
	}
	model.SortByPriority(out)
	return out, nil
}

func (s *Store) AddTask(_ context.Context, task model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = uuid.NewString()
	if task.Status == "" {
		task.Status = model.TODO
	}
	s.Tasks = append(s.Tasks, storedTask{Task: task})
	s.dirty = true
	return task, nil
}

func (s *Store) UpdateTask(_ context.Context, task model.Task) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(task.ID)
	if i < 0 {
		return model.Task{}, os.ErrNotExist
	}
	s.Tasks[i].Task = task
	s.dirty = true
	return task, nil
}

func (s *Store) ArchiveTask(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(task.ID)
	if i < 0 {
		return os.ErrNotExist
	}
	s.Tasks[i].Archived = true
	s.dirty = true
	return nil
}

// Archived returns the soft-deleted tasks.
func (s *Store) Archived() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Task
	for _, t := range s.Tasks {
		if t.Archived {
			out = append(out, t.Task)
		}
	}
	return out
}

func (s *Store) taskIndex(id string) int {
	return slices.IndexFunc(s.Tasks, func(t storedTask) bool { return t.ID == id })
}
