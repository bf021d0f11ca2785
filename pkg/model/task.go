package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the workflow state of a task. Any state may move to any other.
type Status string

const (
	SOMEDAY Status = "someday"
	TODO    Status = "todo"
	DOING   Status = "doing"
	DONE    Status = "done"
)

// AllStatuses lists the workflow states in board order.
var AllStatuses = []Status{SOMEDAY, TODO, DOING, DONE}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(AllStatuses, status) {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return status, nil
}

func (s Status) String() string {
	return strings.ToUpper(string(s))
}

// Task represents a backlog item from any task source.
type Task struct {
	// ID is assigned by the task backend; empty until persisted.
	ID          string
	Title       string
	Description string
	Status      Status
	// Duration of zero means untimed.
	Duration time.Duration
	Deadline *time.Time
	Tags     []string
}

func (t Task) HasDuration() bool {
	return t.Duration > 0
}

func (t Task) HasDeadline() bool {
	return t.Deadline != nil && !t.Deadline.IsZero()
}

// ToEvent converts the task to an auto-scheduled event starting at start.
// The title is preserved and the description carries AutoScheduledMarker.
func (t Task) ToEvent(start time.Time) Event {
	desc := t.Description
	if desc != "" {
		desc += "\n\n"
	}
	desc += AutoScheduledMarker
	return Event{
		Title:         t.Title,
		Start:         start,
		End:           start.Add(t.Duration),
		Description:   desc,
		AutoScheduled: true,
	}
}

// ByPriority orders deadline-bearing tasks before deadline-less ones, earlier
// deadlines first. Tasks that tie compare equal.
func ByPriority(a, b Task) int {
	switch {
	case a.HasDeadline() && b.HasDeadline():
		return a.Deadline.Compare(*b.Deadline)
	case a.HasDeadline():
		return -1
	case b.HasDeadline():
		return 1
	}
	return 0
}

// SortByPriority sorts tasks by ByPriority. The sort is stable, so tasks that
// tie keep the order the backend returned them in.
func SortByPriority(tasks []Task) {
	slices.SortStableFunc(tasks, ByPriority)
}

// Titles returns the task titles in order.
func Titles(tasks []Task) []string {
	titles := make([]string, len(tasks))
	for i, t := range tasks {
		titles[i] = t.Title
	}
	return titles
}

