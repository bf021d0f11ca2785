package taskwarrior

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"

	// SomedayTag marks pending tasks parked in the SOMEDAY column.
	SomedayTag = "someday"
)

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

func NewTime(t time.Time) *CustomTime {
	return &CustomTime{Time: t.UTC()}
}

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.UTC().Format(taskwarriorTimeLayout) + `"`), nil
}

func (ct *CustomTime) set() bool {
	return ct != nil && !ct.IsZero()
}

type Annotation struct {
	Description string      `json:"description"`
	Entry       *CustomTime `json:"entry,omitempty"`
}

// Task is a Taskwarrior task as read by `task export`. The duration estimate
// lives in the `est` UDA.
type Task struct {
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Status      string       `json:"status"`
	Entry       *CustomTime  `json:"entry,omitempty"`
	Due         *CustomTime  `json:"due,omitempty"`
	Start       *CustomTime  `json:"start,omitempty"`
	End         *CustomTime  `json:"end,omitempty"`
	Wait        *CustomTime  `json:"wait,omitempty"`
	Project     string       `json:"project,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Est         string       `json:"est,omitempty"`
}

// ModelStatus maps the Taskwarrior state onto the workflow states.
func (t Task) ModelStatus() model.Status {
	switch {
	case t.Status == COMPLETED:
		return model.DONE
	case t.Status == WAITING || slices.Contains(t.Tags, SomedayTag):
		return model.SOMEDAY
	case t.Start.set():
		return model.DOING
	}
	return model.TODO
}

// ToModel converts the task. Annotations become the description lines.
func (t Task) ToModel() (model.Task, error) {
	est, err := ParseDuration(t.Est)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s: %w", t.UUID, err)
	}
	task := model.Task{
		ID:          t.UUID,
		Title:       t.Description,
		Description: t.annotationText(),
		Status:      t.ModelStatus(),
		Duration:    est,
	}
	if t.Due.set() {
		due := t.Due.Time
		task.Deadline = &due
	}
	for _, tag := range t.Tags {
		if tag != SomedayTag {
			task.Tags = append(task.Tags, tag)
		}
	}
	return task, nil
}

func (t Task) annotationText() string {
	lines := make([]string, 0, len(t.Annotations))
	for _, a := range t.Annotations {
		lines = append(lines, a.Description)
	}
	return strings.Join(lines, "\n")
}

// apply writes task onto t, keeping Taskwarrior-only fields such as the project.
func (t *Task) apply(task model.Task, now time.Time) {
	t.UUID = task.ID
	t.Description = task.Title
	t.Est = FormatDuration(task.Duration)
	t.Due = nil
	if task.HasDeadline() {
		t.Due = NewTime(*task.Deadline)
	}
	if task.Description != t.annotationText() {
		t.Annotations = nil
		if task.Description != "" {
			t.Annotations = []Annotation{{Description: task.Description, Entry: NewTime(now)}}
		}
	}

	t.Tags = slices.Clone(task.Tags)
	t.Wait = nil
	switch task.Status {
	case model.DONE:
		t.Status = COMPLETED
		if !t.End.set() {
			t.End = NewTime(now)
		}
	case model.SOMEDAY:
		t.Status = PENDING
		t.Start, t.End = nil, nil
		t.Tags = append(t.Tags, SomedayTag)
	case model.DOING:
		t.Status = PENDING
		t.End = nil
		if !t.Start.set() {
			t.Start = NewTime(now)
		}
	default:
		t.Status = PENDING
		t.Start, t.End = nil, nil
	}
}

var durationPart = regexp.MustCompile(`(\d+)([DHMS])`)

// ParseDuration parses the ISO 8601 durations Taskwarrior exports (PT1H30M,
// P1DT2H). Go duration strings such as 1h30m are accepted too.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if s[0] != 'P' {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return d, nil
	}

	date, clock, _ := strings.Cut(s[1:], "T")
	var total time.Duration
	for _, part := range []struct {
		text   string
		inTime bool
	}{{date, false}, {clock, true}} {
		for _, match := range durationPart.FindAllStringSubmatch(part.text, -1) {
			value, _ := strconv.Atoi(match[1])
			switch {
			case match[2] == "D" && !part.inTime:
				total += time.Duration(value) * 24 * time.Hour
			case match[2] == "H" && part.inTime:
				total += time.Duration(value) * time.Hour
			case match[2] == "M" && part.inTime:
				total += time.Duration(value) * time.Minute
			case match[2] == "S" && part.inTime:
				total += time.Duration(value) * time.Second
			}
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}

// FormatDuration renders d as an ISO 8601 time duration. Anything below a
// second renders empty.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return ""
	}
	var b strings.Builder
	b.WriteString("PT")
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&b, "%dH", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&b, "%dM", m)
		d -= m * time.Minute
	}
	if s := d / time.Second; s > 0 {
		fmt.Fprintf(&b, "%dS", s)
	}
	return b.String()
}
