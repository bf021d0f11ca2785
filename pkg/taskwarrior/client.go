// Package taskwarrior implements the task backend on top of the `task` CLI.
//
// Reads go through `task export` and every write through `task import`, which
// creates or replaces tasks by UUID.
package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/model"
)

// Runner executes the task binary with args, feeding stdin when non-nil.
type Runner interface {
	Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, stdin []byte, args ...string) ([]byte, error)

func (f RunnerFunc) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	return f(ctx, stdin, args...)
}

type execRunner struct {
	bin string
}

func (r execRunner) Run(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.bin, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

// Client implements service.TaskService.
type Client struct {
	run    Runner
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Client)

func WithRunner(r Runner) Option {
	return func(c *Client) { c.run = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		run:    execRunner{bin: "task"},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusFilter narrows the export; the exact state is decided by ModelStatus.
var statusFilter = map[model.Status][]string{
	model.TODO:    {"status:pending"},
	model.DOING:   {"status:pending", "+ACTIVE"},
	model.SOMEDAY: {"(", "status:pending", "or", "status:waiting", ")"},
	model.DONE:    {"status:completed"},
}

func (c *Client) GetTasks(ctx context.Context, status model.Status) ([]model.Task, error) {
	filter, ok := statusFilter[status]
	if !ok {
		return nil, errs.Invalid("status", "unknown task status %q", status)
	}
	raw, err := c.export(ctx, filter...)
	if err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range raw {
		if t.ModelStatus() != status {
			continue
		}
		task, err := t.ToModel()
		if err != nil {
			c.logger.Warn("skipping task with unreadable fields", zap.String("uuid", t.UUID), zap.Error(err))
			continue
		}
		out = append(out, task)
	}
	model.SortByPriority(out)
	return out, nil
}

func (c *Client) AddTask(ctx context.Context, task model.Task) (model.Task, error) {
	if task.Title == "" {
		return model.Task{}, errs.Missing("title")
	}
	if task.Status == "" {
		task.Status = model.TODO
	}
	task.ID = uuid.NewString()
	now := c.now()
	t := Task{Entry: NewTime(now)}
	t.apply(task, now)
	if err := c.importTasks(ctx, t); err != nil {
		return model.Task{}, err
	}
	c.logger.Debug("task added", zap.String("uuid", task.ID), zap.String("title", task.Title))
	return task, nil
}

func (c *Client) UpdateTask(ctx context.Context, task model.Task) (model.Task, error) {
	t, err := c.get(ctx, task.ID)
	if err != nil {
		return model.Task{}, err
	}
	t.apply(task, c.now())
	if err := c.importTasks(ctx, t); err != nil {
		return model.Task{}, err
	}
	return t.ToModel()
}

func (c *Client) ArchiveTask(ctx context.Context, task model.Task) error {
	t, err := c.get(ctx, task.ID)
	if err != nil {
		return err
	}
	t.Status = DELETED
	if !t.End.set() {
		t.End = NewTime(c.now())
	}
	return c.importTasks(ctx, t)
}

func (c *Client) get(ctx context.Context, id string) (Task, error) {
	if id == "" {
		return Task{}, errs.Missing("task id")
	}
	tasks, err := c.export(ctx, "uuid:"+id)
	if err != nil {
		return Task{}, err
	}
	if len(tasks) == 0 {
		return Task{}, errs.Invalid("task id", "no task with uuid %s", id)
	}
	return tasks[0], nil
}

func (c *Client) export(ctx context.Context, filter ...string) ([]Task, error) {
	args := append(append([]string{}, filter...), "export", "rc.hooks=0")
	output, err := c.run.Run(ctx, nil, args...)
	if err != nil {
		return nil, errs.Backend("taskwarrior export", err)
	}
	tasks, err := ParseTasks(bytes.NewReader(output))
	if err != nil {
		return nil, errs.Backend("taskwarrior export", err)
	}
	return tasks, nil
}

func (c *Client) importTasks(ctx context.Context, tasks ...Task) error {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}
	if _, err := c.run.Run(ctx, payload, "import", "-", "rc.hooks=0"); err != nil {
		return errs.Backend("taskwarrior import", err)
	}
	return nil
}

// ParseTasks decodes either a JSON array, as printed by `task export`, or a
// stream of JSON objects, as fed to hooks.
func ParseTasks(r io.Reader) ([]Task, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var tasks []Task
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
		}
		return tasks, nil
	}

	var tasks []Task
	decoder := json.NewDecoder(bytes.NewReader(data))
	for {
		var task Task
		if err := decoder.Decode(&task); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to decode task json: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
