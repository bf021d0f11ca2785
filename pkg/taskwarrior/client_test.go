package taskwarrior

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/model"
)

const exportFixture = `[
	{
		"id": 1,
		"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
		"description": "Buy milk",
		"status": "pending",
		"due": "20261020T120000Z",
		"project": "Groceries",
		"tags": ["buy", "food"],
		"est": "PT30M",
		"annotations": [
			{"entry": "20261001T120500Z", "description": "Don't forget almond milk"}
		]
	},
	{
		"id": 2,
		"uuid": "a1111111-1111-1111-1111-111111111111",
		"description": "Write report",
		"status": "pending",
		"start": "20261014T080000Z",
		"est": "PT2H"
	},
	{
		"id": 3,
		"uuid": "b2222222-2222-2222-2222-222222222222",
		"description": "Learn piano",
		"status": "pending",
		"tags": ["someday"]
	},
	{
		"id": 4,
		"uuid": "c3333333-3333-3333-3333-333333333333",
		"description": "Call plumber",
		"status": "pending",
		"due": "20261016T090000Z",
		"est": "PT1H"
	}
]`

type call struct {
	args  []string
	stdin []byte
}

type fakeTask struct {
	calls  []call
	output map[string]string
	err    error
}

func (f *fakeTask) Run(_ context.Context, stdin []byte, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{args: args, stdin: stdin})
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.output[args[0]]), nil
}

func (f *fakeTask) imported(t *testing.T) []Task {
	t.Helper()
	last := f.calls[len(f.calls)-1]
	require.Equal(t, "import", last.args[0])
	var tasks []Task
	require.NoError(t, json.Unmarshal(last.stdin, &tasks))
	return tasks
}

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newFake(output map[string]string) (*fakeTask, *Client) {
	fake := &fakeTask{output: output}
	return fake, NewClient(WithRunner(fake), WithClock(func() time.Time { return now }))
}

func TestParseTasks(t *testing.T) {
	tasks, err := ParseTasks(strings.NewReader(exportFixture))
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	task := tasks[0]
	assert.Equal(t, "f45a05b3-c12e-42e5-9c9c-333333333333", task.UUID)
	assert.Equal(t, "Buy milk", task.Description)
	assert.Equal(t, "Groceries", task.Project)
	assert.Len(t, task.Tags, 2)
	assert.Len(t, task.Annotations, 1)
	assert.True(t, task.Due.Time.Equal(time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)))
}

func TestParseTasksStream(t *testing.T) {
	input := `{"uuid": "1", "description": "Task 1", "status": "pending"}
{"uuid": "2", "description": "Task 2", "status": "completed"}`

	tasks, err := ParseTasks(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "1", tasks[0].UUID)
	assert.Equal(t, COMPLETED, tasks[1].Status)
}

func TestParseTasksEmpty(t *testing.T) {
	tasks, err := ParseTasks(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestModelStatus(t *testing.T) {
	started := NewTime(now)
	tests := []struct {
		name string
		task Task
		want model.Status
	}{
		{"pending", Task{Status: PENDING}, model.TODO},
		{"started", Task{Status: PENDING, Start: started}, model.DOING},
		{"completed", Task{Status: COMPLETED, Start: started}, model.DONE},
		{"waiting", Task{Status: WAITING}, model.SOMEDAY},
		{"someday tag", Task{Status: PENDING, Tags: []string{"home", SomedayTag}}, model.SOMEDAY},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.ModelStatus())
		})
	}
}

func TestGetTasksTodo(t *testing.T) {
	fake, client := newFake(map[string]string{"status:pending": exportFixture})

	tasks, err := client.GetTasks(context.Background(), model.TODO)
	require.NoError(t, err)
	assert.Equal(t, []string{"Call plumber", "Buy milk"}, model.Titles(tasks))
	assert.Equal(t, 30*time.Minute, tasks[1].Duration)
	assert.Equal(t, "Don't forget almond milk", tasks[1].Description)
	assert.Equal(t, []string{"status:pending", "export", "rc.hooks=0"}, fake.calls[0].args)
}

func TestGetTasksDoingAndSomeday(t *testing.T) {
	_, client := newFake(map[string]string{"status:pending": exportFixture, "(": exportFixture})

	doing, err := client.GetTasks(context.Background(), model.DOING)
	require.NoError(t, err)
	assert.Equal(t, []string{"Write report"}, model.Titles(doing))

	someday, err := client.GetTasks(context.Background(), model.SOMEDAY)
	require.NoError(t, err)
	require.Len(t, someday, 1)
	assert.Equal(t, "Learn piano", someday[0].Title)
	assert.Empty(t, someday[0].Tags)
}

func TestGetTasksBackendError(t *testing.T) {
	fake, client := newFake(nil)
	fake.err = errors.New("task: command not found")

	_, err := client.GetTasks(context.Background(), model.TODO)
	assert.ErrorIs(t, err, errs.ErrBackend)
}

func TestAddTask(t *testing.T) {
	fake, client := newFake(nil)
	deadline := time.Date(2026, 10, 20, 17, 0, 0, 0, time.UTC)

	task, err := client.AddTask(context.Background(), model.Task{
		Title:    "Plan trip",
		Duration: 90 * time.Minute,
		Deadline: &deadline,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, model.TODO, task.Status)

	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"import", "-", "rc.hooks=0"}, fake.calls[0].args)
	imported := fake.imported(t)
	require.Len(t, imported, 1)
	assert.Equal(t, task.ID, imported[0].UUID)
	assert.Equal(t, PENDING, imported[0].Status)
	assert.Equal(t, "PT1H30M", imported[0].Est)
	assert.True(t, imported[0].Due.Time.Equal(deadline))
	assert.Nil(t, imported[0].Start)
}

func TestAddTaskNeedsTitle(t *testing.T) {
	_, client := newFake(nil)
	_, err := client.AddTask(context.Background(), model.Task{})
	assert.ErrorIs(t, err, errs.ErrMissingArgument)
}

func TestUpdateTaskTransitions(t *testing.T) {
	single := `[{"uuid": "f45a05b3", "description": "Buy milk", "status": "pending", "project": "Groceries", "tags": ["buy"]}]`
	tests := []struct {
		status model.Status
		check  func(t *testing.T, got Task)
	}{
		{model.DOING, func(t *testing.T, got Task) {
			assert.Equal(t, PENDING, got.Status)
			require.NotNil(t, got.Start)
			assert.True(t, got.Start.Time.Equal(now))
		}},
		{model.DONE, func(t *testing.T, got Task) {
			assert.Equal(t, COMPLETED, got.Status)
			require.NotNil(t, got.End)
		}},
		{model.SOMEDAY, func(t *testing.T, got Task) {
			assert.Equal(t, PENDING, got.Status)
			assert.Contains(t, got.Tags, SomedayTag)
		}},
		{model.TODO, func(t *testing.T, got Task) {
			assert.Equal(t, PENDING, got.Status)
			assert.Nil(t, got.Start)
			assert.NotContains(t, got.Tags, SomedayTag)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			fake, client := newFake(map[string]string{"uuid:f45a05b3": single})

			updated, err := client.UpdateTask(context.Background(), model.Task{
				ID:     "f45a05b3",
				Title:  "Buy milk",
				Status: tt.status,
				Tags:   []string{"buy"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.status, updated.Status)

			got := fake.imported(t)
			require.Len(t, got, 1)
			assert.Equal(t, "Groceries", got[0].Project)
			tt.check(t, got[0])
		})
	}
}

func TestUpdateTaskUnknown(t *testing.T) {
	_, client := newFake(map[string]string{"uuid:nope": "[]"})
	_, err := client.UpdateTask(context.Background(), model.Task{ID: "nope", Title: "x"})
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestArchiveTask(t *testing.T) {
	single := `[{"uuid": "f45a05b3", "description": "Buy milk", "status": "pending"}]`
	fake, client := newFake(map[string]string{"uuid:f45a05b3": single})

	require.NoError(t, client.ArchiveTask(context.Background(), model.Task{ID: "f45a05b3"}))
	got := fake.imported(t)
	assert.Equal(t, DELETED, got[0].Status)
	assert.NotNil(t, got[0].End)
}
