package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/zenkai/pkg/colors"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/store"
)

// Wednesday morning, before working hours.
var testNow = time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

type harness struct {
	t   *testing.T
	dir string
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := "timezone: UTC\nevent_backend: local\ntask_backend: local\nworking_hours: \"09:00-18:00\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0600))
	return &harness{t: t, dir: dir, now: testNow}
}

func (h *harness) run(args ...string) (string, error) {
	return h.runWithInput("", args...)
}

func (h *harness) runWithInput(input string, args ...string) (string, error) {
	h.t.Helper()
	now := h.now
	cmd := newRootCmd(&app{now: func() time.Time { return now }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(append([]string{"--config", filepath.Join(h.dir, "config.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) store() *store.Store {
	h.t.Helper()
	s, err := store.Open(filepath.Join(h.dir, "store.json"))
	require.NoError(h.t, err)
	return s
}

func TestTaskAddAndList(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("task", "add", "Write", "report", "--duration", "1h", "--deadline", "2026-10-15")
	assert.Contains(t, out, `"Write report" created`)

	out = h.mustRun("task", "list")
	assert.Contains(t, out, "[TODO] Write report (1h0m0s) due Thu 15 Oct 23:59")
}

func TestTaskAddTwiceMoves(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Write report")

	out := h.mustRun("task", "add", "write report", "--status", "doing")
	assert.Contains(t, out, `"Write report" moved from TODO to DOING`)
	assert.Len(t, h.store().Tasks, 1)
}

func TestTaskMoveAndUndo(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Write report")

	out := h.mustRun("task", "move", "write reprt", "doing")
	assert.Contains(t, out, `"Write report" moved from TODO to DOING`)

	out = h.mustRun("task", "undo")
	assert.Contains(t, out, `"Write report" moved from DOING to TODO`)

	_, err := h.run("task", "undo")
	assert.Error(t, err)
}

func TestTaskUndoCreate(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Write report")
	h.mustRun("task", "undo")

	out := h.mustRun("task", "list")
	assert.NotContains(t, out, "Write report")
	assert.Len(t, h.store().Archived(), 1)
}

func TestTaskArchive(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Call plumber")

	out := h.mustRun("task", "archive", "plumber")
	assert.Contains(t, out, `"Call plumber" archived`)
	assert.Len(t, h.store().Archived(), 1)
}

func TestTaskMoveUnknownStatus(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Write report")
	_, err := h.run("task", "move", "report", "blocked")
	assert.Error(t, err)
}

func TestScheduleIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Call plumber", "--duration", "30m")
	h.mustRun("task", "add", "Write report", "--duration", "1h", "--deadline", "2026-10-15")

	out := h.mustRun("schedule", "--days", "1")
	assert.Contains(t, out, "Scheduled 2 task(s):")
	assert.Contains(t, out, "Wed 14 Oct 09:00-10:00  Write report")
	assert.Contains(t, out, "Wed 14 Oct 10:00-10:30  Call plumber")

	first := h.store().Events
	require.Len(t, first, 2)
	assert.Equal(t, colors.Untagged, first[0].Color)

	h.mustRun("schedule", "--days", "1")
	second := h.store().Events
	require.Len(t, second, 2)
	assert.ElementsMatch(t, ids(first), ids(second))
}

func TestScheduleAroundEvents(t *testing.T) {
	h := newHarness(t)
	h.mustRun("event", "add", "Standup", "--date", "today", "--start", "9am", "--end", "9:30am")
	h.mustRun("task", "add", "Write report", "--duration", "1h")

	out := h.mustRun("schedule", "--days", "1")
	assert.Contains(t, out, "Wed 14 Oct 09:30-10:30  Write report")
}

func TestEventAddAndConflict(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("event", "add", "Dentist", "--date", "today", "--start", "11:00")
	assert.Contains(t, out, "Wed 14 Oct 11:00-12:00  Dentist")

	out, err := h.run("event", "add", "Haircut", "--date", "today", "--start", "11:30")
	require.Error(t, err)
	assert.Contains(t, out, "Conflicts with:")
	assert.Len(t, h.store().Events, 1)

	out = h.mustRun("event", "add", "Haircut", "--date", "today", "--start", "11:30", "--force")
	assert.Contains(t, out, "Overlaps 1 event(s).")
	assert.Len(t, h.store().Events, 2)
}

func TestEventAddPlansBacklog(t *testing.T) {
	h := newHarness(t)
	h.mustRun("task", "add", "Write report", "--duration", "1h")

	out := h.mustRun("event", "add", "plan", "my", "day", "--date", "today")
	assert.Contains(t, out, "Write report")
	events := h.store().Events
	require.Len(t, events, 1)
	assert.True(t, events[0].IsAutoScheduled())
}

func TestEventListAndClear(t *testing.T) {
	h := newHarness(t)
	h.mustRun("event", "add", "Dentist", "--date", "today", "--start", "11:00")
	h.mustRun("task", "add", "Write report", "--duration", "1h")
	h.mustRun("schedule", "--days", "1")

	out := h.mustRun("event", "list", "--date", "today")
	assert.Contains(t, out, "Dentist")
	assert.Contains(t, out, "Write report")

	h.mustRun("event", "clear-scheduled")
	events := h.store().Events
	require.Len(t, events, 1)
	assert.Equal(t, "Dentist", events[0].Title)
}

func TestImportOrg(t *testing.T) {
	h := newHarness(t)
	org := filepath.Join(h.dir, "todo.org")
	require.NoError(t, os.WriteFile(org, []byte("* TODO Write report :work:\n:EFFORT: 1:00\n* SOMEDAY Learn piano\n"), 0600))

	out := h.mustRun("import", "org", org)
	assert.Contains(t, out, `"Write report" created`)
	assert.Contains(t, out, `"Learn piano" created`)

	out = h.mustRun("import", "org", org, "--tag", "work")
	assert.Contains(t, out, `"Write report" already in TODO`)
	assert.Len(t, h.store().Tasks, 2)
}

func TestConfigSetCalendar(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("config", "set-calendar", "Deep Work")
	assert.Contains(t, out, "Default calendar set to: Deep Work")

	out = h.mustRun("config", "show")
	assert.Contains(t, out, "calendar: Deep Work")
}

func TestHookEchoesTask(t *testing.T) {
	h := newHarness(t)
	input := `{"uuid":"1","description":"Old","status":"pending"}
{"uuid":"1","description":"New","status":"pending","urgency":3.2}
`
	out, err := h.runWithInput(input, "hook", "--no-schedule")
	require.NoError(t, err)
	assert.Equal(t, `{"uuid":"1","description":"New","status":"pending","urgency":3.2}`+"\n", out)
}

func TestNoConfigFlagFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cmd := newRootCmd(&app{now: func() time.Time { return testNow }})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "show"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "calendar: Tasks")
}

func ids(events []model.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
