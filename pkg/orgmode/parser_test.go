package orgmode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

const sample = `#+TITLE: Backlog

* Projects
** TODO [#A] Write quarterly report :work:writing:
   DEADLINE: <2026-10-20 Tue 17:00>
   :PROPERTIES:
   :EFFORT:   1:30
   :ID:       0b7e6a2c-1111-4c1e-9d51-000000000001
   :END:
   Numbers from finance first.
** DOING Fix bike
   :PROPERTIES:
   :EFFORT: 45
   :END:
** SOMEDAY Learn piano
** DONE Book flights :travel:
   CLOSED: [2026-10-01 Thu 10:00]
* Notes
Just some text.
* TODO Pay rent
  DEADLINE: <2026-11-01 Sun>
`

func TestParse(t *testing.T) {
	tasks, err := Parse(strings.NewReader(sample), time.UTC)
	require.NoError(t, err)
	require.Len(t, tasks, 5)

	report := tasks[0]
	assert.Equal(t, "Write quarterly report", report.Title)
	assert.Equal(t, model.TODO, report.Status)
	assert.Equal(t, []string{"work", "writing"}, report.Tags)
	assert.Equal(t, 90*time.Minute, report.Duration)
	assert.Equal(t, "0b7e6a2c-1111-4c1e-9d51-000000000001", report.ID)
	assert.Equal(t, "Numbers from finance first.", report.Description)
	require.NotNil(t, report.Deadline)
	assert.Equal(t, time.Date(2026, 10, 20, 17, 0, 0, 0, time.UTC), *report.Deadline)

	assert.Equal(t, model.DOING, tasks[1].Status)
	assert.Equal(t, 45*time.Minute, tasks[1].Duration)

	assert.Equal(t, model.SOMEDAY, tasks[2].Status)
	assert.False(t, tasks[2].HasDuration())

	assert.Equal(t, model.DONE, tasks[3].Status)
	assert.Equal(t, []string{"travel"}, tasks[3].Tags)
	assert.Empty(t, tasks[3].Description)

	rent := tasks[4]
	assert.Equal(t, "Pay rent", rent.Title)
	require.NotNil(t, rent.Deadline)
	assert.Equal(t, time.Date(2026, 11, 1, 23, 59, 0, 0, time.UTC), *rent.Deadline)
}

func TestParseInvalidEffort(t *testing.T) {
	_, err := Parse(strings.NewReader("* TODO Thing\n:EFFORT: lots\n"), time.UTC)
	assert.Error(t, err)
}

func TestParseEffort(t *testing.T) {
	tests := map[string]time.Duration{
		"0:45":  45 * time.Minute,
		"2:00":  2 * time.Hour,
		"30":    30 * time.Minute,
		"1h15m": 75 * time.Minute,
	}
	for in, want := range tests {
		got, err := parseEffort(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseEffort("1:75")
	assert.Error(t, err)
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.org")
	b := filepath.Join(dir, "b.org")
	require.NoError(t, os.WriteFile(a, []byte("* TODO First\n"), 0600))
	require.NoError(t, os.WriteFile(b, []byte("* TODO Second\n"), 0600))

	tasks, err := ParseFiles([]string{a, b}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second"}, model.Titles(tasks))

	_, err = ParseFiles([]string{filepath.Join(dir, "missing.org")}, time.UTC)
	assert.Error(t, err)
}

func TestFilterTasks(t *testing.T) {
	tasks, err := Parse(strings.NewReader(sample), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, []string{"Write quarterly report"}, model.Titles(FilterTasks(tasks, "work")))
	assert.Len(t, FilterTasks(tasks, ""), 5)
	assert.Empty(t, FilterTasks(tasks, "nope"))
}
