package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/taskwarrior"
)

// newHookCmd is installed as a Taskwarrior on-add or on-modify hook. It
// echoes the task back as the hook protocol requires and, when the change
// affects the plan, reschedules today in a detached process so Taskwarrior
// is not kept waiting.
func newHookCmd(a *app) *cobra.Command {
	var noSchedule bool
	cmd := &cobra.Command{
		Use:    "hook",
		Short:  "Taskwarrior on-add/on-modify hook",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			tasks, err := taskwarrior.ParseTasks(bytes.NewReader(input))
			if err != nil {
				return fmt.Errorf("error parsing tasks from stdin: %w", err)
			}
			if len(tasks) == 0 {
				return nil
			}
			// The echoed line replaces the task, so it is passed through untouched.
			lines := bytes.Split(bytes.TrimSpace(input), []byte("\n"))
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n", bytes.TrimSpace(lines[len(lines)-1])); err != nil {
				return err
			}
			if noSchedule || !affectsPlan(tasks) {
				return nil
			}

			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("could not find self: %w", err)
			}
			hookArgs := []string{"schedule", "--days", "1", "--json-logs"}
			if a.configPath != "" {
				hookArgs = append(hookArgs, "--config", a.configPath)
			}
			bg := exec.Command(self, hookArgs...)
			if err := bg.Start(); err != nil {
				a.logger.Warn("could not start background schedule", zap.Error(err))
				return nil
			}
			a.logger.Debug("background schedule started", zap.Int("pid", bg.Process.Pid))
			return bg.Process.Release()
		},
	}
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "only echo the task")
	return cmd
}

// affectsPlan reports whether the hook input adds or changes a task the
// scheduler would place. On modify, Taskwarrior sends the old and new task.
func affectsPlan(tasks []taskwarrior.Task) bool {
	newTask := tasks[len(tasks)-1]
	if len(tasks) == 1 {
		return newTask.ModelStatus() == model.TODO && newTask.Est != ""
	}
	oldTask := tasks[0]
	wasCandidate := oldTask.ModelStatus() == model.TODO && oldTask.Est != ""
	isCandidate := newTask.ModelStatus() == model.TODO && newTask.Est != ""
	if wasCandidate != isCandidate {
		return true
	}
	return isCandidate && (oldTask.Est != newTask.Est || oldTask.Description != newTask.Description || !sameTime(oldTask.Due, newTask.Due))
}

func sameTime(a, b *taskwarrior.CustomTime) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Time.Equal(b.Time)
}
