package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/workflow"
)

const lastChangeFile = "last_change.json"

func newTaskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage backlog tasks",
		Long:  "Tasks are looked up by fuzzy title match, so a partial or misspelled title is enough.",
	}
	cmd.AddCommand(newTaskAddCmd(a))
	cmd.AddCommand(newTaskListCmd(a))
	cmd.AddCommand(newTaskMoveCmd(a))
	cmd.AddCommand(newTaskArchiveCmd(a))
	cmd.AddCommand(newTaskUndoCmd(a))
	return cmd
}

func newTaskAddCmd(a *app) *cobra.Command {
	var duration time.Duration
	var deadline, status, description string
	var tags []string
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Add a task, or move the matching existing one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := model.ParseStatus(status)
			if err != nil {
				return errs.Invalid("status", "%v", err)
			}
			due, err := parseDeadline(deadline, a.localNow())
			if err != nil {
				return err
			}
			m, err := a.workflow()
			if err != nil {
				return err
			}
			change, err := m.Add(cmd.Context(), model.Task{
				Title:       strings.Join(args, " "),
				Description: description,
				Status:      st,
				Duration:    duration,
				Deadline:    due,
				Tags:        tags,
			})
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), change)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "time the task takes, e.g. 1h30m")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline date with optional time, e.g. \"2026-10-20 17:00\"")
	cmd.Flags().StringVar(&status, "status", "todo", "someday, todo, doing or done")
	cmd.Flags().StringVar(&description, "description", "", "task notes")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag to attach (repeatable)")
	return cmd
}

func newTaskListCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the backlog by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.workflow()
			if err != nil {
				return err
			}
			tasks, err := m.Backlog(cmd.Context())
			if err != nil {
				return err
			}
			var only model.Status
			if status != "" {
				if only, err = model.ParseStatus(status); err != nil {
					return errs.Invalid("status", "%v", err)
				}
			}
			w := cmd.OutOrStdout()
			for _, t := range tasks {
				if only != "" && t.Status != only {
					continue
				}
				printTask(w, t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list this status")
	return cmd
}

func newTaskMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move TITLE STATUS",
		Short: "Set the status of the matching task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := model.ParseStatus(args[1])
			if err != nil {
				return errs.Invalid("status", "%v", err)
			}
			m, err := a.workflow()
			if err != nil {
				return err
			}
			change, err := m.Move(cmd.Context(), args[0], to)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), change)
		},
	}
}

func newTaskArchiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive TITLE",
		Short: "Archive the matching task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.workflow()
			if err != nil {
				return err
			}
			change, err := m.Archive(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), change)
		},
	}
}

func newTaskUndoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last task add or move",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			change, err := a.loadChange()
			if err != nil {
				return err
			}
			m, err := a.workflow()
			if err != nil {
				return err
			}
			undone, err := m.Rollback(cmd.Context(), change)
			if err != nil {
				return err
			}
			if err := a.clearChange(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Undone: %s\n", describe(undone))
			return nil
		},
	}
}

func printTask(w io.Writer, t model.Task) {
	line := fmt.Sprintf("  [%s] %s", t.Status, t.Title)
	if t.HasDuration() {
		line += fmt.Sprintf(" (%s)", t.Duration)
	}
	if t.HasDeadline() {
		line += " due " + t.Deadline.Format(slotLayout)
	}
	fmt.Fprintln(w, line)
}

func describe(c workflow.Change) string {
	switch c.Kind {
	case workflow.Moved:
		return fmt.Sprintf("%q moved from %s to %s", c.Task.Title, c.Previous, c.Task.Status)
	case workflow.Unchanged:
		return fmt.Sprintf("%q already in %s", c.Task.Title, c.Task.Status)
	}
	return fmt.Sprintf("%q %s", c.Task.Title, c.Kind)
}

// report prints the change and remembers it for undo.
func (a *app) report(w io.Writer, c workflow.Change) error {
	fmt.Fprintln(w, describe(c))
	if c.Kind == workflow.Unchanged {
		return nil
	}
	return a.saveChange(c)
}

func (a *app) changePath() string {
	return filepath.Join(filepath.Dir(a.cfg.Path), lastChangeFile)
}

func (a *app) saveChange(c workflow.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(a.changePath()), 0700); err != nil {
		return err
	}
	return os.WriteFile(a.changePath(), data, 0600)
}

func (a *app) loadChange() (workflow.Change, error) {
	var c workflow.Change
	data, err := os.ReadFile(a.changePath())
	if os.IsNotExist(err) {
		return c, errs.Missing("previous change")
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("read last change: %w", err)
	}
	return c, nil
}

func (a *app) clearChange() error {
	err := os.Remove(a.changePath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// addTasks adds each task through the workflow, reporting every change.
func (a *app) addTasks(ctx context.Context, w io.Writer, tasks []model.Task) error {
	m, err := a.workflow()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		change, err := m.Add(ctx, t)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, describe(change))
	}
	return nil
}
