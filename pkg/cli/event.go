package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/zenkai/pkg/builder"
	"github.com/harrisonrobin/zenkai/pkg/errs"
	"github.com/harrisonrobin/zenkai/pkg/model"
)

func newEventCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage calendar events",
	}
	cmd.AddCommand(newEventAddCmd(a))
	cmd.AddCommand(newEventListCmd(a))
	cmd.AddCommand(newEventClearCmd(a))
	return cmd
}

func newEventAddCmd(a *app) *cobra.Command {
	var date, start, endDate, end, location string
	var force bool
	cmd := &cobra.Command{
		Use:   "add TITLE",
		Short: "Create an event from loose date and time values",
		Long: "Create an event. Missing parts are filled in: a past start moves to the next " +
			"matching day, the end defaults to one hour later and an end before the start " +
			"is pushed forward. A title such as \"plan my day\" schedules the backlog instead.",
		Example: `  zenkai event add "Dentist" --date tomorrow --start 10am
  zenkai event add "Flight" --date 2026-11-02 --start 22:00 --end 6am
  zenkai event add "plan my day" --date today`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.localNow()
			req := builder.Request{
				Title:         strings.Join(args, " "),
				Location:      location,
				Now:           now,
				StartDateText: date,
				StartTimeText: start,
				EndDateText:   endDate,
				EndTimeText:   end,
			}
			var err error
			if req.Start, err = fragment(date, start, now); err != nil {
				return err
			}
			if endDate != "" || end != "" {
				if req.End, err = fragment(endDate, end, now); err != nil {
					return err
				}
				req.EndTimeExplicit = end != ""
			}

			b, err := a.builder(cmd.Context())
			if err != nil {
				return err
			}
			out, err := b.Create(cmd.Context(), req, force)
			w := cmd.OutOrStdout()
			if conflicts, ok := errs.Conflicts(err); ok {
				fmt.Fprintln(w, "Conflicts with:")
				for _, e := range conflicts {
					printEvent(w, e)
				}
				return errors.New("event not created, use --force to create it anyway")
			}
			if err != nil {
				return err
			}
			if out.Schedule != nil {
				printResult(w, out.Schedule)
				return nil
			}
			fmt.Fprintln(w, "Created:")
			printEvent(w, *out.Event)
			if len(out.Conflicts) > 0 {
				fmt.Fprintf(w, "Overlaps %d event(s).\n", len(out.Conflicts))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "start date: YYYY-MM-DD, today, tomorrow, +Nd or a weekday")
	cmd.Flags().StringVar(&start, "start", "", "start time, e.g. 14:30 or 9am")
	cmd.Flags().StringVar(&endDate, "end-date", "", "end date")
	cmd.Flags().StringVar(&end, "end", "", "end time")
	cmd.Flags().StringVar(&location, "location", "", "event location")
	cmd.Flags().BoolVar(&force, "force", false, "create the event even if it overlaps others")
	return cmd
}

func newEventListCmd(a *app) *cobra.Command {
	var date string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events of a day, or the next upcoming events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.eventService(cmd.Context())
			if err != nil {
				return err
			}
			now := a.localNow()
			if date == "" {
				upcoming, err := events.ReadFollowingEvents(cmd.Context(), limit, now.AddDate(0, 0, a.cfg.ScheduleDays))
				if err != nil {
					return err
				}
				for _, e := range upcoming {
					printEvent(cmd.OutOrStdout(), e)
				}
				return nil
			}
			day, err := parseDate(date, now)
			if err != nil {
				return err
			}
			list, err := events.ReadEvents(cmd.Context(), day)
			if err != nil {
				return err
			}
			for _, e := range list {
				printEvent(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to list")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of upcoming events")
	return cmd
}

func newEventClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-scheduled",
		Short: "Remove every auto-scheduled event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.eventService(cmd.Context())
			if err != nil {
				return err
			}
			if err := events.RemoveEventsMatching(cmd.Context(), model.AutoScheduledMarker); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Removed auto-scheduled events.")
			return nil
		},
	}
}
