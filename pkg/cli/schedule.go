package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/zenkai/pkg/model"
	"github.com/harrisonrobin/zenkai/pkg/period"
	"github.com/harrisonrobin/zenkai/pkg/scheduler"
)

func newScheduleCmd(a *app) *cobra.Command {
	var from, hoursText string
	var days int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Fit pending tasks into free time",
		Long: "Place every TODO task with a duration into the gaps between calendar events, " +
			"one working-hours window per day. Events created by a previous run are replaced.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := a.localNow()
			start := period.StartOfDay(now)
			if from != "" {
				var err error
				if start, err = parseDate(from, now); err != nil {
					return err
				}
			}
			if days <= 0 {
				days = a.cfg.ScheduleDays
			}
			dates, err := period.NewDatePeriod(start, start.AddDate(0, 0, days-1))
			if err != nil {
				return err
			}

			hours, err := a.cfg.Hours()
			if err != nil {
				return err
			}
			if hoursText != "" {
				if hours, err = period.ParseTimePeriod(hoursText); err != nil {
					return err
				}
			}

			s, err := a.scheduler(cmd.Context())
			if err != nil {
				return err
			}
			res, err := s.ScheduleDays(cmd.Context(), dates, hours, a.loc.String())
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day to plan (default today)")
	cmd.Flags().IntVar(&days, "days", 0, "number of days to plan (default from config)")
	cmd.Flags().StringVar(&hoursText, "hours", "", "working hours, e.g. 09:00-18:00 (default from config)")
	return cmd
}

const slotLayout = "Mon 02 Jan 15:04"

func printResult(w io.Writer, res *scheduler.Result) {
	if len(res.Scheduled) == 0 {
		fmt.Fprintln(w, "No tasks scheduled.")
	} else {
		fmt.Fprintf(w, "Scheduled %d task(s):\n", len(res.Scheduled))
		for _, e := range res.Scheduled {
			printEvent(w, e)
		}
	}
	for _, t := range res.Missed {
		fmt.Fprintf(w, "Deadline at risk: %s (due %s)\n", t.Title, t.Deadline.Format(slotLayout))
	}
}

func printEvent(w io.Writer, e model.Event) {
	if e.AllDay {
		fmt.Fprintf(w, "  %s  all day     %s\n", e.Start.Format("Mon 02 Jan"), e.Title)
		return
	}
	fmt.Fprintf(w, "  %s-%s  %s\n", e.Start.Format(slotLayout), e.End.Format("15:04"), e.Title)
}
