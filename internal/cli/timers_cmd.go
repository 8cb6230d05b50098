package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/togglguard/internal/cli/formatter"
	"github.com/alexanderramin/togglguard/internal/timerguard"
)

func newTimersCmd(r *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timers",
		Short: "Maintain locally tracked timers",
	}
	cmd.AddCommand(newTimersAutoStopCmd(r), newTimersRankingCmd(r))
	return cmd
}

func newTimersAutoStopCmd(r *Runner) *cobra.Command {
	var tzOffset int

	cmd := &cobra.Command{
		Use:   "autostop",
		Short: "Stop every running timer older than 2 hours",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Timers.AutoStopAll(cmd.Context(), tzOffset)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.Dim("No running timers exceeded 2 hours."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), timerguard.AutoStopWarning(n))
			return nil
		},
	}
	cmd.Flags().IntVar(&tzOffset, "tz-offset", 0, "Minutes to add to local time to get UTC, decides the booked date")
	return cmd
}

func newTimersRankingCmd(r *Runner) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "ranking",
		Short: "Show booked time per member for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ranking, err := a.Timers.DailyRanking(cmd.Context(), date)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(ranking.Members))
			for _, m := range ranking.Members {
				rows = append(rows, []string{m.Name, formatter.FormatSeconds(m.Seconds)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, formatter.Header("Ranking "+ranking.Date))
			fmt.Fprint(out, formatter.RenderTable([]string{"MEMBER", "BOOKED"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date (YYYY-MM-DD), defaults to today in UTC")
	return cmd
}
