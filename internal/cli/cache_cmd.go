package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/togglguard/internal/cli/formatter"
	"github.com/alexanderramin/togglguard/internal/domain"
)

func newCacheCmd(r *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect cached snapshots",
	}
	cmd.AddCommand(newCacheGetCmd(r), newCacheKeyCmd())
	return cmd
}

func newCacheGetCmd(r *Runner) *cobra.Command {
	var freshOnly, raw bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the latest snapshot stored under a cache key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, ok := a.Cache.Get(cmd.Context(), args[0], freshOnly)
			if !ok {
				return fmt.Errorf("no snapshot for key %q", args[0])
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err := fmt.Fprintln(out, string(snap.Payload))
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, snap.Payload, "", "  "); err != nil {
				return fmt.Errorf("formatting snapshot: %w", err)
			}
			fmt.Fprintln(out, formatter.Header("Snapshot "+snap.Key))
			fmt.Fprintln(out, formatter.RenderTable(
				[]string{"STATE", "CACHED", "EXPIRES"},
				[][]string{{
					formatter.Freshness(snap.Fresh(a.Clock().Now())),
					formatter.Timestamp(snap.CreatedAt),
					formatter.Timestamp(snap.ExpiresAt),
				}},
			))
			fmt.Fprintln(out, pretty.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&freshOnly, "fresh", false, "Only print a snapshot that has not expired")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the payload only, unformatted")
	return cmd
}

func newCacheKeyCmd() *cobra.Command {
	var view, member, date string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key of a view",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !domain.ValidDate(date) {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}
			var key string
			switch view {
			case "entries":
				if member == "" {
					return fmt.Errorf("--member is required for the entries view")
				}
				key = domain.EntriesKey(member, date)
			case "team":
				key = domain.TeamDayKey(date)
			case "team-week":
				dates, err := domain.LastSevenDates(date)
				if err != nil {
					return err
				}
				key = domain.TeamWeekKey(dates[0], date)
			default:
				return fmt.Errorf("unknown view %q (want entries, team or team-week)", view)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
	cmd.Flags().StringVar(&view, "view", "entries", "View: entries, team or team-week")
	cmd.Flags().StringVar(&member, "member", "", "Member of an entries view")
	cmd.Flags().StringVar(&date, "date", "", "Date of the view (last day for team-week)")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
