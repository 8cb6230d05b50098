// Package cli implements the togglguard command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/alexanderramin/togglguard/internal/app"
	"github.com/alexanderramin/togglguard/internal/config"
)

// Runner opens the application for one command invocation.
type Runner struct {
	Config  config.Config
	Options app.Options
}

// NewRootCmd creates the top-level "togglguard" command. Flags override the
// values loaded into r.Config.
func NewRootCmd(r *Runner) *cobra.Command {
	root := &cobra.Command{
		Use:           "togglguard",
		Short:         "Caching and guard layer in front of the Toggl Track API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	addStoreFlags(root.PersistentFlags(), &r.Config)

	root.AddCommand(
		newServeCmd(r),
		newCacheCmd(r),
		newTimersCmd(r),
		newIdempotencyCmd(r),
	)
	return root
}

func addStoreFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database")
	fs.StringVar(&cfg.PostgresURL, "postgres-url", cfg.PostgresURL, "Postgres URL for shared snapshots and idempotency records")
}

// open wires the application with the logger writing to the command's
// stderr.
func (r *Runner) open(cmd *cobra.Command) (*app.App, error) {
	log := app.NewLogger(cmd.ErrOrStderr(), r.Config.LogLevel)
	a, err := app.New(cmd.Context(), r.Config, log, r.Options)
	if err != nil {
		return nil, fmt.Errorf("starting togglguard: %w", err)
	}
	return a, nil
}
