package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(r *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ln, err := net.Listen("tcp", r.Config.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", r.Config.Addr, err)
			}
			srv := &http.Server{
				Handler:           a.Server.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return ctx },
			}
			a.Log.Info(ctx, "serving",
				slog.F("addr", ln.Addr().String()),
				slog.F("members", a.Team.Len()),
			)
			if a.Team.Len() == 0 {
				a.Log.Warn(ctx, "no members configured, set TOGGL_TEAM")
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			a.Log.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&r.Config.Addr, "addr", r.Config.Addr, "Listen address")
	return cmd
}
