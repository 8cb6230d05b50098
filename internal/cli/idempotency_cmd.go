package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdempotencyCmd(r *Runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "idempotency",
		Short: "Maintain stored idempotency records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Delete expired idempotency records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := r.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Idempotency.Purge(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired idempotency records.\n", n)
			return err
		},
	})
	return cmd
}
