package commands

import (
	"contentaugment/internal/client"

	"github.com/spf13/cobra"
)

// NewHealthCmd creates the health command, which prints the server's
// /health response.
//
// Errors are written as JSON envelopes and the command returns nil so cobra
// does not print usage.
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check API server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			c, ok := createClientFromFlags(cmd, out)
			if !ok {
				return nil
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			health, err := c.Health(ctx)
			if err != nil {
				_ = client.WriteFailure(out, err)
				return nil
			}
			return client.WriteSuccess(out, health)
		},
	}
}
