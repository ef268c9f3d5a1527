package commands

import (
	"contentaugment/internal/application/dto"
	"contentaugment/internal/client"

	"github.com/spf13/cobra"
)

// NewAugmentCmd creates the augment command, which runs a small batch
// synchronously and prints the summary and per-item outcomes.
func NewAugmentCmd() *cobra.Command {
	var (
		op     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "augment [item-id...]",
		Short: "Augment a small batch of items synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "at least one item ID is required", nil)
				return nil
			}

			c, ok := createClientFromFlags(cmd, out)
			if !ok {
				return nil
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			resp, err := c.AugmentSync(ctx, dto.SyncAugmentRequest{
				ItemIDs:       args,
				DryRun:        dryRun,
				OperationType: op,
			})
			if err != nil {
				_ = client.WriteFailure(out, err)
				return nil
			}
			return client.WriteSuccess(out, resp)
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Operation type (server default when empty)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate previews without writing content")

	return cmd
}
