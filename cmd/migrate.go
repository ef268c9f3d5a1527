package cmd

import (
	"fmt"

	"contentaugment/internal/adapter/outbound/repository"
	"contentaugment/internal/application/common/slogger"

	"github.com/spf13/cobra"
)

// newMigrateCmd creates and returns the migrate command.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply the embedded schema: the contentaugment schema, the augmentation_jobs
table with its counter invariants, and the content_items table.

Every migration is idempotent, so running the command twice is safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := NewServiceFactory(GetConfig()).CreateDatabasePool(ctx)
			if err != nil {
				return fmt.Errorf("failed to create database connection pool: %w", err)
			}
			defer pool.Close()

			applied, err := repository.ApplySchema(ctx, pool)
			if err != nil {
				return err
			}
			slogger.Info(ctx, "Migrations applied", slogger.Field("migrations", applied))
			return nil
		},
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newMigrateCmd())
}
