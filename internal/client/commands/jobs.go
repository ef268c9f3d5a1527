package commands

import (
	"contentaugment/internal/application/dto"
	"contentaugment/internal/client"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const errMsgInvalidJobID = "invalid job ID: must be a valid UUID"

// NewJobsCmd creates the jobs parent command.
//
//	contentaugment-client jobs submit --op add_links id-1 id-2 --wait
//	contentaugment-client jobs get <job-id>
//	contentaugment-client jobs list --status processing --limit 10
func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Submit and inspect augmentation jobs",
	}

	cmd.AddCommand(NewJobsSubmitCmd())
	cmd.AddCommand(NewJobsGetCmd())
	cmd.AddCommand(NewJobsListCmd())

	return cmd
}

// NewJobsSubmitCmd creates the jobs submit subcommand. With --wait it polls
// until the job is completed or failed, writing progress lines to stderr.
func NewJobsSubmitCmd() *cobra.Command {
	var (
		op           string
		dryRun       bool
		wait         bool
		pollInterval time.Duration
		maxWait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit [item-id...]",
		Short: "Submit an asynchronous augmentation job",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "at least one item ID is required", nil)
				return nil
			}
			if op == "" {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "--op is required", nil)
				return nil
			}

			c, ok := createClientFromFlags(cmd, out)
			if !ok {
				return nil
			}

			ctx, cancel := requestContext(cmd)
			submitted, err := c.SubmitJob(ctx, dto.SubmitJobRequest{
				OperationType: op,
				ItemIDs:       args,
				Options:       dto.JobOptions{DryRun: dryRun},
			})
			cancel()
			if err != nil {
				_ = client.WriteFailure(out, err)
				return nil
			}

			if !wait {
				return client.WriteSuccess(out, submitted)
			}

			poller, err := client.NewPoller(c, &client.PollerConfig{Interval: pollInterval, MaxWait: maxWait})
			if err != nil {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, err.Error(), nil)
				return nil
			}

			job, err := poller.WaitForCompletion(cmd.Context(), submitted.JobID, cmd.ErrOrStderr())
			switch {
			case errors.Is(err, client.ErrJobFailed):
				_ = client.WriteError(out, client.ErrCodeJobFailed, jobFailureMessage(job), job)
				return nil
			case errors.Is(err, client.ErrPollTimeout):
				_ = client.WriteError(out, client.ErrCodeTimeout, err.Error(), job)
				return nil
			case err != nil:
				_ = client.WriteFailure(out, err)
				return nil
			}
			return client.WriteSuccess(out, job)
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Operation type to apply (e.g. add_links)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Generate previews without writing content")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", client.DefaultPollInterval, "Interval between status checks with --wait")
	cmd.Flags().DurationVar(&maxWait, "max-wait", client.DefaultMaxWait, "Maximum time to wait with --wait")

	return cmd
}

func jobFailureMessage(job *dto.JobResponse) string {
	if job != nil && job.ErrorMessage != nil {
		return fmt.Sprintf("%s: %s", client.ErrJobFailed, *job.ErrorMessage)
	}
	return client.ErrJobFailed.Error()
}

// NewJobsGetCmd creates the jobs get subcommand.
func NewJobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get a job with its counters and per-item results",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) != 1 {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "requires exactly 1 argument", nil)
				return nil
			}

			jobID, err := uuid.Parse(args[0])
			if err != nil {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, errMsgInvalidJobID, nil)
				return nil
			}

			c, ok := createClientFromFlags(cmd, out)
			if !ok {
				return nil
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			job, err := c.GetJob(ctx, jobID)
			if err != nil {
				_ = client.WriteFailure(out, err)
				return nil
			}
			return client.WriteSuccess(out, job)
		},
	}
}

// NewJobsListCmd creates the jobs list subcommand.
func NewJobsListCmd() *cobra.Command {
	query := dto.DefaultJobListQuery()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if query.Limit < 1 || query.Limit > 100 {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "limit must be between 1 and 100", nil)
				return nil
			}
			if query.Offset < 0 {
				_ = client.WriteError(out, client.ErrCodeInvalidArgument, "offset must be non-negative", nil)
				return nil
			}

			c, ok := createClientFromFlags(cmd, out)
			if !ok {
				return nil
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			list, err := c.ListJobs(ctx, query)
			if err != nil {
				_ = client.WriteFailure(out, err)
				return nil
			}
			return client.WriteSuccess(out, list)
		},
	}

	cmd.Flags().StringVar(&query.Status, "status", "", "Filter by status (queued, processing, completed, failed)")
	cmd.Flags().IntVar(&query.Limit, "limit", query.Limit, "Maximum number of jobs to return")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "Number of jobs to skip")

	return cmd
}
