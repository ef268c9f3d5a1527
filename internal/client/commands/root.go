// Package commands provides the cobra command tree for contentaugment-client.
package commands

import (
	"contentaugment/internal/client"
	"context"
	"io"

	"github.com/spf13/cobra"
)

const clientVersion = "1.0.0"

// Flag names for persistent global flags.
const (
	flagAPIURL  = "api-url"
	flagTimeout = "timeout"
)

// NewRootCmd creates the root command. --api-url and --timeout default to
// the CONTENTAUGMENT_CLIENT_* environment variables when set.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "contentaugment-client",
		Short:        "CLI client for the content augmentation API",
		Version:      clientVersion,
		SilenceUsage: true,
	}

	defaults := client.DefaultConfig()
	if envCfg, err := client.LoadConfig(); err == nil {
		defaults = *envCfg
	}

	cmd.PersistentFlags().String(flagAPIURL, defaults.APIURL, "API server URL")
	cmd.PersistentFlags().Duration(flagTimeout, defaults.Timeout, "Request timeout")

	cmd.AddCommand(NewHealthCmd())
	cmd.AddCommand(NewJobsCmd())
	cmd.AddCommand(NewAugmentCmd())

	return cmd
}

// createClientFromFlags builds a client from the global flags. On failure
// it writes an error envelope to out and returns false.
func createClientFromFlags(cmd *cobra.Command, out io.Writer) (*client.Client, bool) {
	apiURL, _ := cmd.Flags().GetString(flagAPIURL)
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)

	cfg := &client.Config{APIURL: apiURL, Timeout: timeout}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		_ = client.WriteError(out, client.ErrCodeInvalidConfig, err.Error(), nil)
		return nil, false
	}

	c, err := client.NewClient(cfg)
	if err != nil {
		_ = client.WriteError(out, client.ErrCodeInvalidConfig, err.Error(), nil)
		return nil, false
	}
	return c, true
}

// requestContext bounds a single API call by the --timeout flag.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration(flagTimeout)
	return context.WithTimeout(cmd.Context(), timeout)
}
