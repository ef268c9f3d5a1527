// Package main provides the entry point for the standalone contentaugment client.
//
// Usage:
//
//	contentaugment-client health
//	contentaugment-client jobs submit --op add_links id-1 id-2 --wait
//	contentaugment-client jobs get <job-id>
//	contentaugment-client jobs list --status failed
//	contentaugment-client augment --dry-run id-1 id-2
//
// Global flags:
//
//	--api-url    API server URL (default: http://localhost:8080)
//	--timeout    Request timeout duration (default: 2m)
//
// All output is JSON-formatted.
package main

import (
	"os"

	"contentaugment/internal/client/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
