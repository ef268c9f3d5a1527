// Package main is the entry point for the contentaugment service. It runs the
// API that accepts augmentation jobs, the worker that executes them, and the
// schema migration.
package main

import "contentaugment/cmd"

func main() {
	cmd.Execute()
}
