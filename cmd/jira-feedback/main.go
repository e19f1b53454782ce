// Package main provides the entry point for the jira-feedback CLI.
package main

import (
	"os"

	"github.com/randalmurphal/jira-feedback/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintError(err)
		os.Exit(cli.ExitCode(err))
	}
}
