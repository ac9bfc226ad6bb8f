// Package main provides the entry point for the govr CLI.
package main

import (
	"os"

	"github.com/randalmurphal/governor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
