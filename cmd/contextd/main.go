// Package main provides the entry point for the contextd CLI.
package main

import (
	"os"

	"github.com/sandy-sachin7/contextd/cmd/contextd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
