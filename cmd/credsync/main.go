// Package main provides the entry point for the credsync CLI.
package main

import (
	"os"

	"github.com/credsync/credsync/cmd/credsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
