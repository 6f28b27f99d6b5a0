// Package main provides the entry point for the scenarium CLI.
package main

import (
	"os"

	"github.com/hanulsoft/scenarium/cmd/scenarium/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
