// Package main is the entry point for the knock CLI.
package main

import (
	"fmt"
	"os"

	"github.com/doorline/knock/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
