// Package main is the entry point for the strck application.
package main

import (
	"os"

	"github.com/dholroyd/strck/cmd/strck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
