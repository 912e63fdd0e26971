package main

import (
	"os"

	"github.com/critdb/critdb/cmd/critdb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
