package main

import (
	"os"

	"github.com/bgrewell/iso-forge/cmd/isoforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
