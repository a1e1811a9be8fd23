package main

import (
	"os"

	"github.com/fieldkeeper/fieldkeeper/cmd/fieldkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
