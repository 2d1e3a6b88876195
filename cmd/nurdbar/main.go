package main

import (
	"os"

	"github.com/nurdspace/nurdbar/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
