package main

import (
	"os"

	"github.com/sultanlodh/Stream/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
