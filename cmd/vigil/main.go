package main

import (
	"os"

	"github.com/vigilcell/vigil/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
