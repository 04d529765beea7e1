package main

import (
	"os"

	"github.com/ppiankov/coctel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
