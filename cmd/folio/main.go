package main

import (
	"os"

	"github.com/fiona/folio/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
