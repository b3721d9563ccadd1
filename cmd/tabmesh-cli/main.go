// Package main provides the entry point for tabmesh-cli.
//
// tabmesh-cli is the command-line management tool for TabMesh,
// operating session tables over the server's HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/tabmesh-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
