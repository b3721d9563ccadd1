// Package command provides CLI command definitions for tabmesh-cli.
//
// It uses urfave/cli/v2 for command parsing. Every command targets
// one session, named by the --session flag.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tabmesh-go/internal/cli/connection"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	app := &cli.App{
		Name:    "tabmesh-cli",
		Usage:   "TabMesh command-line management tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TableCommand(),
		},
	}

	return app
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "TabMesh server address (e.g., localhost:5090)",
			EnvVars: []string{"TABMESH_SERVER"},
			Value:   "localhost:5090",
		},
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"S"},
			Usage:   "Session ID to operate on",
			EnvVars: []string{"TABMESH_SESSION"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
			Value:   "table",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server  string
	Session string
	Output  string // table, json
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:  c.String("server"),
		Session: c.String("session"),
		Output:  c.String("output"),
	}
}

// newClient builds an HTTP client from the global flags and checks
// the session flag is present.
func newClient(c *cli.Context) (*connection.HTTPClient, *GlobalFlags, error) {
	flags := ParseGlobalFlags(c)
	if flags.Session == "" {
		return nil, nil, fmt.Errorf("--session is required (or set TABMESH_SESSION)")
	}
	return connection.NewHTTPClient(flags.Server), flags, nil
}
