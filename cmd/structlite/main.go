package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals holds the flags shared by every subcommand
type globals struct {
	schemaPath string
	logLevel   string
	logFormat  string
}

func newApp() *cli.Command {
	g := &globals{}
	return &cli.Command{
		Name:  "structlite",
		Usage: "Encode and decode declarative binary layouts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "schema",
				Aliases:     []string{"s"},
				Usage:       "layout file or directory (.proto, .yaml, .json)",
				Destination: &g.schemaPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "debug, info, warn or error",
				Destination: &g.logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "text or json",
				Destination: &g.logFormat,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			layoutsCmd(g),
			inspectCmd(g),
			encodeCmd(g),
			decodeCmd(g),
		},
	}
}
