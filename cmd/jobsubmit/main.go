package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/buildit/jobsubmit/pkg/payload"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Values already in the environment take precedence over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Flags must precede the positional address; parsing stops at the first
// non-flag argument.
func newApp() *cli.App {
	return &cli.App{
		Name:      "jobsubmit",
		Usage:     "Submit build jobs to the github-webhooks work queue",
		ArgsUsage: "[flags] [amqp-addr]",
		Commands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "Submit an inline JSON payload",
				ArgsUsage: "[flags] [amqp-addr]",
				Flags:     sendFlags(),
				Action: func(c *cli.Context) error {
					return run(c, payload.Inline(c.String("json")))
				},
			},
			{
				Name:      "submit",
				Usage:     "Submit a payload read from a file, or stdin with -f -",
				ArgsUsage: "[flags] [amqp-addr]",
				Flags:     submitFlags(),
				Action: func(c *cli.Context) error {
					return run(c, payload.FromPath(c.String("file"), c.App.Reader))
				},
			},
		},
	}
}
