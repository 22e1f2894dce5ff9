package main

import (
	"github.com/urfave/cli/v2"
)

// commonFlags returns the flags shared by every submission command
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
		},
		&cli.StringFlag{
			Name:    "amqp-addr",
			Aliases: []string{"a"},
			Usage:   "AMQP address of the message broker (may also be given as the first argument)",
			EnvVars: []string{"BUILDIT_AMQP_ADDR"},
		},
		&cli.BoolFlag{
			Name:    "persistent",
			Usage:   "Mark the message persistent (delivery mode 2) so it survives a broker restart",
			EnvVars: []string{"BUILDIT_PERSISTENT"},
			Value:   false,
		},
		// Metrics configuration flags
		&cli.StringFlag{
			Name:    "metrics-pushgateway",
			Usage:   "Prometheus Pushgateway URL to push submission metrics to (disabled if empty)",
			EnvVars: []string{"BUILDIT_PUSHGATEWAY_URL"},
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., production, staging)",
			EnvVars: []string{"BUILDIT_ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Region label for metrics",
			EnvVars: []string{"BUILDIT_REGION"},
		},
	}
}

// sendFlags returns the flags of the send command
func sendFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:     "json",
			Aliases:  []string{"j"},
			Usage:    "JSON payload to submit",
			Required: true,
		},
	)
}

// submitFlags returns the flags of the submit command
func submitFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.StringFlag{
			Name:      "file",
			Aliases:   []string{"f"},
			Usage:     "Path to the payload file, - reads stdin",
			Required:  true,
			TakesFile: true,
		},
	)
}
