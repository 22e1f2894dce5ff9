package main

import (
	"errors"
	"fmt"

	"github.com/buildit/jobsubmit/pkg/broker"
	"github.com/urfave/cli/v2"
)

// Config holds all configuration for a jobsubmit invocation
type Config struct {
	// Application settings
	Verbose    bool
	Persistent bool

	// Broker session settings
	Broker broker.Config

	// Metrics settings
	PushgatewayURL string
	Environment    string
	Region         string
}

// buildConfig builds a Config from CLI context flags. Broker tunables without
// a flag are read from the environment.
func buildConfig(c *cli.Context) (*Config, error) {
	brokerCfg, err := broker.Load()
	if err != nil {
		return nil, err
	}

	if c.NArg() > 1 {
		return nil, fmt.Errorf("unexpected arguments: %v", c.Args().Tail())
	}

	// A positional address wins over the flag and BUILDIT_AMQP_ADDR.
	addr := c.String("amqp-addr")
	if c.NArg() == 1 {
		addr = c.Args().First()
	}
	if addr == "" {
		return nil, errors.New("amqp address is required: set --amqp-addr, BUILDIT_AMQP_ADDR or pass it as the first argument")
	}
	brokerCfg.Addr = addr

	return &Config{
		Verbose:        c.Bool("verbose"),
		Persistent:     c.Bool("persistent"),
		Broker:         brokerCfg,
		PushgatewayURL: c.String("metrics-pushgateway"),
		Environment:    c.String("environment"),
		Region:         c.String("region"),
	}, nil
}
