package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/buildit/jobsubmit/pkg/broker"
	"github.com/buildit/jobsubmit/pkg/metrics"
	"github.com/buildit/jobsubmit/pkg/payload"
	"github.com/buildit/jobsubmit/pkg/submitter"
	"github.com/buildit/jobsubmit/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const pushTimeout = 10 * time.Second

func run(c *cli.Context, src payload.Source) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(utils.LoggerOptions{
		Verbose:       cfg.Verbose,
		FilterFromEnv: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Debugw("config",
		"verbose", cfg.Verbose,
		"persistent", cfg.Persistent,
		"queue", broker.WebhookQueueName,
		"connectionName", cfg.Broker.ConnectionName,
		"heartbeat", cfg.Broker.Heartbeat,
		"pushgateway", cfg.PushgatewayURL,
		"environment", cfg.Environment,
		"region", cfg.Region,
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(reg, metrics.Labels{
		Environment: cfg.Environment,
		Region:      cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	if cfg.PushgatewayURL != "" {
		defer pushMetrics(sugar, cfg.PushgatewayURL, reg)
	}

	dial := func(ctx context.Context) (submitter.Session, error) {
		s, err := broker.Connect(ctx, cfg.Broker, sugar)
		if err != nil {
			return nil, err
		}
		sugar.Infow("connected to broker", "connectionName", s.Name())
		return s, nil
	}

	sub, err := submitter.New(dial, sugar,
		submitter.WithPersistent(cfg.Persistent),
		submitter.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create submitter: %w", err)
	}

	out, err := sub.Submit(ctx, src)
	if err != nil {
		return err
	}

	sugar.Infow("sent json", "queue", out.Queue.Name, "payload", string(out.Payload))
	fmt.Fprintf(c.App.Writer, "Sent json to %s: %s\n", out.Queue.Name, out.Payload)
	return nil
}

// pushMetrics never fails the invocation; push errors are only logged.
func pushMetrics(log *zap.SugaredLogger, url string, reg *prometheus.Registry) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	if err := metrics.Push(ctx, url, reg, nil); err != nil {
		log.Warnw("failed to push metrics", "error", err)
		return
	}
	log.Debugw("metrics pushed", "pushgateway", url)
}
