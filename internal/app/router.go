package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhukov-alex/cdcrouter/internal/config"
	"github.com/zhukov-alex/cdcrouter/internal/ingest"
	"github.com/zhukov-alex/cdcrouter/internal/metrics"
)

const shutdownTimeout = 3 * time.Second

// RouterCmd runs the stream handler under the Lambda runtime. It returns only
// if the runtime could not start.
func RouterCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	l, err := newLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer l.Sync()

	collectMetrics := cfg.MetricsAddr != ""
	var metricsCloser func(ctx context.Context) error
	if collectMetrics {
		metricsSrv, cl := metrics.New(l, cfg.MetricsAddr, prometheus.DefaultGatherer)
		metricsSrv.Start()
		metricsCloser = cl
	}

	c, err := build(ctx, l, cfg, collectMetrics)
	if err != nil {
		return fmt.Errorf("dispatcher init error: %w", err)
	}
	handler := ingest.NewHandler(l, c.dispatcher, collectMetrics)

	shutdown := func() {
		l.Info("Shutdown signal received")

		clCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(clCtx)
		g.Go(func() error { return c.client.Close(gctx) })
		if collectMetrics {
			g.Go(func() error { return metricsCloser(gctx) })
		}

		if err := g.Wait(); err != nil {
			l.Error("shutdown errors", zap.Error(err))
		} else {
			l.Info("Shutdown complete")
		}
		_ = l.Sync()
	}

	lambda.StartWithOptions(handler.Handle,
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(shutdown),
	)
	return nil
}
