package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zhukov-alex/cdcrouter/internal/config"
	"github.com/zhukov-alex/cdcrouter/internal/ingest"
	"github.com/zhukov-alex/cdcrouter/internal/offload"
)

// ReplayCmd dispatches the stream event stored in args[0] once and prints the
// batch report as JSON.
func ReplayCmd(cmd *cobra.Command, args []string) error {
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

	ev, err := ingest.ReadEventFile(args[0])
	if err != nil {
		return err
	}

	c, err := build(ctx, l, cfg, false)
	if err != nil {
		return fmt.Errorf("dispatcher init error: %w", err)
	}
	defer func() {
		clCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.client.Close(clCtx); err != nil {
			l.Error("error closing queue client", zap.Error(err))
		}
	}()

	if cfg.Dispatch.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Dispatch.BatchTimeout)
		defer cancel()
	}

	report, err := ingest.NewHandler(l, c.dispatcher, false).Process(ctx, ev)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	l.Info("replay finished",
		zap.String("file", args[0]),
		zap.Int("records", len(ev.Records)),
		zap.Int("failed", len(report.FailedItemIdentifiers)),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// ResolveCmd prints the original payload of a received message body. The body
// is taken from args[0], or from stdin when no argument is given.
func ResolveCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	if cfg.Offload.Policy != offload.PolicyExternal {
		return fmt.Errorf("resolve needs offload policy %s, got %s", offload.PolicyExternal, cfg.Offload.Policy)
	}
	l, err := newLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer l.Sync()

	var body string
	if len(args) > 0 {
		body = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read message body: %w", err)
		}
		body = string(data)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	resolver := offload.NewExternalStore(newObjectStore(l, cfg.Offload.S3, awsCfg), cfg.Offload)

	payload, err := resolver.Resolve(ctx, body)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(payload)
	return err
}
