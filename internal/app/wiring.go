package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/zhukov-alex/cdcrouter/internal/config"
	"github.com/zhukov-alex/cdcrouter/internal/dispatch"
	"github.com/zhukov-alex/cdcrouter/internal/logger"
	"github.com/zhukov-alex/cdcrouter/internal/offload"
	"github.com/zhukov-alex/cdcrouter/internal/queue"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
	"github.com/zhukov-alex/cdcrouter/internal/transform"
)

const (
	EnvStage = "ENVIRONMENT"

	offlineKey = "offline"
)

func newLogger(cfg logger.Config) (*zap.Logger, error) {
	devMode := strings.ToLower(os.Getenv(EnvStage)) != "prod"
	return logger.New(cfg, devMode)
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	// local emulators accept any static key
	if cfg.Offline {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(offlineKey, offlineKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func newTransport(l *zap.Logger, cfg queue.Config, awsCfg aws.Config) (queue.Transport, queue.Classifier, error) {
	switch cfg.Type {
	case queue.TypeSQS:
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.SQS != nil && cfg.SQS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.SQS.Endpoint)
			}
		})
		return queue.NewSQSTransport(l, client), queue.ClassifySQS, nil
	case queue.TypeKafka:
		if cfg.Kafka == nil {
			return nil, nil, fmt.Errorf("kafka config is missing")
		}
		t, err := queue.NewKafkaTransport(l, cfg.Kafka)
		if err != nil {
			return nil, nil, err
		}
		return t, queue.ClassifyKafka, nil
	case queue.TypeAMQP:
		if cfg.AMQP == nil {
			return nil, nil, fmt.Errorf("amqp config is missing")
		}
		t, err := queue.NewAMQPTransport(l, cfg.AMQP)
		if err != nil {
			return nil, nil, err
		}
		return t, queue.ClassifyAMQP, nil
	default:
		return nil, nil, fmt.Errorf("unsupported queue type: %s", cfg.Type)
	}
}

func newObjectStore(l *zap.Logger, cfg offload.S3Config, awsCfg aws.Config) *offload.S3Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return offload.NewS3Store(l, manager.NewUploader(client), client)
}

// components holds everything a command needs to dispatch batches.
type components struct {
	dispatcher dispatch.Service
	client     *queue.Client
}

func build(ctx context.Context, l *zap.Logger, cfg *config.Config, registerMetrics bool) (*components, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	table, err := routing.NewTable(cfg.Routing)
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}

	var objects offload.ObjectStore
	if cfg.Offload.Policy == offload.PolicyExternal {
		objects = newObjectStore(l, cfg.Offload.S3, awsCfg)
	}
	policy, err := offload.NewPolicy(cfg.Offload, objects)
	if err != nil {
		return nil, fmt.Errorf("offload policy: %w", err)
	}

	transport, classify, err := newTransport(l, cfg.Queue, awsCfg)
	if err != nil {
		return nil, fmt.Errorf("queue transport: %w", err)
	}
	client := queue.NewClient(l, transport, classify)

	dispatcher := dispatch.New(l, cfg.Dispatch, table, transform.New(cfg.Transform), policy, client, registerMetrics)

	l.Info("dispatcher ready",
		zap.String("queue_type", cfg.Queue.Type),
		zap.String("offload_policy", cfg.Offload.Policy),
		zap.Int("targets", len(table.Targets())),
		zap.Bool("flattened_enabled", cfg.Transform.FlattenedEnabled),
	)

	return &components{dispatcher: dispatcher, client: client}, nil
}
