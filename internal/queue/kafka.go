package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaTransport treats every queue name as a topic.
type KafkaTransport struct {
	client   sarama.Client
	producer sarama.SyncProducer
	cfg      *KafkaConfig
	logger   *zap.Logger
}

func NewKafkaTransport(logger *zap.Logger, cfg *KafkaConfig) (*KafkaTransport, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = requiredAcks(cfg.Acks)
	saramaCfg.Producer.Idempotent = false
	// redelivery is left to the stream host
	saramaCfg.Producer.Retry.Max = 0
	if cfg.ClientID != "" {
		saramaCfg.ClientID = cfg.ClientID
	}
	if cfg.Timeout > 0 {
		saramaCfg.Producer.Timeout = cfg.Timeout
	}

	client, err := sarama.NewClient(cfg.Brokers, saramaCfg)
	if err != nil {
		logger.Error("failed to create Kafka client", zap.Error(err))
		return nil, err
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		logger.Error("failed to create Kafka producer", zap.Error(err))
		return nil, err
	}

	logger.Info("kafka producer initialized", zap.Strings("brokers", cfg.Brokers))

	return &KafkaTransport{
		client:   client,
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

func requiredAcks(acks string) sarama.RequiredAcks {
	switch acks {
	case "0":
		return sarama.NoResponse
	case "all":
		return sarama.WaitForAll
	default:
		return sarama.WaitForLocal
	}
}

func (k *KafkaTransport) ResolveEndpoint(_ context.Context, name string) (Endpoint, error) {
	partitions, err := k.client.Partitions(name)
	if err != nil {
		return Endpoint{}, fmt.Errorf("lookup topic %q: %w", name, err)
	}
	if len(partitions) == 0 {
		return Endpoint{}, fmt.Errorf("topic %q has no partitions", name)
	}
	return Endpoint{Name: name, Address: name}, nil
}

func (k *KafkaTransport) Send(ctx context.Context, ep Endpoint, body string, attrs map[string]string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	msg := &sarama.ProducerMessage{
		Topic: ep.Address,
		Value: sarama.StringEncoder(body),
	}
	for key, v := range attrs {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(v)})
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("produce to %q: %w", ep.Address, err)
	}
	return Receipt{MessageID: fmt.Sprintf("%s/%d/%d", ep.Address, partition, offset)}, nil
}

func (k *KafkaTransport) Close(ctx context.Context) error {
	k.logger.Info("kafka producer shutting down...")
	done := make(chan error, 1)

	go func() {
		err := k.producer.Close()
		if cerr := k.client.Close(); cerr != nil && !errors.Is(cerr, sarama.ErrClosedClient) && err == nil {
			err = cerr
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			k.logger.Warn("error while closing Kafka producer", zap.Error(err))
			return err
		}
		k.logger.Info("kafka producer closed")
		return nil
	case <-ctx.Done():
		k.logger.Warn("kafka producer close timeout", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

var kafkaRetryable = []sarama.KError{
	sarama.ErrLeaderNotAvailable,
	sarama.ErrNotLeaderForPartition,
	sarama.ErrRequestTimedOut,
	sarama.ErrBrokerNotAvailable,
	sarama.ErrNotEnoughReplicas,
	sarama.ErrNotEnoughReplicasAfterAppend,
	sarama.ErrNetworkException,
	sarama.ErrNotController,
}

func ClassifyKafka(err error) Classification {
	var kerr sarama.KError
	if errors.As(err, &kerr) {
		for _, r := range kafkaRetryable {
			if kerr == r {
				return Retryable
			}
		}
		return NonRetryable
	}
	if errors.Is(err, sarama.ErrOutOfBrokers) || errors.Is(err, sarama.ErrNotConnected) {
		return Retryable
	}
	return NonRetryable
}
