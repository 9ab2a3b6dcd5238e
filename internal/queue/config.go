package queue

import (
	"fmt"
	"time"
)

const (
	TypeSQS   = "sqs"
	TypeKafka = "kafka"
	TypeAMQP  = "amqp"
)

type Config struct {
	Type  string       `mapstructure:"type"`
	SQS   *SQSConfig   `mapstructure:"sqs"`
	Kafka *KafkaConfig `mapstructure:"kafka"`
	AMQP  *AMQPConfig  `mapstructure:"amqp"`
}

type SQSConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type KafkaConfig struct {
	Brokers  []string      `mapstructure:"brokers"`
	Acks     string        `mapstructure:"acks"`
	ClientID string        `mapstructure:"client_id"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AMQPConfig struct {
	URL            string        `mapstructure:"url"`
	Exchange       string        `mapstructure:"exchange"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

func (c *Config) Validate() error {
	switch c.Type {
	case "":
		return fmt.Errorf("queue type is required")
	case TypeSQS:
	case TypeKafka:
		if c.Kafka == nil {
			return fmt.Errorf("kafka config must be provided for type=kafka")
		}
		if err := c.Kafka.Validate(); err != nil {
			return fmt.Errorf("kafka config: %w", err)
		}
	case TypeAMQP:
		if c.AMQP == nil {
			return fmt.Errorf("amqp config must be provided for type=amqp")
		}
		if err := c.AMQP.Validate(); err != nil {
			return fmt.Errorf("amqp config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported queue type: %q", c.Type)
	}
	return nil
}

func (k *KafkaConfig) Validate() error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	if k.Acks != "0" && k.Acks != "1" && k.Acks != "all" {
		return fmt.Errorf("kafka.acks must be one of: 0, 1, all")
	}
	if k.Timeout < 0 {
		return fmt.Errorf("kafka.timeout must be >= 0")
	}
	return nil
}

func (a *AMQPConfig) Validate() error {
	if a.URL == "" {
		return fmt.Errorf("amqp.url is required")
	}
	if a.ConfirmTimeout < 0 {
		return fmt.Errorf("amqp.confirm_timeout must be >= 0")
	}
	return nil
}
