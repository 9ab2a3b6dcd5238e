package config

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/zhukov-alex/cdcrouter/internal/dispatch"
	"github.com/zhukov-alex/cdcrouter/internal/logger"
	"github.com/zhukov-alex/cdcrouter/internal/offload"
	"github.com/zhukov-alex/cdcrouter/internal/queue"
	"github.com/zhukov-alex/cdcrouter/internal/routing"
	"github.com/zhukov-alex/cdcrouter/internal/transform"
)

type Config struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
	Offline     bool   `mapstructure:"offline"`
	Region      string `mapstructure:"region"`

	Dispatch  dispatch.Config  `mapstructure:"dispatch"`
	Routing   routing.Config   `mapstructure:"routing"`
	Transform transform.Config `mapstructure:"transform"`
	Offload   offload.Config   `mapstructure:"offload"`
	Queue     queue.Config     `mapstructure:"queue"`
	Logger    logger.Config    `mapstructure:"logger"`
}

// ${NAME} or ${NAME:default}
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// ExpandEnv replaces ${NAME} and ${NAME:default} references with the value of
// the environment variable, falling back to the default and then to NAME.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		idx := envRef.FindSubmatchIndex(m)
		name := string(m[idx[2]:idx[3]])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		// an empty default is still a default
		if idx[4] >= 0 {
			return m[idx[4]:idx[5]]
		}
		return []byte(name)
	})
}

// Load reads the config file into v with environment references expanded.
func Load(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := v.ReadConfig(bytes.NewReader(ExpandEnv(data))); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func NewConfigInit(cfgFile *string) func() {
	return func() {
		if strings.TrimSpace(*cfgFile) == "" {
			log.Fatalf("invalid config file name")
		}
		if _, err := os.Stat(*cfgFile); err != nil {
			log.Fatalf("invalid config path: %v", err)
		}
		if err := Load(viper.GetViper(), *cfgFile); err != nil {
			log.Fatalf("Failed to read config: %v\n", err)
		}
	}
}

func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	cfg.Dispatch.SetDefault()
	cfg.Offload.SetDefault()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config: %w", err)
	}
	if c.Region == "" && c.Queue.Type == queue.TypeSQS {
		return fmt.Errorf("region is required for queue type %s", queue.TypeSQS)
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch config: %w", err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("routing config: %w", err)
	}
	if err := c.Transform.Validate(); err != nil {
		return fmt.Errorf("transform config: %w", err)
	}
	if err := c.Offload.Validate(); err != nil {
		return fmt.Errorf("offload config: %w", err)
	}
	if c.Offload.Policy == offload.PolicyExternal && c.Region == "" {
		return fmt.Errorf("region is required for offload policy %s", offload.PolicyExternal)
	}
	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}
	return nil
}
