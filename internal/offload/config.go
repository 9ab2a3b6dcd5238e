package offload

import "fmt"

const (
	PolicyExternal = "external"
	PolicyStrip    = "strip"

	// DefaultThreshold is the inline body limit of an SQS message.
	DefaultThreshold = 256 * 1024
	// MinExternalThreshold leaves room for the reference envelope.
	MinExternalThreshold = 1024
)

type Config struct {
	Policy    string   `mapstructure:"policy"`
	Threshold int      `mapstructure:"threshold"`
	Bucket    string   `mapstructure:"bucket"`
	Prefix    string   `mapstructure:"prefix"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

func (c *Config) SetDefault() {
	if c.Policy == "" {
		c.Policy = PolicyExternal
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
}

func (c *Config) Validate() error {
	if c.Threshold < 0 {
		return fmt.Errorf("offload.threshold must be >= 0")
	}
	switch c.Policy {
	case PolicyExternal:
		if c.Bucket == "" {
			return fmt.Errorf("offload.bucket is required for policy=%s", PolicyExternal)
		}
		if c.Threshold < MinExternalThreshold {
			return fmt.Errorf("offload.threshold must be >= %d for policy=%s", MinExternalThreshold, PolicyExternal)
		}
	case PolicyStrip:
	default:
		return fmt.Errorf("unsupported offload policy: %q", c.Policy)
	}
	return nil
}
