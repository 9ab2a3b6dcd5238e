package routing

import "fmt"

type Config struct {
	Targets []TargetConfig `mapstructure:"targets"`
}

type TargetConfig struct {
	Token             string `mapstructure:"token"`
	QueueName         string `mapstructure:"queue_name"`
	OversizeQueueName string `mapstructure:"oversize_queue_name"`
}

func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("routing.targets must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Targets))
	for i, t := range c.Targets {
		if t.Token == "" {
			return fmt.Errorf("routing.targets[%d].token is required", i)
		}
		if t.QueueName == "" {
			return fmt.Errorf("routing.targets[%d].queue_name is required", i)
		}
		if _, dup := seen[t.Token]; dup {
			return fmt.Errorf("routing.targets[%d]: duplicate token %q", i, t.Token)
		}
		seen[t.Token] = struct{}{}
	}
	return nil
}
