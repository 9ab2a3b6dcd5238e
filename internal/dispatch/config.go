package dispatch

import (
	"fmt"
	"time"
)

const (
	// PolicyReportAll reports every transport failure so the host redelivers it.
	PolicyReportAll = "report_all"
	// PolicyDropNonRetryable logs non-retryable transport failures and skips them.
	PolicyDropNonRetryable = "drop_non_retryable"
)

type Config struct {
	Concurrency   int           `mapstructure:"concurrency"`
	FailurePolicy string        `mapstructure:"failure_policy"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
}

func (c *Config) SetDefault() {
	if c.FailurePolicy == "" {
		c.FailurePolicy = PolicyReportAll
	}
}

func (c *Config) Validate() error {
	// 0 - one goroutine per record
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0")
	}
	if c.FailurePolicy != PolicyReportAll && c.FailurePolicy != PolicyDropNonRetryable {
		return fmt.Errorf("failure_policy must be one of: %s, %s", PolicyReportAll, PolicyDropNonRetryable)
	}
	if c.BatchTimeout < 0 {
		return fmt.Errorf("batch_timeout must be >= 0")
	}
	return nil
}
