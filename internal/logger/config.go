package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Level is the base level; DEBUG=TRUE and LOG_LEVEL override it.
	Level             string `mapstructure:"level"`
	EnableWriteToFile bool   `mapstructure:"enable_write_to_file"`
	FilePath          string `mapstructure:"file_path"`
	MaxSize           int    `mapstructure:"max_size"` // in MB
	MaxBackups        int    `mapstructure:"max_backups"`
	MaxAgeDays        int    `mapstructure:"max_age_days"`
	Compress          bool   `mapstructure:"compress"`
}

func (c *Config) Validate() error {
	if c.Level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(c.Level)); err != nil {
			return fmt.Errorf("logger.level: %w", err)
		}
	}
	if !c.EnableWriteToFile {
		return nil
	}
	if c.FilePath == "" {
		return fmt.Errorf("logger.file_path is required when enable_write_to_file is set")
	}
	if c.MaxSize <= 0 {
		return fmt.Errorf("logger.max_size must be > 0 (MB)")
	}
	if c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("logger.max_backups and logger.max_age_days must be >= 0")
	}
	return nil
}
