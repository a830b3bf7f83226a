package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Start-offset policies for a consumer group with no durable checkpoint.
// With one on record, the group always resumes from it.
const (
	StartEarliest = "earliest"
	StartLatest   = "latest"
	// StartResume relies on the committed checkpoint and falls back to
	// the earliest offset on a fresh group, so a first deploy replays
	// history rather than losing it.
	StartResume = "resume"
)

// Failure policies for a sink whose batch exhausted its retries.
const (
	PolicyDropAndContinue  = "drop-and-continue"
	PolicyHaltOnExhaustion = "halt-on-exhaustion"
)

type Config struct {
	Consumer ConsumerConfig        `mapstructure:"consumer"`
	Sinks    map[string]SinkConfig `mapstructure:"sinks"`
	Server   ServerConfig          `mapstructure:"server"`
	Log      LogConfig             `mapstructure:"log"`
}

type ConsumerConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	Group       string   `mapstructure:"group"`
	StartOffset string   `mapstructure:"start_offset"`
}

// SinkConfig is one entry in the sink registry. A section can be present
// but disabled; enabling a destination is a config change, not a code
// change.
type SinkConfig struct {
	Type       string `mapstructure:"type"`
	Projection string `mapstructure:"projection"`
	Enabled    bool   `mapstructure:"enabled"`

	// elasticsearch
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`

	// postgres
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`

	BatchMaxRows     int           `mapstructure:"batch_max_rows"`
	BatchMaxInterval time.Duration `mapstructure:"batch_max_interval"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	FailurePolicy    string        `mapstructure:"failure_policy"`
	Parallelism      int           `mapstructure:"parallelism"`
	PendingLimit     int           `mapstructure:"pending_limit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("consumer.brokers", []string{"localhost:9092"})
	v.SetDefault("consumer.topic", "financial_transactions")
	v.SetDefault("consumer.group", "dashboard-group")
	v.SetDefault("consumer.start_offset", StartLatest)
	v.SetDefault("server.addr", ":8087")
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Consumer.StartOffset {
	case StartEarliest, StartLatest, StartResume:
	default:
		return fmt.Errorf("consumer.start_offset: unknown policy %q", c.Consumer.StartOffset)
	}
	if c.Consumer.Topic == "" {
		return errors.New("consumer.topic is required")
	}
	if c.Consumer.Group == "" {
		return errors.New("consumer.group is required")
	}

	enabled := 0
	for name, sc := range c.Sinks {
		if !sc.Enabled {
			continue
		}
		enabled++

		// Batch tuning defaults match the original deployment.
		if sc.BatchMaxRows <= 0 {
			sc.BatchMaxRows = 1000
		}
		if sc.BatchMaxInterval <= 0 {
			sc.BatchMaxInterval = time.Second
		}
		if sc.MaxRetryAttempts <= 0 {
			sc.MaxRetryAttempts = 3
		}
		if sc.Parallelism <= 0 {
			sc.Parallelism = 2
		}
		if sc.PendingLimit <= 0 {
			sc.PendingLimit = 4 * sc.BatchMaxRows
		}
		if sc.FailurePolicy == "" {
			sc.FailurePolicy = PolicyHaltOnExhaustion
		}
		switch sc.FailurePolicy {
		case PolicyDropAndContinue, PolicyHaltOnExhaustion:
		default:
			return fmt.Errorf("sinks.%s.failure_policy: unknown policy %q", name, sc.FailurePolicy)
		}
		if sc.Projection == "" {
			return fmt.Errorf("sinks.%s.projection is required", name)
		}

		switch sc.Type {
		case "elasticsearch":
			if len(sc.Addresses) == 0 || sc.Index == "" {
				return fmt.Errorf("sinks.%s: elasticsearch requires addresses and index", name)
			}
		case "postgres":
			if sc.DSN == "" || sc.Table == "" {
				return fmt.Errorf("sinks.%s: postgres requires dsn and table", name)
			}
		default:
			return fmt.Errorf("sinks.%s.type: unknown type %q", name, sc.Type)
		}

		c.Sinks[name] = sc
	}
	if enabled == 0 {
		return errors.New("at least one sink must be enabled")
	}
	return nil
}
