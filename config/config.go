package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"ShelfLayoutServer/engine"
	"ShelfLayoutServer/gateway"

	"github.com/spf13/viper"
)

const (
	AnswerModeHTTP  = "http"
	AnswerModeLocal = "local"
	EnvPrefix       = "SHELF"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline engine.Options `mapstructure:"pipeline"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Detector DetectorConfig `mapstructure:"detector"`
	Answer   AnswerConfig   `mapstructure:"answer"`
}

type ServerConfig struct {
	Mode            string        `mapstructure:"mode"`
	HTTPPort        int           `mapstructure:"http_port"`
	RPCPort         int           `mapstructure:"rpc_port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type WorkersConfig struct {
	Num       int `mapstructure:"num"`
	QueueSize int `mapstructure:"queue_size"`
}

// DetectorConfig points at the object detection service. An empty URL
// disables image uploads; detections can still be posted directly.
type DetectorConfig struct {
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type AnswerConfig struct {
	Mode           string `mapstructure:"mode"`
	URL            string `mapstructure:"url"`
	APIKey         string `mapstructure:"api_key"`
	gateway.Config `mapstructure:",squash"`
}

// Load reads configPath on top of the defaults. SHELF_* environment variables
// override both, e.g. SHELF_ANSWER_URL for answer.url. A missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to defaults.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.rpc_port", d.Server.RPCPort)
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("pipeline.conf_threshold", d.Pipeline.ConfThreshold)
	v.SetDefault("pipeline.iou_threshold", d.Pipeline.IoUThreshold)
	v.SetDefault("pipeline.row_gap_factor", d.Pipeline.RowGapFactor)
	v.SetDefault("pipeline.col_gap_factor", d.Pipeline.ColGapFactor)
	v.SetDefault("pipeline.sparse_below", d.Pipeline.SparseBelow)
	v.SetDefault("pipeline.dense_above", d.Pipeline.DenseAbove)
	v.SetDefault("pipeline.full_at", d.Pipeline.FullAt)
	v.SetDefault("pipeline.partial_at", d.Pipeline.PartialAt)

	v.SetDefault("workers.num", d.Workers.Num)
	v.SetDefault("workers.queue_size", d.Workers.QueueSize)

	v.SetDefault("detector.url", d.Detector.URL)
	v.SetDefault("detector.timeout", d.Detector.Timeout)
	v.SetDefault("detector.health_interval", d.Detector.HealthInterval)

	v.SetDefault("answer.mode", d.Answer.Mode)
	v.SetDefault("answer.url", d.Answer.URL)
	v.SetDefault("answer.api_key", d.Answer.APIKey)
	v.SetDefault("answer.timeout", d.Answer.Timeout)
	v.SetDefault("answer.retries", d.Answer.Retries)
	v.SetDefault("answer.initial_backoff", d.Answer.InitialBackoff)
	v.SetDefault("answer.max_backoff", d.Answer.MaxBackoff)
	v.SetDefault("answer.multiplier", d.Answer.Multiplier)
	v.SetDefault("answer.max_in_flight", d.Answer.MaxInFlight)
	v.SetDefault("answer.cache_ttl", d.Answer.CacheTTL)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Mode:            "release",
			HTTPPort:        8080,
			RPCPort:         50051,
			MetricsPort:     9100,
			ShutdownTimeout: 5 * time.Second,
		},
		Pipeline: engine.DefaultOptions(),
		Workers: WorkersConfig{
			Num:       4,
			QueueSize: 64,
		},
		Detector: DetectorConfig{
			Timeout:        15 * time.Second,
			HealthInterval: 30 * time.Second,
		},
		Answer: AnswerConfig{
			Mode:   AnswerModeLocal,
			Config: gateway.DefaultConfig(),
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Mode != "release" && c.Server.Mode != "debug" && c.Server.Mode != "test" {
		return fmt.Errorf("server.mode must be release, debug or test, got %q", c.Server.Mode)
	}
	for name, port := range map[string]int{
		"server.http_port":    c.Server.HTTPPort,
		"server.rpc_port":     c.Server.RPCPort,
		"server.metrics_port": c.Server.MetricsPort,
	} {
		if port < 0 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Workers.Num < 1 {
		return fmt.Errorf("workers.num must be >= 1, got %d", c.Workers.Num)
	}
	if c.Workers.QueueSize < 0 {
		return fmt.Errorf("workers.queue_size must not be negative, got %d", c.Workers.QueueSize)
	}
	if c.Detector.URL != "" && c.Detector.Timeout <= 0 {
		return fmt.Errorf("detector.timeout must be positive, got %s", c.Detector.Timeout)
	}
	switch c.Answer.Mode {
	case AnswerModeLocal:
	case AnswerModeHTTP:
		if c.Answer.URL == "" {
			return errors.New("answer.url is required when answer.mode is http")
		}
	default:
		return fmt.Errorf("answer.mode must be %q or %q, got %q", AnswerModeHTTP, AnswerModeLocal, c.Answer.Mode)
	}
	if err := c.Answer.Config.Validate(); err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	return nil
}
