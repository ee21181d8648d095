package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SigPull/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Backend struct {
		Type         string        `yaml:"type"`
		BatchSize    int           `yaml:"batch_size"`
		BatchTimeout time.Duration `yaml:"batch_timeout"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		Table            string        `yaml:"table"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Telegram struct {
		Enabled        bool          `yaml:"enabled"`
		GatewayURL     string        `yaml:"gateway_url"`
		Token          string        `yaml:"token"`
		Channels       []string      `yaml:"channels"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"telegram"`
	Reddit struct {
		Enabled      bool          `yaml:"enabled"`
		BaseURL      string        `yaml:"base_url"`
		UserAgent    string        `yaml:"user_agent"`
		Subreddits   []string      `yaml:"subreddits"`
		PollInterval time.Duration `yaml:"poll_interval"`
		Timeout      time.Duration `yaml:"timeout"`
	} `yaml:"reddit"`
	Extractor struct {
		MinConfidence      int    `yaml:"min_confidence"`
		RejectInconsistent bool   `yaml:"reject_inconsistent"`
		QuoteAsset         string `yaml:"quote_asset"`
	} `yaml:"extractor"`
	Validator struct {
		CacheTTL        time.Duration `yaml:"cache_ttl"`
		ExchangeTimeout time.Duration `yaml:"exchange_timeout"`
		BinanceURL      string        `yaml:"binance_url"`
		KuCoinURL       string        `yaml:"kucoin_url"`
		GateURL         string        `yaml:"gate_url"`
	} `yaml:"validator"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Enabled     bool          `yaml:"enabled"`
		Stream      string        `yaml:"stream"`
		Group       string        `yaml:"group"`
		Workers     int           `yaml:"workers"`
		MaxRetries  int           `yaml:"max_retries"`
		PollTimeout time.Duration `yaml:"poll_timeout"`
	} `yaml:"queue"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHANNELS"); v != "" {
		c.Telegram.Channels = strings.Split(v, ",")
	}
	if v := os.Getenv("REDDIT_SUBREDDITS"); v != "" {
		c.Reddit.Subreddits = strings.Split(v, ",")
	}
	if v := os.Getenv("BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	c.Redis.DB = util.ParseIntDefault(os.Getenv("REDIS_DB"), c.Redis.DB)
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Backend.Type == "" {
		return fmt.Errorf("backend.type is required")
	}
	if c.Backend.Type != "kafka" && c.Backend.Type != "clickhouse" {
		return fmt.Errorf("backend.type must be 'kafka' or 'clickhouse', got '%s'", c.Backend.Type)
	}
	if !c.Telegram.Enabled && !c.Reddit.Enabled {
		return fmt.Errorf("at least one message source must be enabled")
	}
	if c.Telegram.Enabled {
		if c.Telegram.GatewayURL == "" {
			return fmt.Errorf("telegram.gateway_url is required")
		}
		if len(c.Telegram.Channels) == 0 {
			return fmt.Errorf("telegram.channels cannot be empty")
		}
	}
	if c.Reddit.Enabled && len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("reddit.subreddits cannot be empty")
	}
	if c.Extractor.MinConfidence < 0 || c.Extractor.MinConfidence > 100 {
		return fmt.Errorf("extractor.min_confidence must be within [0,100], got %d", c.Extractor.MinConfidence)
	}
	return nil
}
