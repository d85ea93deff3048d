package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
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
	Store struct {
		Backend string `yaml:"backend"` // clickhouse or memory
	} `yaml:"store"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
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
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Cache struct {
		MemoryMaxSize int           `yaml:"memory_max_size"`
		PricesTTL     time.Duration `yaml:"prices_ttl"`
		WeatherTTL    time.Duration `yaml:"weather_ttl"`
		SchemesTTL    time.Duration `yaml:"schemes_ttl"`
	} `yaml:"cache"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"` // observation batches
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
			Enabled    bool          `yaml:"enabled"`
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
	Sources  []SourceConfig `yaml:"sources"` // ranked: index 0 wins conflicts
	Alerting struct {
		Backend string `yaml:"backend"` // kafka, redis, or log
		Topic   string `yaml:"topic"`   // notification events
		NodeID  int64  `yaml:"node_id"` // snowflake worker id
	} `yaml:"alerting"`
	Weather struct {
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		Timeout   time.Duration `yaml:"timeout"`
		Locations []string      `yaml:"locations"`
	} `yaml:"weather"`
}

// SourceConfig describes one upstream price source. List order is the
// conflict-resolution priority.
type SourceConfig struct {
	Name         string        `yaml:"name"` // agmarknet, enam
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	State        string        `yaml:"state"`
	PollInterval time.Duration `yaml:"poll_interval"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second
	Timeout      time.Duration `yaml:"timeout"`
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

	c.applyDefaults()

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

	if v := os.Getenv("AGMARKNET_API_KEY"); v != "" {
		c.setSourceKey("agmarknet", v)
	}
	if v := os.Getenv("ENAM_API_KEY"); v != "" {
		c.setSourceKey("enam", v)
	}
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		c.Weather.APIKey = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) setSourceKey(name, key string) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			c.Sources[i].APIKey = key
		}
	}
}

// SourcePriority returns source names in conflict-resolution order.
func (c *Config) SourcePriority() []string {
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, s.Name)
	}
	return names
}

func (c *Config) applyDefaults() {
	if c.Cache.PricesTTL == 0 {
		c.Cache.PricesTTL = 30 * time.Minute
	}
	if c.Cache.WeatherTTL == 0 {
		c.Cache.WeatherTTL = 15 * time.Minute
	}
	if c.Cache.SchemesTTL == 0 {
		c.Cache.SchemesTTL = 24 * time.Hour
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 1000
	}
	if c.Alerting.Backend == "" {
		c.Alerting.Backend = "log"
	}
	if c.Alerting.NodeID == 0 {
		c.Alerting.NodeID = 1
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Store.Backend == "" {
		return fmt.Errorf("store.backend is required")
	}
	if c.Store.Backend != "clickhouse" && c.Store.Backend != "memory" {
		return fmt.Errorf("store.backend must be 'clickhouse' or 'memory', got '%s'", c.Store.Backend)
	}
	switch c.Alerting.Backend {
	case "kafka", "redis", "log":
	default:
		return fmt.Errorf("alerting.backend must be 'kafka', 'redis' or 'log', got '%s'", c.Alerting.Backend)
	}
	if c.Alerting.Backend == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required for kafka alerting backend")
	}
	if c.Alerting.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis must be enabled for redis alerting backend")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source '%s'", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
