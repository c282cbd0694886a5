// Package config loads application configuration from YAML files with
// environment-variable overrides. Each service reads the sections it needs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Search    SearchConfig    `yaml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the search service.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// HandlerTimeout bounds request handling. It must stay below
	// WriteTimeout so the 504 body is written before the connection
	// deadline; zero derives it from WriteTimeout.
	HandlerTimeout time.Duration `yaml:"handlerTimeout"`
}

// PostgresConfig holds connection parameters for the browsing-history store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to Kafka topic strings.
type KafkaTopics struct {
	PageVisits   string `yaml:"pageVisits"`
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and result-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexerConfig controls how the in-memory indexes are rebuilt on start.
type IndexerConfig struct {
	ReplayHistory   bool `yaml:"replayHistory"`
	ReplayBatchSize int  `yaml:"replayBatchSize"`
}

// SearchConfig controls query handling.
type SearchConfig struct {
	DefaultMode    string `yaml:"defaultMode"`
	MaxQueryLength int    `yaml:"maxQueryLength"`
}

// IngestionConfig controls the page ingestion service.
type IngestionConfig struct {
	Port         int     `yaml:"port"`
	RateLimit    float64 `yaml:"rateLimit"`
	RateBurst    int     `yaml:"rateBurst"`
	MaxHTMLBytes int     `yaml:"maxHTMLBytes"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Search.DefaultMode {
	case "prefix", "infix":
	default:
		return fmt.Errorf("search.defaultMode must be prefix or infix, got %q", c.Search.DefaultMode)
	}
	if c.Search.MaxQueryLength <= 0 {
		return fmt.Errorf("search.maxQueryLength must be positive")
	}
	if c.Indexer.ReplayBatchSize <= 0 {
		return fmt.Errorf("indexer.replayBatchSize must be positive")
	}
	if c.Server.HandlerTimeout == 0 {
		c.Server.HandlerTimeout = c.Server.WriteTimeout * 4 / 5
	}
	if c.Server.WriteTimeout > 0 && c.Server.HandlerTimeout >= c.Server.WriteTimeout {
		return fmt.Errorf("server.handlerTimeout (%s) must be below server.writeTimeout (%s)",
			c.Server.HandlerTimeout, c.Server.WriteTimeout)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "browsersearch",
			User:            "browsersearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "browsersearch-searcher",
			Topics: KafkaTopics{
				PageVisits:   "page-visits",
				SearchEvents: "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 30 * time.Second,
		},
		Indexer: IndexerConfig{
			ReplayHistory:   true,
			ReplayBatchSize: 500,
		},
		Search: SearchConfig{
			DefaultMode:    "infix",
			MaxQueryLength: 1024,
		},
		Ingestion: IngestionConfig{
			Port:         8081,
			RateLimit:    20,
			RateBurst:    40,
			MaxHTMLBytes: 4 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_INDEXER_REPLAY_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Indexer.ReplayHistory = b
		}
	}
	if v := os.Getenv("SP_SEARCH_DEFAULT_MODE"); v != "" {
		cfg.Search.DefaultMode = strings.ToLower(v)
	}
	if v := os.Getenv("SP_INGESTION_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Ingestion.Port = port
		}
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
