// Package config holds the environment-driven configuration for the search
// service.
package config

import (
	"fmt"
	"time"

	"github.com/dungeun/e-market-search/pkg/config"
	"github.com/dungeun/e-market-search/pkg/database"
)

// Catalog backends.
const (
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Key-value backends.
const (
	KVRedis  = "redis"
	KVMemory = "memory"
)

// Config is the full service configuration, loaded from the environment.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"search-service"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8084"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// CatalogBackend selects where products are read from.
	CatalogBackend string `env:"CATALOG_BACKEND" envDefault:"postgres"`
	// KVBackend selects the cache/counter store.
	KVBackend string `env:"KV_BACKEND" envDefault:"redis"`

	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Elastic  ElasticConfig  `envPrefix:"ELASTICSEARCH_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Search   SearchConfig
}

// PostgresConfig configures the relational catalog backend.
type PostgresConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"emarket"`
	Password string `env:"PASSWORD" envDefault:"emarket"`
	DBName   string `env:"DB" envDefault:"emarket"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	MaxConns int32  `env:"MAX_CONNS" envDefault:"10"`
}

// RedisConfig configures the key-value store.
type RedisConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB" envDefault:"0"`
}

// ElasticConfig configures the Elasticsearch catalog backend.
type ElasticConfig struct {
	URL   string `env:"URL" envDefault:"http://localhost:9200"`
	Index string `env:"INDEX" envDefault:"emarket_products"`
}

// KafkaConfig configures event consumption and emission. Disabled by
// default so the service runs without a broker.
type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envDefault:"localhost:9092"`
	GroupID string   `env:"GROUP_ID" envDefault:"search-service"`
}

// SearchConfig tunes the engine itself.
type SearchConfig struct {
	CacheTTL             time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"5m"`
	AutocompleteCacheTTL time.Duration `env:"AUTOCOMPLETE_CACHE_TTL" envDefault:"60s"`
	FacetTimeout         time.Duration `env:"FACET_TIMEOUT" envDefault:"800ms"`
	CandidateLimit       int           `env:"RANKING_CANDIDATE_LIMIT" envDefault:"500"`

	WeightOrders   float64 `env:"RANKING_WEIGHT_ORDERS" envDefault:"0.5"`
	WeightReviews  float64 `env:"RANKING_WEIGHT_REVIEWS" envDefault:"0.2"`
	WeightWishlist float64 `env:"RANKING_WEIGHT_WISHLIST" envDefault:"0.1"`
	WeightRecency  float64 `env:"RANKING_WEIGHT_RECENCY" envDefault:"0.2"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CatalogBackend {
	case BackendPostgres, BackendElasticsearch, BackendMemory:
	default:
		return fmt.Errorf("config: unknown catalog backend %q", c.CatalogBackend)
	}
	switch c.KVBackend {
	case KVRedis, KVMemory:
	default:
		return fmt.Errorf("config: unknown kv backend %q", c.KVBackend)
	}
	if c.Search.FacetTimeout <= 0 {
		return fmt.Errorf("config: facet timeout must be positive")
	}
	if c.Search.CandidateLimit <= 0 {
		return fmt.Errorf("config: ranking candidate limit must be positive")
	}
	return nil
}

// PostgresDatabaseConfig maps onto the shared pool constructor.
func (c *Config) PostgresDatabaseConfig() database.PostgresConfig {
	return database.PostgresConfig{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		DBName:   c.Postgres.DBName,
		SSLMode:  c.Postgres.SSLMode,
		MaxConns: c.Postgres.MaxConns,
	}
}

// RedisDatabaseConfig maps onto the shared client constructor.
func (c *Config) RedisDatabaseConfig() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.Redis.Host,
		Port:     c.Redis.Port,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}
