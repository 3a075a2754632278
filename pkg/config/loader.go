package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from environment variables using `env` struct tags.
// Nested structs group related settings with an envPrefix tag, which is how
// the service keeps backend settings (POSTGRES_*, REDIS_*, ELASTICSEARCH_*)
// apart.
//
// Example:
//
//	type Config struct {
//	    CatalogBackend string        `env:"CATALOG_BACKEND" envDefault:"postgres"`
//	    SearchCacheTTL time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"5m"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
