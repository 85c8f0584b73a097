package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"horse.fit/feedsift/internal/dedup"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`

	// SimilarityThreshold is the largest Hamming distance between semantic
	// hashes of two duplicates.
	SimilarityThreshold int `envconfig:"SIMILARITY_THRESHOLD" default:"3"`
	// SimilarityWindowMillis is the largest gap between post times of two
	// duplicates.
	SimilarityWindowMillis int64 `envconfig:"SIMILARITY_WINDOW_MILLISECOND" default:"86400000"`

	APITokenHash       string `envconfig:"API_TOKEN_HASH" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWithDatabase is Load for commands that open the database.
func LoadWithDatabase() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("configuration validation failed: DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.SimilarityThreshold < 0 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be >= 0")
	}
	if c.SimilarityWindowMillis < 1 {
		return fmt.Errorf("SIMILARITY_WINDOW_MILLISECOND must be >= 1")
	}
	return nil
}

// DedupPolicy returns the duplicate classifier configured by
// SIMILARITY_THRESHOLD and SIMILARITY_WINDOW_MILLISECOND.
func (c *Config) DedupPolicy() dedup.Classifier {
	return dedup.Classifier{
		MaxDistance: c.SimilarityThreshold,
		Window:      time.Duration(c.SimilarityWindowMillis) * time.Millisecond,
	}
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
