// Package config loads engine configuration from defaults, a .env file,
// environment variables and command-line flags, in increasing priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNeo4j    = "neo4j"
	BackendRedis    = "redis"
)

const (
	DefaultHTTPAddr        = ":8080"
	DefaultMetricsAddr     = ":9090"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultPatternTTL      = 3600
	DefaultMetricsTTL      = 300
	DefaultRiskScoreTTL    = 3600
	DefaultMonitorInterval = 300
	DefaultNeo4jDatabase   = "neo4j"

	minMetricsTTL = 300
	maxMetricsTTL = 600
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	Env         string
	LogLevel    string
	LogFormat   string // "json" or "text"

	GraphBackend  string
	DatabaseURL   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	CacheBackend      string
	RedisURL          string
	PatternTTL        time.Duration
	MetricsTTL        time.Duration
	RiskScoreTTL      time.Duration
	CacheSingleFlight bool

	PatternMinAmount float64 // minimum edge amount for the circular-pattern risk factor

	SigningSecret string // HMAC secret for signed responses (optional)
	OTELEndpoint  string

	MonitorEnabled   bool
	MonitorInterval  time.Duration
	MonitorRulesFile string
}

// flagKeys maps configuration keys to the CLI flags that may override them.
var flagKeys = map[string]string{
	"http_addr":     "http-addr",
	"metrics_addr":  "metrics-addr",
	"log_level":     "log-level",
	"log_format":    "log-format",
	"graph.backend": "graph-backend",
	"cache.backend": "cache-backend",
	"database_url":  "database-url",
	"redis_url":     "redis-url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", DefaultHTTPAddr)
	v.SetDefault("metrics_addr", DefaultMetricsAddr)
	v.SetDefault("env", DefaultEnv)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("graph.backend", BackendMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("neo4j.uri", "")
	v.SetDefault("neo4j.user", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", DefaultNeo4jDatabase)
	v.SetDefault("cache.backend", BackendMemory)
	v.SetDefault("redis_url", "")
	v.SetDefault("cache.pattern_ttl_seconds", DefaultPatternTTL)
	v.SetDefault("cache.metrics_ttl_seconds", DefaultMetricsTTL)
	v.SetDefault("cache.risk_score_ttl_seconds", DefaultRiskScoreTTL)
	v.SetDefault("cache.single_flight", false)
	v.SetDefault("scoring.pattern_min_amount", 0.0)
	v.SetDefault("signing_secret", "")
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval_seconds", DefaultMonitorInterval)
	v.SetDefault("monitor.rules_file", "")
}

// Load builds and validates a Config. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		HTTPAddr:          v.GetString("http_addr"),
		MetricsAddr:       v.GetString("metrics_addr"),
		Env:               v.GetString("env"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		GraphBackend:      v.GetString("graph.backend"),
		DatabaseURL:       v.GetString("database_url"),
		Neo4jURI:          v.GetString("neo4j.uri"),
		Neo4jUser:         v.GetString("neo4j.user"),
		Neo4jPassword:     v.GetString("neo4j.password"),
		Neo4jDatabase:     v.GetString("neo4j.database"),
		CacheBackend:      v.GetString("cache.backend"),
		RedisURL:          v.GetString("redis_url"),
		PatternTTL:        seconds(v.GetInt("cache.pattern_ttl_seconds")),
		MetricsTTL:        seconds(v.GetInt("cache.metrics_ttl_seconds")),
		RiskScoreTTL:      seconds(v.GetInt("cache.risk_score_ttl_seconds")),
		CacheSingleFlight: v.GetBool("cache.single_flight"),
		PatternMinAmount:  v.GetFloat64("scoring.pattern_min_amount"),
		SigningSecret:     v.GetString("signing_secret"),
		OTELEndpoint:      v.GetString("otel_endpoint"),
		MonitorEnabled:    v.GetBool("monitor.enabled"),
		MonitorInterval:   seconds(v.GetInt("monitor.interval_seconds")),
		MonitorRulesFile:  v.GetString("monitor.rules_file"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (c *Config) Validate() error {
	switch c.GraphBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres graph backend")
		}
	case BackendNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required for the neo4j graph backend")
		}
	default:
		return fmt.Errorf("unknown graph backend %q", c.GraphBackend)
	}

	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}

	if c.PatternTTL <= 0 || c.RiskScoreTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.MetricsTTL < seconds(minMetricsTTL) || c.MetricsTTL > seconds(maxMetricsTTL) {
		return fmt.Errorf("CACHE_METRICS_TTL_SECONDS must be within [%d, %d]", minMetricsTTL, maxMetricsTTL)
	}
	if c.PatternMinAmount < 0 {
		return fmt.Errorf("SCORING_PATTERN_MIN_AMOUNT must not be negative")
	}
	if c.MonitorEnabled && c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL_SECONDS must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
