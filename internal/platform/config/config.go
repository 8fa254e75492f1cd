package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration. Values come from an optional YAML
// file first, then environment variables override individual fields so
// containerized deploys stay twelve-factor.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Badger   BadgerConfig   `yaml:"badger"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Registry RegistryConfig `yaml:"registry"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Update   UpdateConfig   `yaml:"update"`

	// FilteringDisabled switches the whole engine off: scheduled cycles
	// select nothing, though forced manual updates still run.
	FilteringDisabled bool `yaml:"filtering_disabled"`
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	JWTSigningKey   string        `yaml:"jwt_signing_key"`
	JWTIssuer       string        `yaml:"jwt_issuer"`
	JWTAudience     string        `yaml:"jwt_audience"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// PostgresConfig configures the version store. An empty URL selects the
// in-memory store.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

// RedisConfig configures the consent store. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// BadgerConfig configures the on-disk filter content store. An empty Path
// with InMemory false selects the in-memory store.
type BadgerConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// KafkaConfig configures engine update event publishing. Empty Brokers
// disables Kafka and falls back to log-only notification.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RegistryConfig points at the remote filter catalog.
type RegistryConfig struct {
	IndexURL  string        `yaml:"index_url"`
	Optimized bool          `yaml:"optimized"`
	TTL       time.Duration `yaml:"ttl"`
}

// FetchConfig bounds outbound list downloads. Conditions are the platform
// identifiers that evaluate to true in !#if directives of downloaded lists.
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	UserAgent     string        `yaml:"user_agent"`
	Conditions    []string      `yaml:"conditions"`
}

// UpdateConfig drives the periodic update scheduler and the cycle itself.
// Period zero disables the scheduler. UseListExpiry makes staleness follow
// each list's own Expires TTL instead of the fixed period; the scheduler
// then ticks at CheckInterval to re-evaluate.
type UpdateConfig struct {
	Period         time.Duration `yaml:"period"`
	UseListExpiry  bool          `yaml:"use_list_expiry"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	OnStart        bool          `yaml:"on_start"`
	Concurrency    int           `yaml:"concurrency"`
	RecencyWindow  time.Duration `yaml:"recency_window"`
	DebounceWindow time.Duration `yaml:"debounce_window"`
}

// Load reads the YAML file at SIEVE_CONFIG_FILE when set, then applies
// environment overrides. A missing env var never clears a file value.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("SIEVE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone so main stays lean.
func FromEnv() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			JWTIssuer:       "sieve",
			JWTAudience:     "sieve-api",
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: "sieve.engine.updates",
		},
		Registry: RegistryConfig{
			IndexURL: "https://filters.sieve.dev/index.json",
			TTL:      time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:       60 * time.Second,
			MaxBodyBytes:  128 << 20,
			RatePerSecond: 5,
			UserAgent:     "sieve/1.0",
			Conditions:    []string{"sieve"},
		},
		Update: UpdateConfig{
			Period:         24 * time.Hour,
			CheckInterval:  time.Hour,
			Concurrency:    8,
			RecencyWindow:  5 * time.Minute,
			DebounceWindow: 200 * time.Millisecond,
		},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SIEVE_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "SIEVE_SHUTDOWN_TIMEOUT")
	setString(&cfg.Server.JWTSigningKey, "SIEVE_JWT_SIGNING_KEY")
	setString(&cfg.Server.JWTIssuer, "SIEVE_JWT_ISSUER")
	setString(&cfg.Server.JWTAudience, "SIEVE_JWT_AUDIENCE")

	setString(&cfg.Log.Format, "SIEVE_LOG_FORMAT")
	setString(&cfg.Log.Level, "SIEVE_LOG_LEVEL")

	setString(&cfg.Postgres.URL, "SIEVE_POSTGRES_URL")
	setString(&cfg.Redis.URL, "SIEVE_REDIS_URL")

	setString(&cfg.Badger.Path, "SIEVE_BADGER_PATH")
	setBool(&cfg.Badger.InMemory, "SIEVE_BADGER_IN_MEMORY")
	setBool(&cfg.Badger.SyncWrites, "SIEVE_BADGER_SYNC_WRITES")

	if v := os.Getenv("SIEVE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitAndTrim(v)
	}
	setString(&cfg.Kafka.Topic, "SIEVE_KAFKA_TOPIC")

	setString(&cfg.Registry.IndexURL, "SIEVE_REGISTRY_URL")
	setBool(&cfg.Registry.Optimized, "SIEVE_REGISTRY_OPTIMIZED")
	setDuration(&cfg.Registry.TTL, "SIEVE_REGISTRY_TTL")

	setDuration(&cfg.Fetch.Timeout, "SIEVE_FETCH_TIMEOUT")
	setInt64(&cfg.Fetch.MaxBodyBytes, "SIEVE_FETCH_MAX_BODY_BYTES")
	setFloat(&cfg.Fetch.RatePerSecond, "SIEVE_FETCH_RATE_PER_SECOND")
	setString(&cfg.Fetch.UserAgent, "SIEVE_FETCH_USER_AGENT")
	if v := os.Getenv("SIEVE_FETCH_CONDITIONS"); v != "" {
		cfg.Fetch.Conditions = splitAndTrim(v)
	}

	setDuration(&cfg.Update.Period, "SIEVE_UPDATE_PERIOD")
	setBool(&cfg.Update.UseListExpiry, "SIEVE_UPDATE_USE_LIST_EXPIRY")
	setDuration(&cfg.Update.CheckInterval, "SIEVE_UPDATE_CHECK_INTERVAL")
	setBool(&cfg.Update.OnStart, "SIEVE_UPDATE_ON_START")
	setInt(&cfg.Update.Concurrency, "SIEVE_UPDATE_CONCURRENCY")
	setDuration(&cfg.Update.RecencyWindow, "SIEVE_UPDATE_RECENCY_WINDOW")
	setDuration(&cfg.Update.DebounceWindow, "SIEVE_UPDATE_DEBOUNCE_WINDOW")

	setBool(&cfg.FilteringDisabled, "SIEVE_FILTERING_DISABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
