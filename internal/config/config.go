package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "widget-tracker"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "widget_tracker"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"

	defaultRedisAddress = "localhost:6379"

	defaultFlushThreshold = 10
	defaultFlushDelayMs   = 2000
	defaultChunkSize      = 5
	defaultChunkPauseMs   = 100
	defaultFlushTimeoutS  = 30

	defaultMaxRetries       = 3
	defaultRetryBaseDelayMs = 1000

	defaultCacheTTLSeconds = 60

	defaultMaxRequestsPerMinute = 120
	defaultWindowSeconds        = 60

	defaultProxyTimeoutS = 30
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Widget    WidgetConfig    `yaml:"widget"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Proxy     ProxyConfig     `yaml:"proxy"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string   `yaml:"name"`
	Version        string   `yaml:"version"`
	Port           int      `env:"WIDGET_TRACKER_PORT" yaml:"port"`
	Debug          bool     `env:"APP_DEBUG"           yaml:"debug"`
	AllowedOrigins []string `env:"WIDGET_CORS_ORIGINS" yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_WIDGET_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_WIDGET_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_WIDGET_USER"     yaml:"user"`
	Password string `env:"POSTGRES_WIDGET_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_WIDGET_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_WIDGET_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the optional content cache configuration.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// WidgetConfig holds the batching, retry, and cache policy for the widget API.
type WidgetConfig struct {
	// FlushThreshold is the distinct-post count that flushes the batcher immediately.
	FlushThreshold int `yaml:"flush_threshold"`
	// FlushDelay is the batcher's inactivity debounce.
	FlushDelay time.Duration `yaml:"flush_delay"`
	// ChunkSize caps concurrent writes per flush chunk.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkPause is the pause between flush chunks.
	ChunkPause time.Duration `yaml:"chunk_pause"`
	// FlushTimeout bounds one flush cycle, retries included.
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	// MaxRetries is the retry count after the first attempt of a store call.
	MaxRetries int `yaml:"max_retries"`
	// RetryBaseDelay is the backoff unit; retry i waits RetryBaseDelay * 2^i.
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// CacheTTL is the lifetime of cached widget payloads.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	WindowSeconds        int `yaml:"window_seconds"`
}

// ProxyConfig holds the chat proxy pass-through configuration.
type ProxyConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return load(path)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setWidgetDefaults(&cfg.Widget)
	setRateLimitDefaults(&cfg.RateLimit)
	setProxyDefaults(&cfg.Proxy)
	setLoggingDefaults(&cfg.Logging)
}

// setServiceDefaults applies default values to ServiceConfig.
func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if len(svc.AllowedOrigins) == 0 {
		// The widget embeds on arbitrary third-party sites.
		svc.AllowedOrigins = []string{"*"}
	}
}

// setDatabaseDefaults applies default values to DatabaseConfig.
func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

// setRedisDefaults applies default values to RedisConfig.
func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

// setWidgetDefaults applies default values to WidgetConfig.
func setWidgetDefaults(w *WidgetConfig) {
	if w.FlushThreshold == 0 {
		w.FlushThreshold = defaultFlushThreshold
	}
	if w.FlushDelay == 0 {
		w.FlushDelay = defaultFlushDelayMs * time.Millisecond
	}
	if w.ChunkSize == 0 {
		w.ChunkSize = defaultChunkSize
	}
	if w.ChunkPause == 0 {
		w.ChunkPause = defaultChunkPauseMs * time.Millisecond
	}
	if w.FlushTimeout == 0 {
		w.FlushTimeout = defaultFlushTimeoutS * time.Second
	}
	if w.MaxRetries == 0 {
		w.MaxRetries = defaultMaxRetries
	}
	if w.RetryBaseDelay == 0 {
		w.RetryBaseDelay = defaultRetryBaseDelayMs * time.Millisecond
	}
	if w.CacheTTL == 0 {
		w.CacheTTL = defaultCacheTTLSeconds * time.Second
	}
}

// setRateLimitDefaults applies default values to RateLimitConfig.
func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxRequestsPerMinute == 0 {
		rl.MaxRequestsPerMinute = defaultMaxRequestsPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

// setProxyDefaults applies default values to ProxyConfig.
func setProxyDefaults(p *ProxyConfig) {
	if p.Timeout == 0 {
		p.Timeout = defaultProxyTimeoutS * time.Second
	}
}

// setLoggingDefaults applies default values to LoggingConfig.
func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := ValidatePort("database.port", c.Database.Port); err != nil {
		return err
	}
	if c.Widget.ChunkSize < 1 {
		return &ValidationError{
			Field:   "widget.chunk_size",
			Message: "must be at least 1",
		}
	}
	if c.Widget.MaxRetries < 0 {
		return &ValidationError{
			Field:   "widget.max_retries",
			Message: "must not be negative",
		}
	}
	return nil
}
