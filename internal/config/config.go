package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Supported cache store backends.
const (
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheMySQL    = "mysql"
	CacheMongoDB  = "mongodb"
	CacheRedis    = "redis"
	CacheMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Log     LogConfig
	Cache   CacheConfig
	Remote  RemoteConfig
	Refresh RefreshConfig
	Admin   AdminConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"animesync"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"` // text or json
}

// CacheConfig holds cache store settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"sqlite"` // sqlite, postgres, mysql, mongodb, redis, memory
	TTL  time.Duration `envconfig:"FRESHNESS_TTL" default:"1h"`

	// SQLite settings
	Path string `envconfig:"CACHE_DB_PATH" default:"./data/anime.db"`

	// PostgreSQL / MySQL settings
	Host     string `envconfig:"CACHE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"CACHE_DB_PORT" default:"0"`
	Name     string `envconfig:"CACHE_DB_NAME" default:"animesync"`
	User     string `envconfig:"CACHE_DB_USER" default:"animesync"`
	Password string `envconfig:"CACHE_DB_PASS" default:""`
	SSLMode  string `envconfig:"CACHE_DB_SSLMODE" default:"disable"`

	// MongoDB settings
	MongoURI        string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"animesync"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"anime"`

	// Redis settings
	RedisHost      string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort      int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"animesync:anime"`
}

// RemoteConfig holds settings for the Jikan API client.
type RemoteConfig struct {
	BaseURL    string        `envconfig:"JIKAN_BASE_URL" default:"https://api.jikan.moe/v4"`
	Timeout    time.Duration `envconfig:"REMOTE_TIMEOUT" default:"15s"`
	RPS        int           `envconfig:"REMOTE_RPS" default:"3"`
	MaxRetries int           `envconfig:"REMOTE_MAX_RETRIES" default:"0"`
	UserAgent  string        `envconfig:"REMOTE_USER_AGENT" default:"animesync/1.0"`
}

// RefreshConfig holds background refresh settings.
type RefreshConfig struct {
	// Interval between background refreshes of the top collection. Zero disables it.
	Interval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0"`
}

// AdminConfig holds admin endpoint settings.
type AdminConfig struct {
	APIKeys []string `envconfig:"API_KEYS"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *CacheConfig) PostgresDSN() string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, port, c.Name, c.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (c *CacheConfig) MySQLDSN() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&clientFoundRows=true",
		c.User, c.Password, c.Host, port, c.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks values envconfig cannot check on its own.
func (c *Config) Validate() error {
	c.Cache.Type = strings.ToLower(strings.TrimSpace(c.Cache.Type))
	switch c.Cache.Type {
	case CacheSQLite, CachePostgres, CacheMySQL, CacheMongoDB, CacheRedis, CacheMemory:
	case "postgresql":
		c.Cache.Type = CachePostgres
	case "mongo":
		c.Cache.Type = CacheMongoDB
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("FRESHNESS_TTL must be positive, got %v", c.Cache.TTL)
	}
	if c.Remote.RPS <= 0 {
		return fmt.Errorf("REMOTE_RPS must be positive, got %d", c.Remote.RPS)
	}
	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("REMOTE_MAX_RETRIES must not be negative, got %d", c.Remote.MaxRetries)
	}
	if c.Refresh.Interval < 0 {
		return fmt.Errorf("REFRESH_INTERVAL must not be negative, got %v", c.Refresh.Interval)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
