package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory  = "memory"
	BackendSurreal = "surreal"
	BackendRedis   = "redis"
)

// Provider exposes configuration values to the rest of the application.
type Provider interface {
	GetServerAddr() string
	GetStoreBackend() string
	GetDBURL() string
	GetDBNs() string
	GetDBDb() string
	GetDBUser() string
	GetDBPass() string
	GetDBQueryTimeout() time.Duration
	GetDBExecuteTimeout() time.Duration
	GetRedisURL() string
	GetJWTSecret() string
	GetSessionSecret() string
	GetDevTokens() bool
	GetReplyDelay() time.Duration
	GetWriteTimeout() time.Duration
}

// Config holds all configuration for the application.
type Config struct {
	ServerAddr   string
	StoreBackend string

	DBUrl            string
	DBNs             string
	DBDb             string
	DBUser           string
	DBPass           string
	DBQueryTimeout   time.Duration
	DBExecuteTimeout time.Duration

	RedisURL string

	JWTSecret     string
	SessionSecret string
	DevTokens     bool

	ReplyDelay   time.Duration
	WriteTimeout time.Duration
}

var _ Provider = (*Config)(nil)

// Load reads configuration from the environment, loading a .env file first
// when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		StoreBackend:  getEnv("STORE_BACKEND", BackendMemory),
		DBUrl:         os.Getenv("SURREAL_URL"),
		DBNs:          os.Getenv("SURREAL_NS"),
		DBDb:          os.Getenv("SURREAL_DB"),
		DBUser:        os.Getenv("SURREAL_USER"),
		DBPass:        os.Getenv("SURREAL_PASS"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
	}

	var err error
	if cfg.DBQueryTimeout, err = getDuration("DB_QUERY_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBExecuteTimeout, err = getDuration("DB_EXECUTE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReplyDelay, err = getDuration("REPLY_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getDuration("WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if v := os.Getenv("AUTH_DEV_TOKENS"); v != "" {
		if cfg.DevTokens, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid AUTH_DEV_TOKENS %q: %w", v, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendSurreal:
		if c.DBUrl == "" || c.DBNs == "" || c.DBDb == "" {
			return fmt.Errorf("required environment variables SURREAL_URL, SURREAL_NS, or SURREAL_DB are not set")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("required environment variable JWT_SECRET is not set")
	}
	if c.SessionSecret == "" {
		c.SessionSecret = c.JWTSecret
	}
	if c.ReplyDelay < 0 {
		return fmt.Errorf("REPLY_DELAY must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func (c *Config) GetServerAddr() string              { return c.ServerAddr }
func (c *Config) GetStoreBackend() string            { return c.StoreBackend }
func (c *Config) GetDBURL() string                   { return c.DBUrl }
func (c *Config) GetDBNs() string                    { return c.DBNs }
func (c *Config) GetDBDb() string                    { return c.DBDb }
func (c *Config) GetDBUser() string                  { return c.DBUser }
func (c *Config) GetDBPass() string                  { return c.DBPass }
func (c *Config) GetDBQueryTimeout() time.Duration   { return c.DBQueryTimeout }
func (c *Config) GetDBExecuteTimeout() time.Duration { return c.DBExecuteTimeout }
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetJWTSecret() string               { return c.JWTSecret }
func (c *Config) GetSessionSecret() string           { return c.SessionSecret }
func (c *Config) GetDevTokens() bool                 { return c.DevTokens }
func (c *Config) GetReplyDelay() time.Duration       { return c.ReplyDelay }
func (c *Config) GetWriteTimeout() time.Duration     { return c.WriteTimeout }
