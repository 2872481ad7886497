package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	API       APIConfig
	Identity  IdentityConfig
	Storage   StorageConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	DevServer DevServerConfig
}

// APIConfig locates the Rechart API server.
type APIConfig struct {
	URL       string `env:"RECHART_API_URL,    default=https://columns.ai/api"`
	UserAgent string `env:"RECHART_USER_AGENT"`
}

// IdentityConfig locates the identity provider and the landing page of
// sign-in links.
type IdentityConfig struct {
	URL         string `env:"IDENTITY_URL,        default=http://localhost:8080/identity"`
	APIKey      string `env:"IDENTITY_API_KEY"`
	ContinueURL string `env:"SIGNIN_CONTINUE_URL, default=https://rechart.app/signup?userId=1234"`
	LinkDomain  string `env:"SIGNIN_LINK_DOMAIN,  default=rechart.app"`
}

// StorageConfig selects the backend of each persistence namespace:
// memory, redis, mongo or none.
type StorageConfig struct {
	LocalBackend   string `env:"STORAGE_LOCAL_BACKEND,   default=redis"`
	SessionBackend string `env:"STORAGE_SESSION_BACKEND, default=memory"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=rechart"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// DevServerConfig configures the local stand-in for the API server and the
// identity provider.
type DevServerConfig struct {
	Port      string `env:"DEVSERVER_PORT,       default=8080"`
	JWTSecret string `env:"DEVSERVER_JWT_SECRET, default=rechart-dev-secret"`
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	return &cfg, nil
}
