package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"
)

type Config struct {
	Server Server `yaml:"server"`
	Auth   Auth   `yaml:"auth"`
}

type Server struct {
	Listen        string  `yaml:"listen"`
	Storage       string  `yaml:"storage"` // postgres, memory
	PostgresDsn   string  `yaml:"postgresDsn"`
	RedisAddr     string  `yaml:"redisAddr"`
	RedisPassword string  `yaml:"redisPassword"`
	RedisDB       int     `yaml:"redisDB"`
	MemcachedAddr string  `yaml:"memcachedAddr"`
	EnableTrace   bool    `yaml:"enableTrace"`
	TraceEndpoint string  `yaml:"traceEndpoint"`
	RateLimit     float64 `yaml:"rateLimit"` // write requests per second per requester, negative disables
	RateBurst     int     `yaml:"rateBurst"`
	LogLevel      string  `yaml:"logLevel"`
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Load reads the yaml file at path. An empty path skips the file so the service
// can be configured from the environment alone.
func Load(path string) (Config, error) {
	var config Config

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, errors.Wrap(err, "failed to decode config")
		}
	}

	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8000"
	}
	if c.Server.Storage == "" {
		c.Server.Storage = StoragePostgres
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 5
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 10
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"CHRONOBIT_LISTEN":         &c.Server.Listen,
		"CHRONOBIT_STORAGE":        &c.Server.Storage,
		"CHRONOBIT_POSTGRES_DSN":   &c.Server.PostgresDsn,
		"CHRONOBIT_REDIS_ADDR":     &c.Server.RedisAddr,
		"CHRONOBIT_REDIS_PASSWORD": &c.Server.RedisPassword,
		"CHRONOBIT_MEMCACHED_ADDR": &c.Server.MemcachedAddr,
		"CHRONOBIT_TRACE_ENDPOINT": &c.Server.TraceEndpoint,
		"CHRONOBIT_LOG_LEVEL":      &c.Server.LogLevel,
		"CHRONOBIT_JWT_SECRET":     &c.Auth.JWTSecret,
		"CHRONOBIT_JWT_ISSUER":     &c.Auth.Issuer,
		"CHRONOBIT_JWT_AUDIENCE":   &c.Auth.Audience,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("CHRONOBIT_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "CHRONOBIT_REDIS_DB")
		}
		c.Server.RedisDB = db
	}
	if v, ok := os.LookupEnv("CHRONOBIT_ENABLE_TRACE"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "CHRONOBIT_ENABLE_TRACE")
		}
		c.Server.EnableTrace = enabled
	}
	return nil
}

func (c Config) Validate() error {
	switch c.Server.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.Server.PostgresDsn == "" {
			return fmt.Errorf("postgresDsn is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Server.Storage)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required")
	}
	if c.Server.EnableTrace && c.Server.TraceEndpoint == "" {
		return fmt.Errorf("traceEndpoint is required when tracing is enabled")
	}
	if c.Server.RateBurst < 0 {
		return fmt.Errorf("rateBurst must not be negative")
	}
	return nil
}
