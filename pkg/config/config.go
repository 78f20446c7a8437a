// Package config provides configuration management for the ledger service
// and CLI. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config represents the application configuration.
type Config struct {
	Store     StoreConfig
	Server    ServerConfig
	Client    ClientConfig
	Log       LogConfig
	Beancount BeancountConfig
	Debug     bool
}

// StoreConfig selects and locates the ledger backend.
type StoreConfig struct {
	Driver        string
	BoltPath      string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Port                int
	RedisURL            string
	IdempotencyTTL      time.Duration
	FailedWriteAttempts int
}

// ClientConfig represents the API client configuration used by the CLI.
type ClientConfig struct {
	APIURL string
}

// LogConfig represents logger configuration.
type LogConfig struct {
	Level  string
	Format string
}

// BeancountConfig represents Beancount export configuration.
type BeancountConfig struct {
	Root    string
	DBPath  string
	Mapping string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	attempts, err := parseIntEnv("FAILED_WRITE_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	ttl, err := parseDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(getEnvOrDefault("LEDGER_STORE", DriverBolt))
	switch driver {
	case DriverBolt, DriverSQLite, DriverMongo:
	default:
		return nil, fmt.Errorf("invalid LEDGER_STORE: %q (want bolt, sqlite or mongo)", driver)
	}

	config := &Config{
		Store: StoreConfig{
			Driver:        driver,
			BoltPath:      getEnvOrDefault("LEDGER_BOLT_PATH", "./data/ledger.db"),
			SQLitePath:    getEnvOrDefault("LEDGER_SQLITE_PATH", "./data/ledger.sqlite"),
			MongoURI:      os.Getenv("MONGO_URI"),
			MongoDatabase: getEnvOrDefault("MONGO_DATABASE", "txn-demo"),
		},
		Server: ServerConfig{
			Port:                port,
			RedisURL:            os.Getenv("REDIS_URL"),
			IdempotencyTTL:      ttl,
			FailedWriteAttempts: attempts,
		},
		Client: ClientConfig{
			APIURL: getEnvOrDefault("LEDGER_API_URL", "http://localhost:8080"),
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		Beancount: BeancountConfig{
			Root:    getEnvOrDefault("BEANCOUNT_ROOT", "./beancount"),
			DBPath:  os.Getenv("BEANCOUNT_DB_PATH"),
			Mapping: getEnvOrDefault("BEANCOUNT_MAPPING", "config/account-mapping.yaml"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) < 2 {
			continue
		}

		var value string
		switch path[0] {
		case "store":
			switch path[1] {
			case "boltPath":
				value = c.Store.BoltPath
			case "sqlitePath":
				value = c.Store.SQLitePath
			case "mongoUri":
				value = c.Store.MongoURI
			case "mongoDatabase":
				value = c.Store.MongoDatabase
			}
		case "server":
			switch path[1] {
			case "redisUrl":
				value = c.Server.RedisURL
			}
		case "client":
			switch path[1] {
			case "apiUrl":
				value = c.Client.APIURL
			}
		case "beancount":
			switch path[1] {
			case "root":
				value = c.Beancount.Root
			case "dbPath":
				value = c.Beancount.DBPath
			case "mapping":
				value = c.Beancount.Mapping
			}
		}

		if value == "" {
			missing = append(missing, strings.Join(path, "."))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// StoreRequirements returns the keys the selected driver needs.
func (c *Config) StoreRequirements() [][]string {
	switch c.Store.Driver {
	case DriverSQLite:
		return [][]string{{"store", "sqlitePath"}}
	case DriverMongo:
		return [][]string{{"store", "mongoUri"}, {"store", "mongoDatabase"}}
	default:
		return [][]string{{"store", "boltPath"}}
	}
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}

	return parsed, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}

	return parsed, nil
}
