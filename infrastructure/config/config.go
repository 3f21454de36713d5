package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageBadger   = "badger"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StorageDynamoDB = "dynamodb"
)

// Photo backends
const (
	PhotoLocal = "local"
	PhotoGCS   = "gcs"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress   string        `yaml:"server_address"`
	Environment     string        `yaml:"environment"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Storage
	StorageBackend string `yaml:"storage_backend"`
	DataDir        string `yaml:"data_dir"`
	TreeKey        string `yaml:"tree_key"`
	ViewStateKey   string `yaml:"view_state_key"`
	SQLitePath     string `yaml:"sqlite_path"`

	// Redis storage and event fan-out
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	EventsChannel string `yaml:"events_channel"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	DynamoDBTable    string `yaml:"dynamodb_table"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`

	// Photos
	PhotoBackend       string `yaml:"photo_backend"`
	PhotoDir           string `yaml:"photo_dir"`
	GCSBucket          string `yaml:"gcs_bucket"`
	GCSPrefix          string `yaml:"gcs_prefix"`
	GCSCredentialsFile string `yaml:"gcs_credentials_file"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Feature flags
	EnableAuth           bool     `yaml:"enable_auth"`
	EnableMetrics        bool     `yaml:"enable_metrics"`
	EnableTracing        bool     `yaml:"enable_tracing"`
	OTLPEndpoint         string   `yaml:"otlp_endpoint"`
	OTLPInsecure         bool     `yaml:"otlp_insecure"`
	EnableCORS           bool     `yaml:"enable_cors"`
	CORSOrigins          []string `yaml:"cors_origins"`
	EnableCircuitBreaker bool     `yaml:"enable_circuit_breaker"`

	// Background saves
	SaveMaxRetries   int           `yaml:"save_max_retries"`
	SaveRetryBackoff time.Duration `yaml:"save_retry_backoff"`
	SaveWriteTimeout time.Duration `yaml:"save_write_timeout"`
	LoadTimeout      time.Duration `yaml:"load_timeout"`

	// ConfigFile is the YAML file the values were read from, if any.
	ConfigFile string `yaml:"-"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		ServerAddress:    ":8080",
		Environment:      "development",
		ShutdownTimeout:  15 * time.Second,
		LogLevel:         "info",
		StorageBackend:   StorageFile,
		DataDir:          "./data",
		TreeKey:          "gentree:tree",
		ViewStateKey:     "gentree:viewstate",
		RedisPrefix:      "",
		EventsChannel:    "gentree:events",
		AWSRegion:        "us-west-2",
		DynamoDBTable:    "gentree",
		PhotoBackend:     PhotoLocal,
		PhotoDir:         "./data/images",
		JWTIssuer:        "gentree",
		EnableMetrics:    true,
		EnableCORS:       true,
		CORSOrigins:      []string{"*"},
		SaveMaxRetries:   3,
		SaveRetryBackoff: 200 * time.Millisecond,
		SaveWriteTimeout: 5 * time.Second,
		LoadTimeout:      10 * time.Second,
	}
}

// LoadConfig loads configuration from the YAML file named by GENTREE_CONFIG
// (if any) and then from environment variables. Environment wins.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("GENTREE_CONFIG"))
}

// Load reads path (optional) and the environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", c.StorageBackend))
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.TreeKey = getEnv("TREE_KEY", c.TreeKey)
	c.ViewStateKey = getEnv("VIEW_STATE_KEY", c.ViewStateKey)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisPrefix = getEnv("REDIS_PREFIX", c.RedisPrefix)
	c.EventsChannel = getEnv("EVENTS_CHANNEL", c.EventsChannel)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)

	c.PhotoBackend = strings.ToLower(getEnv("PHOTO_BACKEND", c.PhotoBackend))
	c.PhotoDir = getEnv("PHOTO_DIR", c.PhotoDir)
	c.GCSBucket = getEnv("GCS_BUCKET", c.GCSBucket)
	c.GCSPrefix = getEnv("GCS_PREFIX", c.GCSPrefix)
	c.GCSCredentialsFile = getEnv("GCS_CREDENTIALS_FILE", c.GCSCredentialsFile)

	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.EnableAuth = getEnvBool("ENABLE_AUTH", c.EnableAuth)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.OTLPInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", c.OTLPInsecure)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.EnableCircuitBreaker = getEnvBool("ENABLE_CIRCUIT_BREAKER", c.EnableCircuitBreaker)

	c.SaveMaxRetries = getEnvInt("SAVE_MAX_RETRIES", c.SaveMaxRetries)
	c.SaveRetryBackoff = getEnvDuration("SAVE_RETRY_BACKOFF", c.SaveRetryBackoff)
	c.SaveWriteTimeout = getEnvDuration("SAVE_WRITE_TIMEOUT", c.SaveWriteTimeout)
	c.LoadTimeout = getEnvDuration("LOAD_TIMEOUT", c.LoadTimeout)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.TreeKey == "" || c.ViewStateKey == "" {
		return fmt.Errorf("TREE_KEY and VIEW_STATE_KEY must not be empty")
	}
	if c.TreeKey == c.ViewStateKey {
		return fmt.Errorf("TREE_KEY and VIEW_STATE_KEY must differ")
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageFile, StorageBadger:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for %s storage", c.StorageBackend)
		}
	case StorageSQLite:
		if c.SQLitePath == "" && c.DataDir == "" {
			return fmt.Errorf("SQLITE_PATH or DATA_DIR is required for sqlite storage")
		}
	case StorageRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for redis storage")
		}
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for dynamodb storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.PhotoBackend {
	case PhotoLocal:
		if c.PhotoDir == "" {
			return fmt.Errorf("PHOTO_DIR is required for local photos")
		}
	case PhotoGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for gcs photos")
		}
	default:
		return fmt.Errorf("unknown PHOTO_BACKEND %q", c.PhotoBackend)
	}

	if c.SaveMaxRetries < 0 {
		return fmt.Errorf("SAVE_MAX_RETRIES must not be negative")
	}
	if c.EnableAuth && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when auth is enabled")
	}
	if c.IsProduction() && c.EnableAuth && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}
	return nil
}

// ResolvedSQLitePath returns SQLITE_PATH or a file inside DATA_DIR.
func (c *Config) ResolvedSQLitePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return strings.TrimRight(c.DataDir, "/") + "/gentree.db"
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "":
		return defaultValue
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("250ms") or whole milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
