package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Database drivers understood by NewDB.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Blob backends understood by the container.
const (
	BlobBackendFS    = "fs"
	BlobBackendMinio = "minio"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port            string
		GRPCPort        string
		Env             string
		ShutdownTimeout time.Duration
		OpenAPISchema   string
	}

	Database struct {
		Driver     string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SSLMode    string
		SQLitePath string
		MaxConns   int
		Retries    int
		RetryDelay time.Duration
	}

	Logging struct {
		Level  string
		Format string
	}

	Telegram struct {
		Enabled     bool
		Token       string
		Timeout     time.Duration
		PollTimeout int
		Debug       bool
	}

	Blob struct {
		Backend        string
		Dir            string
		MinioEndpoint  string
		MinioAccessKey string
		MinioSecretKey string
		MinioBucket    string
		MinioUseSSL    bool
	}

	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		DedupTTL time.Duration
	}

	Tasks struct {
		StrictTransitions bool
	}

	Security struct {
		RateLimit      float64
		RateLimitBurst int
		MaxUploadSize  int64
	}

	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}

	Observability struct {
		ServiceName string
		TraceStdout bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the Config instance from environment variables.
// The first call wins; later calls return the same instance.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})
	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load reads a fresh Config from the environment without touching the singleton.
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8000")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9090")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.OpenAPISchema = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", DriverPostgres))
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "service_desk")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.SQLitePath = getEnvString("SQLITE_PATH", "./service_desk.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.RetryDelay = getEnvDuration("DB_CONNECT_RETRY_DELAY", 5*time.Second)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Telegram.Enabled = getEnvBool("TELEGRAM_ENABLED", true)
	cfg.Telegram.Token = getEnvString("TELEGRAM_BOT_TOKEN", "")
	cfg.Telegram.Timeout = getEnvDuration("TELEGRAM_TIMEOUT", 10*time.Second)
	cfg.Telegram.PollTimeout = getEnvInt("TELEGRAM_POLL_TIMEOUT", 60)
	cfg.Telegram.Debug = getEnvBool("TELEGRAM_DEBUG", false)

	cfg.Blob.Backend = strings.ToLower(getEnvString("BLOB_BACKEND", BlobBackendFS))
	cfg.Blob.Dir = getEnvString("BLOB_DIR", "./static/img")
	cfg.Blob.MinioEndpoint = getEnvString("MINIO_ENDPOINT", "localhost:9000")
	cfg.Blob.MinioAccessKey = getEnvString("MINIO_ACCESS_KEY", "")
	cfg.Blob.MinioSecretKey = getEnvString("MINIO_SECRET_KEY", "")
	cfg.Blob.MinioBucket = getEnvString("MINIO_BUCKET", "service-desk")
	cfg.Blob.MinioUseSSL = getEnvBool("MINIO_USE_SSL", false)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)
	cfg.Redis.DedupTTL = getEnvDuration("DEDUP_TTL", 24*time.Hour)

	cfg.Tasks.StrictTransitions = getEnvBool("TASK_STRICT_TRANSITIONS", false)

	cfg.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 20))
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 40)
	cfg.Security.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10<<20)

	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "service-desk")
	cfg.Observability.TraceStdout = getEnvBool("OTEL_STDOUT", false)

	return cfg
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
