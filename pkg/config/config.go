package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		GRPCPort        string
		Env             string
		Timeout         time.Duration
		ShutdownTimeout time.Duration
		BaseURL         string
	}

	// Store selects the persistence backend: postgres or memory
	Store struct {
		Driver string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
		Retries  int
	}

	// JWT configuration
	JWT struct {
		Secret      string
		ExpiryHours time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		TrustedProxies []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat configuration
	Chat struct {
		StorageRoot    string
		PublicPrefix   string
		DefaultAdminID string
		MaxUploadSize  int64
		SendQueueSize  int
		LiveRate       float64
		LiveBurst      int
	}

	// Relay fans live events out across server instances
	Relay struct {
		// Driver is none, redis or nats
		Driver   string
		RedisURL string
		NatsURL  string
	}

	// Vault configuration
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		MountPath   string
		SecretsPath string
	}

	// Observability configuration
	Observability struct {
		// Traces is none or stdout
		Traces      string
		ServiceName string
		OpenAPISpec string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New returns the process configuration, loaded once from the environment
// and an optional .env file
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()
		instance = Load()
	})

	return instance
}

// Load reads a fresh Config from the environment
func Load() *Config {
	cfg := &Config{}

	// Server config
	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9094")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second)
	cfg.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.Server.Port)

	cfg.Store.Driver = getEnvString("STORE_DRIVER", "postgres")

	// Database config
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "victim_support")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.Database.Retries = getEnvInt("DB_RETRIES", 5)

	// JWT config
	cfg.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
	cfg.JWT.ExpiryHours = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	// Security config
	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", []string{"127.0.0.1"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB outside uploads

	// Logging config
	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	// Chat config
	cfg.Chat.StorageRoot = getEnvString("CHAT_STORAGE_ROOT", "public/uploads")
	cfg.Chat.PublicPrefix = getEnvString("CHAT_PUBLIC_PREFIX", "/uploads")
	cfg.Chat.DefaultAdminID = getEnvString("DEFAULT_ADMIN_ID", "")
	cfg.Chat.MaxUploadSize = getEnvInt64("CHAT_MAX_UPLOAD_SIZE", 10<<20) // 10MB
	cfg.Chat.SendQueueSize = getEnvInt("CHAT_SEND_QUEUE", 256)
	cfg.Chat.LiveRate = getEnvFloat("CHAT_LIVE_RATE", 5)
	cfg.Chat.LiveBurst = getEnvInt("CHAT_LIVE_BURST", 10)

	// Relay config
	cfg.Relay.Driver = getEnvString("RELAY_DRIVER", "none")
	cfg.Relay.RedisURL = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Relay.NatsURL = getEnvString("NATS_URL", "nats://127.0.0.1:4222")

	// Vault config
	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.MountPath = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "victim-support/chat")

	// Observability config
	cfg.Observability.Traces = getEnvString("OTEL_TRACES", "none")
	cfg.Observability.ServiceName = getEnvString("OTEL_SERVICE_NAME", "victim-support-chat")
	cfg.Observability.OpenAPISpec = getEnvString("OPENAPI_SPEC", "api/openapi.yaml")

	return cfg
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
