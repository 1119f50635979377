package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	OpenAI   OpenAIConfig
	Worker   WorkerConfig
	MongoDB  MongoDBConfig
	InfluxDB InfluxDBConfig
	Storage  StorageConfig
	S3       S3Config
	Email    EmailConfig
	JWT      JWTConfig
	DemoMode bool // Use the offline template analyzer instead of OpenAI
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    string
	Host    string
	GinMode string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // Optional: OpenAI-compatible endpoint
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	IdleWait            time.Duration // Poll interval while the queue is empty
	ErrorBackoff        time.Duration // Pause after an unexpected loop error
	MaxTaskDuration     time.Duration // Watchdog ceiling, 0 disables
	StatusRetention     time.Duration // How long terminal statuses are kept
	MaintenanceSchedule string        // Cron spec with seconds
}

// MongoDBConfig holds MongoDB connection details
type MongoDBConfig struct {
	URI        string
	Username   string
	Password   string
	Host       string
	Port       string
	Database   string
	Collection string
	AuthSource string // Database to authenticate against (default: admin)
}

// Enabled reports whether a MongoDB connection was configured
func (c MongoDBConfig) Enabled() bool {
	return c.URI != "" || c.Host != ""
}

// InfluxDBConfig holds InfluxDB connection details for task telemetry
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether task telemetry should be written
func (c InfluxDBConfig) Enabled() bool {
	return c.URL != "" && c.Token != ""
}

// StorageConfig holds local report storage configuration
type StorageConfig struct {
	BasePath string
	BaseURL  string // Base URL for serving files (e.g., http://localhost:8085/storage)
}

// S3Config holds S3 connection details
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for S3-compatible services like MinIO
}

// Enabled reports whether reports should be stored in S3
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// EmailConfig holds SendGrid email configuration
type EmailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string
	TTL       time.Duration
	DevTokens bool // Serve POST /api/auth/token, which signs a token for any user id
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8085"),
			Host:    getEnv("HOST", "0.0.0.0"),
			GinMode: getEnv("GIN_MODE", "release"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.3),
			MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 0), // 0 means no limit (or use max for model)
			Timeout:     getEnvDuration("OPENAI_TIMEOUT", 120*time.Second),
		},
		Worker: WorkerConfig{
			IdleWait:            getEnvDuration("WORKER_IDLE_WAIT", time.Second),
			ErrorBackoff:        getEnvDuration("WORKER_ERROR_BACKOFF", 5*time.Second),
			MaxTaskDuration:     getEnvDuration("WORKER_MAX_TASK_DURATION", 15*time.Minute),
			StatusRetention:     getEnvDuration("WORKER_STATUS_RETENTION", 24*time.Hour),
			MaintenanceSchedule: getEnv("WORKER_MAINTENANCE_SCHEDULE", "0 */1 * * * *"),
		},
		MongoDB: MongoDBConfig{
			URI:        getEnv("MONGODB_URI", ""),
			Username:   getEnv("MONGODB_USERNAME", ""),
			Password:   getEnv("MONGODB_PASSWORD", ""),
			Host:       getEnv("MONGODB_HOST", ""),
			Port:       getEnv("MONGODB_PORT", "27017"),
			Database:   getEnv("MONGODB_DATABASE", "research"),
			Collection: getEnv("MONGODB_COLLECTION", "strategies"),
			AuthSource: getEnv("MONGODB_AUTH_SOURCE", "admin"),
		},
		InfluxDB: InfluxDBConfig{
			URL:    getEnv("INFLUXDB2_URL", ""),
			Token:  getEnv("INFLUXDB2_TOKEN", ""),
			Org:    getEnv("INFLUXDB2_ORG", ""),
			Bucket: getEnv("INFLUXDB2_BUCKET", ""),
		},
		Storage: StorageConfig{
			BasePath: getEnv("STORAGE_BASE_PATH", "./storage"),
			BaseURL:  getEnv("STORAGE_BASE_URL", "http://localhost:8085/storage"),
		},
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""), // Optional for MinIO/custom S3
		},
		Email: EmailConfig{
			APIKey:    getEnv("SENDGRID_API_KEY", ""),
			FromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
			FromName:  getEnv("SENDGRID_FROM_NAME", "Idea Research"),
		},
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			TTL:       getEnvDuration("JWT_TTL", 24*time.Hour),
			DevTokens: getEnvBool("JWT_DEV_TOKENS", false),
		},
		DemoMode: getEnvBool("DEMO_MODE", false),
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates that required configuration values are present
func ValidateConfig(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if config.Worker.IdleWait <= 0 {
		return fmt.Errorf("WORKER_IDLE_WAIT must be positive")
	}
	if config.Worker.ErrorBackoff < 0 {
		return fmt.Errorf("WORKER_ERROR_BACKOFF must not be negative")
	}
	if config.Worker.MaxTaskDuration < 0 {
		return fmt.Errorf("WORKER_MAX_TASK_DURATION must not be negative")
	}
	if !config.DemoMode && config.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required (or set DEMO_MODE=true)")
	}
	if config.S3.Enabled() && (config.S3.AccessKeyID == "" || config.S3.SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET is set")
	}
	if config.JWT.Secret != "" && len(config.JWT.Secret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if config.JWT.DevTokens && config.JWT.Secret == "" {
		return fmt.Errorf("JWT_DEV_TOKENS requires JWT_SECRET")
	}
	return nil
}

// Helper functions for environment variable access
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
