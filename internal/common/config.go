package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Server      ServerConfig
	OCR         OCRConfig
	Recognition RecognitionConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string // postgres | sqlite
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string
	HTTPAddr       string
	MaxUploadBytes int64
}

// OCRConfig holds local recognizer configuration
type OCRConfig struct {
	TesseractLang       string
	TessdataDir         string
	EnableTSVConfidence bool
}

// RecognitionConfig holds the primary (remote) recognizer configuration.
// An empty URL disables the primary path.
type RecognitionConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:       getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:       getEnv("HTTP_ADDR", ":8081"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", constants.MaxDocumentBytes),
		},
		OCR: OCRConfig{
			TesseractLang:       getEnv("TESSERACT_LANG", "spa+deu"),
			TessdataDir:         getEnv("TESSDATA_PREFIX", ""),
			EnableTSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", true),
		},
		Recognition: RecognitionConfig{
			URL:     getEnv("RECOGNITION_URL", ""),
			APIKey:  getEnv("RECOGNITION_API_KEY", ""),
			Timeout: getEnvAsDuration("RECOGNITION_TIMEOUT", 45*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Server.MaxUploadBytes <= 0 || c.Server.MaxUploadBytes > constants.MaxDocumentBytes {
		return NewAppError("CONFIG_ERROR", "MAX_UPLOAD_BYTES must be between 1 and 10 MiB", ErrInvalidInput)
	}
	if c.Recognition.URL != "" && c.Recognition.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "RECOGNITION_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}
