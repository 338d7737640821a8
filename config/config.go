package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort      string
	Environment     string
	LogLevel        string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64

	// Job ledger
	DatabaseURL string
	JobDBPath   string

	// Artifacts
	DataDir         string
	ArtifactBackend string
	S3Bucket        string
	S3Prefix        string
	AWSRegion       string

	// Auth
	APIKeysFile string

	// Training
	TrainingWorkers int
	ModelCacheSize  int
}

// Load loads configuration from environment variables, reading a .env file first if present
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8000"),
		Environment:     getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 100)) << 20,

		DatabaseURL: getEnv("DATABASE_URL", ""),
		JobDBPath:   getEnv("JOB_DB_PATH", dataDir+"/jobs.db"),

		DataDir:         dataDir,
		ArtifactBackend: getEnv("ARTIFACT_BACKEND", "fs"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", "ml-service"),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),

		APIKeysFile: getEnv("API_KEYS_FILE", "api_keys.yaml"),

		TrainingWorkers: getEnvAsInt("TRAINING_WORKERS", 2),
		ModelCacheSize:  getEnvAsInt("MODEL_CACHE_SIZE", 32),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
