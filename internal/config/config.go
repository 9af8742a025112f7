package config

import (
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port   string
	DBPath string

	LogLevel string

	// Detection
	Workers     int
	Seed        int64
	Trees       int
	MaxSamples  int
	MinHistory  int
	ConstantStd float64
}

// Load reads an optional .env file, then the environment. Invalid numeric
// values fall back to their defaults.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "glrecon.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Workers:     getEnvInt("DETECTION_WORKERS", runtime.NumCPU()),
		Seed:        int64(getEnvInt("DETECTION_SEED", 0)),
		Trees:       getEnvInt("DETECTION_TREES", 100),
		MaxSamples:  getEnvInt("DETECTION_MAX_SAMPLES", 256),
		MinHistory:  getEnvInt("MIN_HISTORY", 3),
		ConstantStd: getEnvFloat("CONSTANT_STD_THRESHOLD", 1.0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
