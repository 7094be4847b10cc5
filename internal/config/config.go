package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment.
type Config struct {
	HTTPPort        string
	MongoURI        string
	MongoDB         string
	RedisAddr       string
	JWTSecret       string
	TeacherPassword string
}

// Load reads configuration from a .env file (if present) and the
// environment. Every field has a development default except the secrets,
// which fall back to insecure values only suitable for local use.
func Load() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "livepoll"),
		RedisAddr:       normalizeRedisAddr(getEnv("REDIS_ADDR", "localhost:6379")),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		TeacherPassword: getEnv("TEACHER_PASSWORD", "teacher123"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func normalizeRedisAddr(addr string) string {
	return strings.TrimPrefix(addr, "redis://")
}
