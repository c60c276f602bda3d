package config

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string
	LogLevel    string
	// NodeID identifies this relay on the redis bus; random when empty
	NodeID string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// JWT configuration
	JWTSecret string
	TokenTTL  time.Duration

	FrontendAddress string

	// Realtime channel
	ReconnectDelay    time.Duration
	WSMaxMessageBytes int64
	WSRateLimit       float64
	WSRateBurst       int
	PersistWorkers    int
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("error loading .env file")
		}
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateRandomSecret(32)
		log.Info().Msg("generated random JWT secret")
	}

	AppConfig = Config{
		ServerPort:        getEnv("PORT", "8080"),
		Environment:       getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		NodeID:            getEnv("NODE_ID", ""),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "collaborative_workspace"),
		RedisAddress:      getEnv("REDIS_ADDRESS", "localhost:6379"),
		JWTSecret:         jwtSecret,
		TokenTTL:          getEnvDuration("TOKEN_TTL", 72*time.Hour),
		FrontendAddress:   getEnv("FRONTEND_ADDRESS", "http://localhost:5173"),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 3*time.Second),
		WSMaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
		WSRateLimit:       getEnvFloat("WS_RATE_LIMIT", 50),
		WSRateBurst:       getEnvInt("WS_RATE_BURST", 100),
		PersistWorkers:    getEnvInt("PERSIST_WORKERS", 4),
	}
}

// IsProduction reports whether ENV=production.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("3s") or plain milliseconds ("3000").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
	return defaultValue
}

// generateRandomSecret generates a random secret of the specified length
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	secret := make([]byte, length)
	if _, err := rand.Read(secret); err != nil {
		panic(err)
	}
	for i := range secret {
		secret[i] = charset[int(secret[i])%len(charset)]
	}
	return string(secret)
}
