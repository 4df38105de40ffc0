package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string // Required: issuer claim for tokens
	AccessSecret  string // Required: HS256 secret for access tokens
	RefreshSecret string // Required: HS256 secret for refresh tokens
	AccessTTL     string // Optional: access token lifetime, e.g. "15m" (default: 15m)
	RefreshTTL    string // Optional: refresh token lifetime, e.g. "7d" (default: 7d)
	SingleSession bool   // Optional: evict previous refresh token on login (default: false)

	DatabaseFile string // Optional: path to SQLite database file (default: ./chat.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	RedisAddr     string // Optional: redis address; empty means in-memory kv (dev only)
	RedisPassword string // Optional: redis password
	RedisDB       int    // Optional: redis database number (default: 0)

	WSInsecureOrigin bool // Optional: skip websocket origin check (default: false, dev only)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	DeletedRetention     time.Duration // How long soft-deleted messages are kept (default: 30 days)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:        getEnvOrDefault("CHAT_ISSUER", "whisper-chat"),
		AccessSecret:  os.Getenv("CHAT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("CHAT_REFRESH_SECRET"),
		AccessTTL:     getEnvOrDefault("CHAT_ACCESS_TTL", "15m"),
		RefreshTTL:    getEnvOrDefault("CHAT_REFRESH_TTL", "7d"),
		SingleSession: getEnvBoolOrDefault("CHAT_SINGLE_SESSION", false),

		DatabaseFile: getEnvOrDefault("CHAT_DATABASE_FILE", "chat.db"),
		PepperFile:   getEnvOrDefault("CHAT_PEPPER_FILE", "pepper"),

		RedisAddr:     os.Getenv("CHAT_REDIS_ADDR"),
		RedisPassword: os.Getenv("CHAT_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("CHAT_REDIS_DB", 0),

		WSInsecureOrigin: getEnvBoolOrDefault("CHAT_WS_INSECURE_ORIGIN", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		DeletedRetention:     getEnvDurationOrDefault("CHAT_DELETED_RETENTION", 30*24*time.Hour),
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
