package config

import (
	"os"
	"strconv"
)

// Default fallback point used when a remote row carries no usable location.
const (
	DefaultFallbackLat = 40.8122
	DefaultFallbackLng = 0.5215
)

type Config struct {
	ListenAddr     string
	CacheDBPath    string
	RemoteBackend  string
	PGDSN          string
	DocstoreURL    string
	DocstoreAPIKey string
	Offline        bool
	DefaultLat     float64
	DefaultLng     float64
	DefaultCity    string
	TechUserID     string
	AnthropicKey   string
	AnthropicModel string
	LogLevel       string
	LogFile        string
}

func Load() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":8080"),
		CacheDBPath:    getEnv("CACHE_DB_PATH", "/data/mobilitat.db"),
		RemoteBackend:  getEnv("REMOTE_BACKEND", "pg"),
		PGDSN:          getEnv("PG_DSN", ""),
		DocstoreURL:    getEnv("DOCSTORE_URL", ""),
		DocstoreAPIKey: getEnv("DOCSTORE_API_KEY", ""),
		Offline:        getBool("OFFLINE_MODE"),
		DefaultLat:     getFloat("DEFAULT_LAT", DefaultFallbackLat),
		DefaultLng:     getFloat("DEFAULT_LNG", DefaultFallbackLng),
		DefaultCity:    getEnv("DEFAULT_CITY", "Tortosa"),
		TechUserID:     getEnv("TECH_USER_ID", ""),
		AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func getFloat(key string, defaultVal float64) float64 {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
