package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	CORSOrigin string
	// Advisory feedback endpoint
	FeedbackURL     string
	FeedbackToken   string
	FeedbackTimeout time.Duration
	// Editing sessions
	SessionTTL time.Duration
	RedisURL   string
	// Git snapshot archive; empty disables archiving
	ArchiveDir string
}

func Load() Config {
	return Config{
		Addr:            getenv("API_ADDR", ":8686"),
		CORSOrigin:      getenv("SCRIPTLAB_CORS_ORIGIN", "*"),
		FeedbackURL:     getenv("SCRIPTLAB_FEEDBACK_URL", ""),
		FeedbackToken:   getenv("SCRIPTLAB_FEEDBACK_TOKEN", ""),
		FeedbackTimeout: time.Duration(getenvInt("SCRIPTLAB_FEEDBACK_TIMEOUT_SECONDS", 30)) * time.Second,
		SessionTTL:      time.Duration(getenvInt("SCRIPTLAB_SESSION_TTL_SECONDS", 86400)) * time.Second,
		// Redis - empty means sessions live in process memory only
		RedisURL:   getenv("REDIS_URL", ""),
		ArchiveDir: getenv("SCRIPTLAB_ARCHIVE_DIR", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
