package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string
	DBMaxConns  int

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// WebSocket transport keepalive
	WSPingInterval  time.Duration
	WSPongTimeout   time.Duration
	WSWriteTimeout  time.Duration
	WSMaxMessageLen int

	// Disconnect grace window
	ReconnectGracePeriod time.Duration
	GraceSweepInterval   time.Duration

	// Notifications
	NotificationWorkers  int
	ReminderPollInterval time.Duration
	ReminderLeadTime     time.Duration

	// Email
	EmailProvider  string
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	SMTPFrom       string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		DBMaxConns:  getEnvAsIntOrDefault("DB_MAX_CONNS", 25),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		WSPingInterval:  getEnvAsDurationOrDefault("WS_PING_INTERVAL", 25*time.Second),
		WSPongTimeout:   getEnvAsDurationOrDefault("WS_PONG_TIMEOUT", 60*time.Second),
		WSWriteTimeout:  getEnvAsDurationOrDefault("WS_WRITE_TIMEOUT", 10*time.Second),
		WSMaxMessageLen: getEnvAsIntOrDefault("WS_MAX_MESSAGE_BYTES", 64*1024),

		ReconnectGracePeriod: getEnvAsDurationOrDefault("RECONNECT_GRACE_PERIOD", 5*time.Minute),
		GraceSweepInterval:   getEnvAsDurationOrDefault("GRACE_SWEEP_INTERVAL", 60*time.Second),

		NotificationWorkers:  getEnvAsIntOrDefault("NOTIFICATION_WORKERS", 3),
		ReminderPollInterval: getEnvAsDurationOrDefault("REMINDER_POLL_INTERVAL", 5*time.Minute),
		ReminderLeadTime:     getEnvAsDurationOrDefault("REMINDER_LEAD_TIME", 15*time.Minute),

		EmailProvider:  strings.ToLower(getEnvOrDefault("EMAIL_PROVIDER", "smtp")),
		SendGridAPIKey: getEnvOrDefault("SENDGRID_API_KEY", ""),
		SMTPHost:       getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:       getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:       getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:       getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:       getEnvOrDefault("SMTP_FROM", "noreply@lms.local"),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go duration strings ("90s", "5m") or bare seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
