package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	JWTIssuer         string
	SessionTTLSeconds int64
	CookieSecure      bool
	CorsOrigins       []string
	AdminAuthMode     string
	TrustProxy        bool

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	LogDir           string
	LogLevel         string
	LogMaxSizeMB     int
	LogRetentionDays int
	SystemDiskPath   string
}

// Admin identity modes.
const (
	AdminAuthCert    = "cert"
	AdminAuthSession = "session"
	AdminAuthEither  = "either"
)

func Load() Config {
	return Config{
		Port:              envOr("PORT", "8080"),
		DatabaseURL:       mustEnv("DATABASE_URL"),
		RedisURL:          envOr("REDIS_URL", ""),
		JWTSecret:         mustEnv("JWT_SECRET"),
		JWTIssuer:         envOr("JWT_ISSUER", "campusevents"),
		SessionTTLSeconds: int64(envOrInt("SESSION_TTL_SECONDS", 3600)),
		CookieSecure:      envOrBool("COOKIE_SECURE", true),
		CorsOrigins:       parseCSV(envOr("CORS_ORIGINS", "")),
		AdminAuthMode:     adminMode(envOr("ADMIN_AUTH_MODE", AdminAuthCert)),
		TrustProxy:        envOrBool("TRUST_PROXY", false),
		SMTPHost:          envOr("SMTP_HOST", ""),
		SMTPPort:          envOrInt("SMTP_PORT", 587),
		SMTPUser:          envOr("SMTP_USER", ""),
		SMTPPassword:      envOr("SMTP_PASSWORD", ""),
		MailFrom:          envOr("MAIL_FROM", "no-reply@campusevents.local"),
		LogDir:            envOr("LOG_DIR", "storage/logs"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		LogMaxSizeMB:      envOrInt("LOG_MAX_SIZE_MB", 50),
		LogRetentionDays:  envOrInt("LOG_RETENTION_DAYS", 7),
		SystemDiskPath:    envOr("SYSTEM_DISK_PATH", "/"),
	}
}

func adminMode(raw string) string {
	switch strings.ToLower(raw) {
	case AdminAuthSession:
		return AdminAuthSession
	case AdminAuthEither:
		return AdminAuthEither
	default:
		return AdminAuthCert
	}
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
