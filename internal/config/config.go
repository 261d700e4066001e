package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Weather provider (QWeather互換API)
	QWeatherAPIKey  string
	QWeatherBase    string
	QWeatherGeo     string
	WeatherTimeout  time.Duration
	WeatherCacheTTL time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFromName string

	// Advice (LLM)
	GeminiAPIKey string
	GeminiBase   string
	GeminiModel  string

	// Dispatch worker
	DispatchInterval  time.Duration
	DispatchBatchSize int

	// Quota / Throttle
	RateLimitEnabled   bool
	DailyQuota         int
	MinSendInterval    time.Duration
	LocalTZOffsetHours int

	// Retention
	NotificationRetentionDays int

	// Rate Limit (HTTP)
	RateLimitGeneral int
	RateLimitSend    int

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.QWeatherAPIKey = os.Getenv("QWEATHER_API_KEY")
	if cfg.QWeatherAPIKey == "" {
		missing = append(missing, "QWEATHER_API_KEY")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}

	cfg.SMTPUser = os.Getenv("SMTP_USER")
	if cfg.SMTPUser == "" {
		missing = append(missing, "SMTP_USER")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.QWeatherBase = getEnvString("QWEATHER_BASE", "https://devapi.qweather.com")
	cfg.QWeatherGeo = getEnvString("QWEATHER_GEO", "https://geoapi.qweather.com")
	cfg.WeatherTimeout = getEnvDuration("WEATHER_TIMEOUT", 12*time.Second)
	cfg.WeatherCacheTTL = getEnvDuration("WEATHER_CACHE_TTL", 60*time.Second)

	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.MailFromName = getEnvString("MAIL_FROM_NAME", "Weatherpost")

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiBase = getEnvString("GEMINI_BASE", "https://generativelanguage.googleapis.com")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash")

	cfg.DispatchInterval = getEnvDuration("DISPATCH_INTERVAL", 60*time.Second)
	cfg.DispatchBatchSize = getEnvInt("DISPATCH_BATCH_SIZE", 20)

	cfg.RateLimitEnabled = getEnvBool("RATE_LIMIT_ENABLED", false)
	cfg.DailyQuota = getEnvInt("DAILY_QUOTA", 50)
	cfg.MinSendInterval = getEnvDuration("MIN_SEND_INTERVAL", 2*time.Second)
	cfg.LocalTZOffsetHours = getEnvInt("LOCAL_TZ_OFFSET_HOURS", 8)

	cfg.NotificationRetentionDays = getEnvInt("NOTIFICATION_RETENTION_DAYS", 90)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSend = getEnvInt("RATE_LIMIT_SEND", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// LocalZone は配額計算とnext_run計算に使う固定オフセットのタイムゾーンを返す。
// 元システム同様、スケジュール行のIANA名ではなく運用側設定のオフセットを参照する。
func (c *Config) LocalZone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.LocalTZOffsetHours), c.LocalTZOffsetHours*3600)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
