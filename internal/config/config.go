package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Telegram
	TelegramBotToken string
	WebhookSecret    string

	// Database（未設定の場合はインメモリセッションストアにフォールバックする。
	// 開発・デモ用途のみ。プロセス再起動でセッションは失われる）
	DatabaseURL string

	// Redis（未設定の場合はキャッシュ層を無効化してSupabase/Postgres直行になる）
	RedisURL         string
	EnableRedisCache bool

	// Session
	SessionTTL         time.Duration
	MaxSessionDataSize int
	SweepInterval      time.Duration

	// Timeouts
	DBCommandTimeout time.Duration
	CacheOpTimeout   time.Duration

	// Bot Settings
	DefaultLanguage string

	// Telegram送信レート（メッセージ/秒）
	TelegramSendRate int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if cfg.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.WebhookSecret = getEnvString("TELEGRAM_WEBHOOK_SECRET", "")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.EnableRedisCache = getEnvBool("ENABLE_REDIS_CACHE", true)
	cfg.SessionTTL = time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour
	cfg.MaxSessionDataSize = getEnvInt("MAX_SESSION_DATA_SIZE", 10*1024)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", time.Hour)
	cfg.DBCommandTimeout = getEnvDuration("DB_COMMAND_TIMEOUT", 30*time.Second)
	cfg.CacheOpTimeout = getEnvDuration("CACHE_OP_TIMEOUT", 3*time.Second)
	cfg.DefaultLanguage = getEnvString("DEFAULT_LANGUAGE", "ru")
	cfg.TelegramSendRate = getEnvInt("TELEGRAM_SEND_RATE", 25)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
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
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
