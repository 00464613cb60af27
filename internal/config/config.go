package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Reservation ReservationConfig `json:"reservation"`
	Reminder    ReminderConfig    `json:"reminder"`
	Tokens      TokenConfig       `json:"tokens"`
	Redis       RedisConfig       `json:"redis"`
	Auth        AuthConfig        `json:"-"`
	Log         LogConfig         `json:"log"`
}

// TelegramConfig содержит настройки Telegram бота
type TelegramConfig struct {
	Token       string `json:"-"`
	WebhookURL  string `json:"webhook_url"`
	SecretToken string `json:"-"`
	BotUsername string `json:"bot_username"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins"`
	RateLimitPerMin int           `json:"rate_limit_per_min"`
	RateLimitBurst  int           `json:"rate_limit_burst"`
	GinMode         string        `json:"gin_mode"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path        string        `json:"path"`
	ConnTimeout time.Duration `json:"conn_timeout"`
}

// ReservationConfig содержит параметры распределения столов
type ReservationConfig struct {
	SlotDuration time.Duration `json:"slot_duration"`
	Timezone     string        `json:"timezone"`
}

// ReminderConfig содержит параметры фонового цикла напоминаний
type ReminderConfig struct {
	Interval  time.Duration `json:"interval"`
	IOTimeout time.Duration `json:"io_timeout"`
}

// TokenConfig содержит параметры токенов привязки Telegram
type TokenConfig struct {
	TTL           time.Duration `json:"ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
	Backend       string        `json:"backend"` // memory | redis
}

// RedisConfig содержит настройки Redis
type RedisConfig struct {
	URL string `json:"-"`
}

// AuthConfig содержит секрет для проверки bearer токенов
type AuthConfig struct {
	JWTSecret string
}

// LogConfig содержит настройки логирования
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Load загружает конфигурацию из .env файла (если есть) и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:       os.Getenv("TELEGRAM_TOKEN"),
			WebhookURL:  os.Getenv("WEBHOOK_URL"),
			SecretToken: os.Getenv("WEBHOOK_SECRET_TOKEN"),
			BotUsername: os.Getenv("TELEGRAM_BOT_USERNAME"),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitPerMin: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
			GinMode:         getEnv("GIN_MODE", "release"),
		},
		Database: DatabaseConfig{
			Path:        getEnv("DB_FILE", "tablebook.db"),
			ConnTimeout: getEnvAsDuration("DB_CONN_TIMEOUT", 5*time.Second),
		},
		Reservation: ReservationConfig{
			SlotDuration: getEnvAsDuration("SLOT_DURATION", 2*time.Hour),
			Timezone:     getEnv("TIMEZONE", "Local"),
		},
		Reminder: ReminderConfig{
			Interval:  getEnvAsDuration("REMINDER_INTERVAL", 60*time.Second),
			IOTimeout: getEnvAsDuration("REMINDER_IO_TIMEOUT", 10*time.Second),
		},
		Tokens: TokenConfig{
			TTL:           getEnvAsDuration("TOKEN_TTL", 5*time.Minute),
			SweepInterval: getEnvAsDuration("TOKEN_SWEEP_INTERVAL", time.Minute),
			Backend:       getEnv("TOKEN_BACKEND", "memory"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Reservation.SlotDuration <= 0 {
		return fmt.Errorf("SLOT_DURATION must be positive")
	}
	if _, err := c.Reservation.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	if c.Reminder.IOTimeout <= 0 {
		return fmt.Errorf("REMINDER_IO_TIMEOUT must be positive")
	}
	if c.Tokens.TTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Server.RateLimitPerMin <= 0 || c.Server.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}

	switch c.Tokens.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when TOKEN_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown TOKEN_BACKEND %q (expected memory or redis)", c.Tokens.Backend)
	}

	return nil
}

// Location возвращает часовой пояс, в котором интерпретируются дата и время брони
func (r ReservationConfig) Location() (*time.Location, error) {
	if r.Timezone == "" || r.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvAsList разбирает список через запятую
func getEnvAsList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
