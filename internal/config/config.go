package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	DBDSN       string
	HTTPAddr    string

	AdminTokenKey   string
	TeacherTokenKey string
	AccessTokenTTL  time.Duration

	TelegramToken string
	RedisURL      string
	OTPTTL        time.Duration

	HistorySweepInterval  time.Duration
	PlatformCommissionPct int64
	MigrationsPath        string
	MeetingBaseURL        string
}

// Load читает .env, если он есть, затем переменные окружения.
// Второй результат true, если .env найден
func Load() (*Config, bool, error) {
	// отсутствие .env не ошибка
	fromFile := godotenv.Load(".env") == nil

	cfg := &Config{
		Environment:     getEnv("ENV", "development"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		DBDSN:           os.Getenv("DB_DSN"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		AdminTokenKey:   os.Getenv("ADMIN_ACCESS_TOKEN_KEY"),
		TeacherTokenKey: os.Getenv("ACCESS_TOKEN_KEY"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		RedisURL:        os.Getenv("REDIS_URL"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "migrations"),
		MeetingBaseURL:  getEnv("MEETING_BASE_URL", "https://meet.jit.si"),
	}

	var err error
	if cfg.AccessTokenTTL, err = getDuration("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, fromFile, err
	}
	if cfg.OTPTTL, err = getDuration("OTP_TTL", 5*time.Minute); err != nil {
		return nil, fromFile, err
	}
	if cfg.HistorySweepInterval, err = getDuration("HISTORY_SWEEP_INTERVAL", 30*time.Minute); err != nil {
		return nil, fromFile, err
	}
	if cfg.PlatformCommissionPct, err = getInt("PLATFORM_COMMISSION_PCT", 20); err != nil {
		return nil, fromFile, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fromFile, err
	}

	return cfg, fromFile, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required but not set"))
	}
	if c.AdminTokenKey == "" {
		errs = append(errs, errors.New("ADMIN_ACCESS_TOKEN_KEY is required but not set"))
	}
	if c.TeacherTokenKey == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_KEY is required but not set"))
	}
	if c.AdminTokenKey != "" && c.AdminTokenKey == c.TeacherTokenKey {
		errs = append(errs, errors.New("ADMIN_ACCESS_TOKEN_KEY and ACCESS_TOKEN_KEY must differ"))
	}
	if c.PlatformCommissionPct < 0 || c.PlatformCommissionPct > 100 {
		errs = append(errs, fmt.Errorf("PLATFORM_COMMISSION_PCT must be between 0 and 100, got %d", c.PlatformCommissionPct))
	}
	if c.HistorySweepInterval < time.Minute {
		errs = append(errs, errors.New("HISTORY_SWEEP_INTERVAL must be at least 1m"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
