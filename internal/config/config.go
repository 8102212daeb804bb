package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment variables
// and an optional .env file.
type Config struct {
	ServerPort string

	DBDriver    string
	DatabaseDSN string
	ResetDB     bool

	RedisAddr      string
	RedisDB        int
	RedisPass      string
	RedisKeyPrefix string

	JWTSecret string

	CardProvider    string
	WebhookSecret   string
	WebhookAllowIPs []string
	TrustedProxies  []string

	AuthTimeout    time.Duration
	CheckTimeout   time.Duration
	IdempotencyTTL time.Duration

	RabbitMQURL    string
	NotifyExchange string

	LogLevel  string
	LogPretty bool
}

var defaults = map[string]any{
	"SERVER_PORT":          "8080",
	"DB_DRIVER":            "mysql",
	"DATABASE_DSN":         "user:password@tcp(localhost:3306)/cardauth?charset=utf8mb4&parseTime=True&loc=UTC",
	"RESET_DB":             false,
	"REDIS_ADDR":           "localhost:6379",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"REDIS_KEY_PREFIX":     "cardauth:",
	"JWT_SECRET":           "change-me",
	"CARD_PROVIDER":        "local",
	"WEBHOOK_SECRET":       "",
	"WEBHOOK_IP_ALLOWLIST": "",
	"TRUSTED_PROXIES":      "",
	"AUTH_TIMEOUT":         "3s",
	"CHECK_TIMEOUT":        "1s",
	"IDEMPOTENCY_TTL":      "24h",
	"RABBITMQ_URL":         "",
	"NOTIFY_EXCHANGE":      "card_events",
	"LOG_LEVEL":            "info",
	"LOG_PRETTY":           false,
}

// Load builds Config from the environment, falling back to a .env file in dir and then to defaults.
func Load(dir string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:      v.GetString("SERVER_PORT"),
		DBDriver:        strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseDSN:     v.GetString("DATABASE_DSN"),
		ResetDB:         v.GetBool("RESET_DB"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisDB:         v.GetInt("REDIS_DB"),
		RedisPass:       v.GetString("REDIS_PASSWORD"),
		RedisKeyPrefix:  v.GetString("REDIS_KEY_PREFIX"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		CardProvider:    strings.ToLower(strings.TrimSpace(v.GetString("CARD_PROVIDER"))),
		WebhookSecret:   v.GetString("WEBHOOK_SECRET"),
		WebhookAllowIPs: splitList(v.GetString("WEBHOOK_IP_ALLOWLIST")),
		TrustedProxies:  splitList(v.GetString("TRUSTED_PROXIES")),
		AuthTimeout:     v.GetDuration("AUTH_TIMEOUT"),
		CheckTimeout:    v.GetDuration("CHECK_TIMEOUT"),
		IdempotencyTTL:  v.GetDuration("IDEMPOTENCY_TTL"),
		RabbitMQURL:     strings.TrimSpace(v.GetString("RABBITMQ_URL")),
		NotifyExchange:  v.GetString("NOTIFY_EXCHANGE"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogPretty:       v.GetBool("LOG_PRETTY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.CardProvider {
	case "local", "anchor":
	default:
		return fmt.Errorf("unsupported CARD_PROVIDER %q", c.CardProvider)
	}
	if c.AuthTimeout <= 0 || c.CheckTimeout <= 0 {
		return errors.New("AUTH_TIMEOUT and CHECK_TIMEOUT must be positive")
	}
	if c.CheckTimeout > c.AuthTimeout {
		return errors.New("CHECK_TIMEOUT must not exceed AUTH_TIMEOUT")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
