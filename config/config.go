package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	// StoreDriver is "postgres" or "memory".
	StoreDriver string
	DB          DBConfig
	Redis       RedisConfig
	Kafka       KafkaConfig

	JaegerEndpoint string
	JWTSecret      string

	DefaultCurrency    string
	PaymentProvider    string
	PremiumPrice       decimal.Decimal
	PremiumTerm        time.Duration
	PremiumGrantsBadge bool

	ReconcileInterval time.Duration
	PendingPaymentTTL time.Duration
	ProductCacheTTL   time.Duration
	IdempotencyTTL    time.Duration
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	MaxOpenConns int
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type KafkaConfig struct {
	Broker             string
	EventsTopic        string
	ConfirmationsTopic string
}

// Load reads the service configuration from the environment. A .env file in
// the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8085"),
		GRPCAddr:    getEnv("GRPC_ADDR", ":50055"),
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "marketplacedb"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Broker:             getEnv("KAFKA_BROKER", "localhost:9092"),
			EventsTopic:        getEnv("KAFKA_EVENTS_TOPIC", "marketplace_events"),
			ConfirmationsTopic: getEnv("KAFKA_CONFIRMATIONS_TOPIC", "payment_confirmations"),
		},
		JaegerEndpoint:  getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "USD"),
		PaymentProvider: getEnv("PAYMENT_PROVIDER", "external"),
	}

	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	var err error
	if cfg.DB.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.PremiumPrice, err = getDecimal("PREMIUM_PRICE", "99.00"); err != nil {
		return nil, err
	}
	if cfg.PremiumTerm, err = getDuration("PREMIUM_TERM", 365*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PremiumGrantsBadge, err = getBool("PREMIUM_GRANTS_BADGE", true); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getDuration("RECONCILE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.PendingPaymentTTL, err = getDuration("PENDING_PAYMENT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = getDuration("PRODUCT_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return v, nil
}

func getDecimal(key, defaultValue string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(getEnv(key, defaultValue))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
