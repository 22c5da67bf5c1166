// Package config содержит логику чтения конфигурации магазина изображений.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации магазина изображений.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`

	GatewayAddress       string        `env:"GATEWAY_ADDRESS"`
	GatewayKeyID         string        `env:"GATEWAY_KEY_ID"`
	GatewayKeySecret     string        `env:"GATEWAY_KEY_SECRET"`
	GatewayWebhookSecret string        `env:"GATEWAY_WEBHOOK_SECRET"`
	GatewayTimeout       time.Duration `env:"GATEWAY_TIMEOUT"`
	GatewayRetryMax      int           `env:"GATEWAY_RETRY_MAX"`
	Currency             string        `env:"CURRENCY"`

	AuthSecret string        `env:"AUTH_SECRET"`
	AuthTTL    time.Duration `env:"AUTH_TTL"`

	PendingOrderTTL time.Duration `env:"PENDING_ORDER_TTL"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL"`

	KafkaBrokers       string        `env:"KAFKA_BROKERS"`
	KafkaTopic         string        `env:"KAFKA_TOPIC"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")

	flag.StringVar(&cfg.GatewayAddress, "g", "https://api.razorpay.com", "payment gateway base URL")
	flag.StringVar(&cfg.GatewayKeyID, "gk", "", "payment gateway key id")
	flag.StringVar(&cfg.GatewayKeySecret, "gs", "", "payment gateway key secret")
	flag.StringVar(&cfg.GatewayWebhookSecret, "gw", "", "payment gateway webhook secret")
	flag.DurationVar(&cfg.GatewayTimeout, "gt", 10*time.Second, "payment gateway request timeout")
	flag.IntVar(&cfg.GatewayRetryMax, "gr", 2, "payment gateway transport retries")
	flag.StringVar(&cfg.Currency, "c", "USD", "order currency")

	flag.StringVar(&cfg.AuthSecret, "s", "", "session signing secret")
	flag.DurationVar(&cfg.AuthTTL, "st", 30*24*time.Hour, "session lifetime")

	flag.DurationVar(&cfg.PendingOrderTTL, "pt", time.Hour, "age after which a pending order is swept")
	flag.DurationVar(&cfg.SweepInterval, "si", time.Minute, "pending order sweep interval")

	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma separated kafka brokers")
	flag.StringVar(&cfg.KafkaTopic, "kt", "order-events", "kafka topic for order events")
	flag.DurationVar(&cfg.OutboxPollInterval, "op", 2*time.Second, "order event outbox poll interval")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %s", c.GatewayTimeout)
	}
	if c.GatewayRetryMax < 0 {
		return fmt.Errorf("gateway retry max must not be negative, got %d", c.GatewayRetryMax)
	}
	if c.PendingOrderTTL <= 0 || c.SweepInterval <= 0 || c.OutboxPollInterval <= 0 {
		return fmt.Errorf("pending order ttl, sweep and outbox intervals must be positive")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be an ISO 4217 code, got %q", c.Currency)
	}
	return nil
}
