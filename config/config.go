// Package config loads runtime configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	ProductID string `env:"PRODUCT_ID" envDefault:"BTC-USD"`

	PriceTick string `env:"PRICE_TICK" envDefault:"0.01"`
	SizeLot   string `env:"SIZE_LOT" envDefault:"0.00000001"`

	JournalDir  string `env:"JOURNAL_DIR" envDefault:"./data/journal"`
	SnapshotDir string `env:"SNAPSHOT_DIR" envDefault:"./data/snapshots"`
	OutboxDir   string `env:"OUTBOX_DIR" envDefault:"./data/outbox"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	OrderTopic   string   `env:"ORDER_TOPIC" envDefault:"orders"`
	ReplyTopic   string   `env:"REPLY_TOPIC" envDefault:"replies"`
	FeedTopic    string   `env:"FEED_TOPIC" envDefault:"feed"`
	GroupID      string   `env:"CONSUMER_GROUP" envDefault:"matchd"`

	BroadcastInterval time.Duration `env:"BROADCAST_INTERVAL" envDefault:"25ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
