package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config is everything the server needs from the environment. Sensible
// dev defaults everywhere; only the DSN shape is validated here.
type Config struct {
	Port      string
	MySQLDSN  string
	RedisAddr string

	KafkaBrokers []string // empty disables event publishing
	KafkaTopic   string

	ItemTTL           time.Duration
	LedgerTTL         time.Duration
	ThrottleInterval  time.Duration
	LocalDedupWindow  time.Duration
	RemoteDedupWindow time.Duration
	TokenTTL          time.Duration

	QueueSize      int
	PublishWorkers int
}

func Load() (Config, error) {
	cfg := Config{
		Port:      getenv("PORT", "8080"),
		MySQLDSN:  getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/estoque?parseTime=true"),
		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),

		KafkaTopic: getenv("KAFKA_TOPIC", "stock-events"),

		QueueSize:      1024,
		PublishWorkers: 4,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.ItemTTL, err = getDuration("ITEM_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.LedgerTTL, err = getDuration("LEDGER_TTL", 120*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ThrottleInterval, err = getDuration("THROTTLE_INTERVAL", 10*time.Second); err != nil {
		return Config{}, err
	}
	// Dedup windows: widening them suppresses more accidental double
	// submissions but starts eating legitimate rapid re-entries of the
	// same item and quantity by different staff. Product decision.
	if cfg.LocalDedupWindow, err = getDuration("LOCAL_DEDUP_WINDOW", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RemoteDedupWindow, err = getDuration("REMOTE_DEDUP_WINDOW", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}

	if !strings.Contains(cfg.MySQLDSN, "parseTime=true") {
		return Config{}, fmt.Errorf("MYSQL_DSN must include parseTime=true")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
