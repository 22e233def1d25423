package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"

	ProviderSandbox  = "sandbox"
	ProviderMidtrans = "midtrans"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DataBackend        string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaConsumerGroup string

	IdempotencyBackend string
	IdempotencyTTL     time.Duration
	SessionBackend     string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	PaymentsProvider    string
	MidtransServerKey   string
	MidtransProduction  bool
	LedgerPath          string
	DeferOnProviderErr  bool
	ReconcileInterval   time.Duration
	ReconcileBatchSize  int
	SessionTTL          time.Duration
	FixturesEnabled     bool
	CORSAllowedOrigins  []string
	ShutdownGracePeriod time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "")),
		DataBackend:        strings.ToLower(getEnv("DATA_BACKEND", BackendMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "rentals"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "rentcancel-refunds"),
		IdempotencyBackend: strings.ToLower(getEnv("IDEMPOTENCY_BACKEND", "")),
		SessionBackend:     strings.ToLower(getEnv("SESSION_BACKEND", BackendMemory)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		PaymentsProvider:   strings.ToLower(getEnv("PAYMENTS_PROVIDER", ProviderSandbox)),
		MidtransServerKey:  os.Getenv("MIDTRANS_SERVER_KEY"),
		LedgerPath:         getEnv("LEDGER_PATH", "refund-ledger.db"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}
	cfg.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileBatchSize, err = parseIntEnv("RECONCILE_BATCH_SIZE", 50); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = parseDurationEnv("RECONCILE_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownGracePeriod, err = parseDurationEnv("SHUTDOWN_GRACE_PERIOD", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MidtransProduction, err = parseBoolEnv("MIDTRANS_PRODUCTION", false); err != nil {
		return Config{}, err
	}
	if cfg.DeferOnProviderErr, err = parseBoolEnv("REFUND_DEFER_ON_PROVIDER_ERROR", false); err != nil {
		return Config{}, err
	}
	if cfg.FixturesEnabled, err = parseBoolEnv("LOAD_FIXTURES", cfg.DataBackend == BackendMemory); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if cfg.IdempotencyBackend == "" {
		cfg.IdempotencyBackend = cfg.DataBackend
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DataBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for DATA_BACKEND=mongo")
		}
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for DATA_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unsupported DATA_BACKEND %q", c.DataBackend)
	}
	switch c.IdempotencyBackend {
	case BackendMemory, BackendRedis:
	case BackendMongo:
		if c.DataBackend != BackendMongo {
			return fmt.Errorf("IDEMPOTENCY_BACKEND=mongo requires DATA_BACKEND=mongo")
		}
	default:
		return fmt.Errorf("unsupported IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}
	switch c.SessionBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND %q", c.SessionBackend)
	}
	switch c.PaymentsProvider {
	case ProviderSandbox:
	case ProviderMidtrans:
		if c.MidtransServerKey == "" {
			return fmt.Errorf("MIDTRANS_SERVER_KEY is required for PAYMENTS_PROVIDER=midtrans")
		}
	default:
		return fmt.Errorf("unsupported PAYMENTS_PROVIDER %q", c.PaymentsProvider)
	}
	return nil
}

// UsesRedis reports whether any component needs a redis connection.
func (c Config) UsesRedis() bool {
	return c.IdempotencyBackend == BackendRedis || c.SessionBackend == BackendRedis
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return v, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
