package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	OrderStorePostgres = "postgres"
	OrderStoreMongo    = "mongo"
)

type Config struct {
	Env      string
	LogLevel string

	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	Gateway GatewayConfig
	Catalog CatalogConfig

	OrderStore        string
	OrderWriteTimeout time.Duration
	Postgres          PostgresConfig
	Mongo             MongoConfig

	RedisAddr      string
	RedisPassword  string
	IdempotencyTTL time.Duration

	KafkaBrokers []string
	OrdersTopic  string
}

type GatewayConfig struct {
	URL        string
	MerchantID string
	PublicKey  string
	PrivateKey string
	Timeout    time.Duration
}

type CatalogConfig struct {
	DBPath         string
	MigrationsPath string
}

type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	MigrationsPath string
}

type MongoConfig struct {
	URI    string
	DBName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GRPC_PORT", "50057")
	v.SetDefault("REQUEST_TIMEOUT", 30*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("MAX_REQUEST_BODY_SIZE", 1<<20) // 1MB

	v.SetDefault("GATEWAY_URL", "http://localhost:50054")
	v.SetDefault("GATEWAY_MERCHANT_ID", "sandbox-merchant")
	v.SetDefault("GATEWAY_PUBLIC_KEY", "sandbox-public")
	v.SetDefault("GATEWAY_PRIVATE_KEY", "sandbox-private")
	v.SetDefault("GATEWAY_TIMEOUT", 15*time.Second)

	v.SetDefault("CATALOG_DB_PATH", "./internal/catalog/products.db")
	v.SetDefault("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations")

	v.SetDefault("ORDER_STORE", OrderStorePostgres)
	v.SetDefault("ORDER_WRITE_TIMEOUT", 5*time.Second)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ecommerce")
	v.SetDefault("MIGRATIONS_PATH", "./internal/repository/migrations")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "ordersdb")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("IDEMPOTENCY_TTL", 24*time.Hour)

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ORDERS_TOPIC", "orders-created")
}

// Load reads configuration from the environment, optionally layered over a
// config file. Environment variables always win.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		Env:                v.GetString("APP_ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		HTTPPort:           v.GetString("HTTP_PORT"),
		GRPCPort:           v.GetString("GRPC_PORT"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout:    v.GetDuration("SHUTDOWN_TIMEOUT"),
		MaxRequestBodySize: v.GetInt64("MAX_REQUEST_BODY_SIZE"),
		Gateway: GatewayConfig{
			URL:        strings.TrimRight(v.GetString("GATEWAY_URL"), "/"),
			MerchantID: v.GetString("GATEWAY_MERCHANT_ID"),
			PublicKey:  v.GetString("GATEWAY_PUBLIC_KEY"),
			PrivateKey: v.GetString("GATEWAY_PRIVATE_KEY"),
			Timeout:    v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Catalog: CatalogConfig{
			DBPath:         v.GetString("CATALOG_DB_PATH"),
			MigrationsPath: v.GetString("CATALOG_MIGRATIONS_PATH"),
		},
		OrderStore:        strings.ToLower(v.GetString("ORDER_STORE")),
		OrderWriteTimeout: v.GetDuration("ORDER_WRITE_TIMEOUT"),
		Postgres: PostgresConfig{
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			User:           v.GetString("DB_USER"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			MigrationsPath: v.GetString("MIGRATIONS_PATH"),
		},
		Mongo: MongoConfig{
			URI:    v.GetString("MONGO_URI"),
			DBName: v.GetString("MONGO_DB_NAME"),
		},
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		KafkaBrokers:   splitList(v.GetString("KAFKA_BROKERS")),
		OrdersTopic:    v.GetString("ORDERS_TOPIC"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.OrderStore != OrderStorePostgres && c.OrderStore != OrderStoreMongo {
		return fmt.Errorf("ORDER_STORE must be %q or %q, got %q", OrderStorePostgres, OrderStoreMongo, c.OrderStore)
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("GATEWAY_URL is required")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.OrderWriteTimeout <= 0 {
		return fmt.Errorf("ORDER_WRITE_TIMEOUT must be positive")
	}
	// a sale in flight at SIGTERM must be able to settle and be recorded
	// before the stores are closed
	if minimum := c.Gateway.Timeout + c.OrderWriteTimeout; c.ShutdownTimeout < minimum {
		return fmt.Errorf("SHUTDOWN_TIMEOUT (%s) must be at least GATEWAY_TIMEOUT + ORDER_WRITE_TIMEOUT (%s)",
			c.ShutdownTimeout, minimum)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
