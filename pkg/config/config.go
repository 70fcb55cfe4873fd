package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort int
	GRPCPort int

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	MongoURI    string
	MongoDBName string

	RedisAddr     string
	RedisPassword string

	DBHost                  string
	DBPort                  int
	DBUser                  string
	DBPassword              string
	DBName                  string
	OrdersMigrationsPath    string
	CatalogDBPath           string
	CatalogMigrationsPath   string
	KafkaBrokers            string
	OrderEventsTopic        string
	StockConsumerGroup      string
	StripeSecretKey         string
	PaymentIntentURL        string // empty: intents are created in-process
	PaymentTimeout          time.Duration
	TaxRate                 decimal.Decimal
	StockValidatorParallel  int
	GuestStorageTTL         time.Duration
	OutboxPollInterval      time.Duration
}

func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnvInt("HTTP_PORT", 8080),
		GRPCPort: getEnvInt("GRPC_PORT", 8081),

		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "storefront"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnvInt("DB_PORT", 5432),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "storefront"),
		OrdersMigrationsPath:  getEnv("ORDERS_MIGRATIONS_PATH", "./internal/repository/orders/migrations"),
		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./catalog.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/repository/products/migrations"),

		KafkaBrokers:       getEnv("KAFKA_BROKERS", "localhost:9092"),
		OrderEventsTopic:   getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		StockConsumerGroup: getEnv("STOCK_CONSUMER_GROUP", "storefront-stock"),

		StripeSecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
		PaymentIntentURL: getEnv("PAYMENT_INTENT_URL", ""),
		PaymentTimeout:   getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second),

		TaxRate:                getEnvDecimal("TAX_RATE", decimal.RequireFromString("0.10")),
		StockValidatorParallel: getEnvInt("STOCK_VALIDATOR_PARALLEL", 8),
		GuestStorageTTL:        getEnvDuration("GUEST_STORAGE_TTL", 30*24*time.Hour),
		OutboxPollInterval:     getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}

	return d
}

func getEnvDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return def
	}

	return d
}
