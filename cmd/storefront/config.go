package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/jewel_cart/internal/checkout"
	"github.com/fjod/jewel_cart/internal/payment"
	"github.com/fjod/jewel_cart/internal/repository"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName  string
	// empty keeps traces local
	OTLPEndpoint string

	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
	CheckoutPerMinute  int
	CheckoutBurst      int

	BackendURL     string
	BackendTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	// in-memory sessions idle this long are dropped
	SessionIdleTimeout   time.Duration
	SessionSweepInterval time.Duration

	// empty disables the address book
	MongoURI    string
	MongoDBName string

	// empty host disables the checkout journal
	Postgres repository.Credentials

	// empty disables order events
	KafkaBrokers []string
	// unique per instance
	KafkaGroupID string

	Telr     payment.TelrConfig
	Checkout checkout.Config
}

func loadConfig() *Config {
	checkoutCfg := checkout.DefaultConfig()
	checkoutCfg.Currency = getEnv("CURRENCY", checkoutCfg.Currency)
	checkoutCfg.PaymentTimeout = getEnvDuration("PAYMENT_TIMEOUT", checkoutCfg.PaymentTimeout)
	checkoutCfg.SubmitAttempts = uint(getEnvInt("ORDER_SUBMIT_ATTEMPTS", int(checkoutCfg.SubmitAttempts)))
	checkoutCfg.SubmitBackoff = getEnvDuration("ORDER_SUBMIT_BACKOFF", checkoutCfg.SubmitBackoff)
	checkoutCfg.Fees = checkout.FeeSchedule{
		GiftWrap:         getEnvDecimal("GIFT_WRAP_FEE", "250"),
		Express:          getEnvDecimal("EXPRESS_FEE", "500"),
		InsurancePercent: getEnvDecimal("INSURANCE_PERCENT", "1.5"),
	}

	return &Config{
		ServiceName:  getEnv("SERVICE_NAME", "storefront"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    10 * time.Second,
		MaxRequestBodySize: 1 << 20, // 1MB
		AllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		CheckoutPerMinute:  getEnvInt("CHECKOUT_RATE_PER_MINUTE", 10),
		CheckoutBurst:      getEnvInt("CHECKOUT_RATE_BURST", 3),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8081/api"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),

		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "storefront"),

		Postgres: repository.Credentials{
			Host:              getEnv("POSTGRES_HOST", ""),
			Port:              getEnvInt("POSTGRES_PORT", 5432),
			User:              getEnv("POSTGRES_USER", "storefront"),
			Password:          getEnv("POSTGRES_PASSWORD", ""),
			DBName:            getEnv("POSTGRES_DB", "storefront"),
			MigrationsDirPath: getEnv("MIGRATIONS_DIR", "internal/repository/migrations"),
		},

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "storefront-"+hostname()),

		Telr: payment.TelrConfig{
			APIURL:        getEnv("TELR_API_URL", "https://secure.telr.com/gateway/order.json"),
			StoreID:       getEnvInt("TELR_STORE_ID", 0),
			AuthKey:       getEnv("TELR_AUTH_KEY", ""),
			TestMode:      getEnv("TELR_MODE", "live") != "live",
			AuthorisedURL: getEnv("TELR_SUCCESS_URL", ""),
			DeclinedURL:   getEnv("TELR_FAILURE_URL", ""),
			CancelledURL:  getEnv("TELR_CANCEL_URL", ""),
		},
		Checkout: checkoutCfg,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if d, err := decimal.NewFromString(os.Getenv(key)); err == nil {
		return d
	}
	return decimal.RequireFromString(defaultValue)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return name
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
