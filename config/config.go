package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type GatewayConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	InitialDelay    time.Duration
	ProcessingDelay time.Duration
	ReceiptBaseURL  string
}

type Config struct {
	ServiceName     string
	HTTPAddr        string
	StoreDriver     string // postgres | memory
	JWTSecret       string
	JaegerEndpoint  string
	Database        DatabaseConfig
	Kafka           KafkaConfig
	Redis           RedisConfig
	Gateway         GatewayConfig
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	BulkConcurrency int

	EventsEnabled  bool
	CacheEnabled   bool
	TracingEnabled bool
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName:    getEnv("SERVICE_NAME", "payment-service"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8083"),
		StoreDriver:    getEnv("STORE_DRIVER", "postgres"),
		JWTSecret:      getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "kindergarten"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKER", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "payment_events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "payment-analytics"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Gateway: GatewayConfig{
			Timeout:         getEnvDuration("GATEWAY_TIMEOUT", 15*time.Second),
			MaxRetries:      getEnvInt("GATEWAY_MAX_RETRIES", 2),
			InitialDelay:    getEnvDuration("GATEWAY_RETRY_DELAY", time.Second),
			ProcessingDelay: getEnvDuration("GATEWAY_PROCESSING_DELAY", 1500*time.Millisecond),
			ReceiptBaseURL:  getEnv("RECEIPT_BASE_URL", "https://receipts.example.com"),
		},
		CacheTTL:        getEnvDuration("ANALYTICS_CACHE_TTL", 5*time.Minute),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 30*time.Second),
		BulkConcurrency: getEnvInt("BULK_CONCURRENCY", 8),
		EventsEnabled:   getEnvBool("EVENTS_ENABLED", true),
		CacheEnabled:    getEnvBool("CACHE_ENABLED", true),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", true),
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

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
