package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DomainDir     string
	PostgresDSN   string
	JWTSigningKey string
	AdminToken    string
	Kafka         KafkaConfig
	Redis         RedisConfig
}

// KafkaConfig holds audit stream settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RedisConfig holds agent throttle store settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("BOREAL_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	domainDir := os.Getenv("BOREAL_DOMAIN_DIR")
	if domainDir == "" {
		domainDir = "config/domain"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_AUDIT_TOPIC")

	return Server{
		Addr:          addr,
		DomainDir:     domainDir,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		JWTSigningKey: jwtSigningKey,
		AdminToken:    os.Getenv("BOREAL_ADMIN_TOKEN"),
		Kafka: KafkaConfig{
			Brokers: brokers,
			Topic:   topic,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}
