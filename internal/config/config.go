package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	RealtimeDriverPostgres = "postgres"
	RealtimeDriverRedis    = "redis"

	NotifyDriverMemory = "memory"
	NotifyDriverKafka  = "kafka"
)

type Config struct {
	Port      string
	DBUrl     string
	JWTSecret string
	AppEnv    string
	LogLevel  string
	AppURL    string

	RealtimeDriver string
	RedisURL       string
	RedisChannel   string

	NotifyDriver    string
	NotifyWorkers   int
	NotifyQueueSize int
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string

	SendRatePerMinute int
	EnableMetrics     bool
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DBUrl:     getEnv("DB_URL", ""),
		JWTSecret: jwtSecret,
		AppEnv:    normalizeEnv(getEnv("APP_ENV", "production")),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		AppURL:    strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),

		RealtimeDriver: strings.ToLower(getEnv("REALTIME_DRIVER", RealtimeDriverPostgres)),
		RedisURL:       getEnv("REDIS_URL", ""),
		RedisChannel:   getEnv("REDIS_CHANNEL", "messages"),

		NotifyDriver:    strings.ToLower(getEnv("NOTIFY_DRIVER", NotifyDriverMemory)),
		NotifyWorkers:   getEnvInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 256),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "message-notifications"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "message-notifier"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail: getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:  getEnv("BREVO_SENDER_NAME", "Kutable"),

		SendRatePerMinute: getEnvInt("SEND_RATE_PER_MINUTE", 30),
		EnableMetrics:     getEnvBool("ENABLE_METRICS", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.RealtimeDriver {
	case RealtimeDriverPostgres:
	case RealtimeDriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when REALTIME_DRIVER=redis")
		}
	default:
		return fmt.Errorf("unknown REALTIME_DRIVER %q", c.RealtimeDriver)
	}

	switch c.NotifyDriver {
	case NotifyDriverMemory:
	case NotifyDriverKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when NOTIFY_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unknown NOTIFY_DRIVER %q", c.NotifyDriver)
	}
	return nil
}

func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func (c *Config) EmailEnabled() bool {
	return c.BrevoAPIKey != "" && c.BrevoSenderEmail != ""
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
