package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiryDays     int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	SlackAPIURL     string
	ChannelTimeout  time.Duration
	SlackRatePerSec int

	ScheduleSweepInterval time.Duration
	FeedPageSize          int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	Customers     string
	Targets       string
	Templates     string
	Requests      string
	Notifications string
	UserSettings  string
	Settings      string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			Customers:     getEnv("DYNAMO_TABLE_CUSTOMERS", "customers"),
			Targets:       getEnv("DYNAMO_TABLE_TARGETS", "notification_targets"),
			Templates:     getEnv("DYNAMO_TABLE_TEMPLATES", "notification_templates"),
			Requests:      getEnv("DYNAMO_TABLE_REQUESTS", "notification_requests"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			UserSettings:  getEnv("DYNAMO_TABLE_USER_SETTINGS", "user_notification_settings"),
			Settings:      getEnv("DYNAMO_TABLE_SETTINGS", "notification_settings"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		SlackAPIURL:     getEnv("SLACK_API_URL", "https://slack.com/api"),
		ChannelTimeout:  getEnvDuration("CHANNEL_TIMEOUT", 10*time.Second),
		SlackRatePerSec: getEnvInt("SLACK_RATE_PER_SEC", 1),

		ScheduleSweepInterval: getEnvDuration("SCHEDULE_SWEEP_INTERVAL", time.Minute),
		FeedPageSize:          getEnvInt("FEED_PAGE_SIZE", 10),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
