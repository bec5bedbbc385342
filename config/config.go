package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ✅ Global constants (accessible from other packages)
var ReportDir = "./reports"
var BaseURL = "http://localhost:8080"

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// ✅ Redis Config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ✅ Kafka Config
	KafkaBrokers      string
	KafkaScoreTopic   string
	KafkaOutcomeTopic string

	// ✅ Twilio Config
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	// ✅ Google Calendar Config
	GoogleCredentialsPath string // Path to service account JSON

	// ✅ SMTP Config (pipeline reports)
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromName  string
	SMTPFromEmail string
	ReportToEmail string

	// ✅ Family profile (YAML)
	FamilyConfigPath string

	// ✅ Pipeline tuning
	ApprovalTTLHours           int
	MaxConcurrentRegistrations int
	ExternalTimeoutSeconds     int
	DiscoveryCycleMinutes      int
	ApprovalBatchSize          int
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	return &Config{
		Port: envDefault("PORT", "8080"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		KafkaScoreTopic:   envDefault("KAFKA_SCORE_TOPIC", "event-scores"),
		KafkaOutcomeTopic: envDefault("KAFKA_OUTCOME_TOPIC", "pipeline-outcomes"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),

		GoogleCredentialsPath: os.Getenv("GOOGLE_CREDENTIALS_PATH"),

		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      os.Getenv("SMTP_PORT"),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFromName:  os.Getenv("SMTP_FROM_NAME"),
		SMTPFromEmail: os.Getenv("SMTP_FROM_EMAIL"),
		ReportToEmail: os.Getenv("REPORT_TO_EMAIL"),

		FamilyConfigPath: envDefault("FAMILY_CONFIG_PATH", "family.yaml"),

		ApprovalTTLHours:           atoiDefault(os.Getenv("APPROVAL_TTL_HOURS"), 24),
		MaxConcurrentRegistrations: atoiDefault(os.Getenv("MAX_CONCURRENT_REGISTRATIONS"), 2),
		ExternalTimeoutSeconds:     atoiDefault(os.Getenv("EXTERNAL_TIMEOUT_SECONDS"), 30),
		DiscoveryCycleMinutes:      atoiDefault(os.Getenv("DISCOVERY_CYCLE_MINUTES"), 60),
		ApprovalBatchSize:          atoiDefault(os.Getenv("APPROVAL_BATCH_SIZE"), 3),
	}
}

func envDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func atoiDefault(val string, def int) int {
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
