package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	Timezone   string

	JWTAccessSecret    string
	JWTRefreshSecret   string
	JWTAccessTTLHours  int
	JWTRefreshTTLHours int

	// ✅ Redis Config
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ✅ Kafka Config
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// ✅ HTTP
	CORSOrigins        []string
	RateLimitPerMinute int64

	// ✅ Recurring events
	Recurrence           RecurrenceConfig
	RecurrenceConfigPath string
	TopUpCron            string
}

// Load reads environment variables and returns a Config object
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file, using environment variables")
	}

	accessTTL := getInt("JWT_ACCESS_TTL_HOURS", 24)
	refreshTTL := getInt("JWT_REFRESH_TTL_HOURS", 168)
	redisDB := getInt("REDIS_DB", 0)

	cfg := &Config{
		Port:     getString("PORT", "8080"),
		Env:      getString("APP_ENV", "development"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getString("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getString("DB_SSLMODE", "disable"),
		Timezone:   getString("TZ", "UTC"),

		JWTAccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:   os.Getenv("JWT_REFRESH_SECRET"),
		JWTAccessTTLHours:  accessTTL,
		JWTRefreshTTLHours: refreshTTL,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getString("KAFKA_NOTIFICATION_TOPIC", "group-notifications"),
		KafkaGroupID: getString("KAFKA_GROUP_ID", "community-events-backend"),

		CORSOrigins:        splitList(getString("CORS_ORIGINS", "http://localhost:5173,http://localhost:4173")),
		RateLimitPerMinute: int64(getInt("RATE_LIMIT_PER_MINUTE", 100)),

		Recurrence:           RecurrenceFromEnv(),
		RecurrenceConfigPath: os.Getenv("RECURRENCE_CONFIG"),
		TopUpCron:            os.Getenv("TOPUP_CRON"),
	}

	if cfg.RecurrenceConfigPath != "" {
		if err := cfg.Recurrence.Overlay(cfg.RecurrenceConfigPath); err != nil {
			log.Printf("recurrence config %s ignored: %v", cfg.RecurrenceConfigPath, err)
		}
	}

	return cfg
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Location returns the zone events are scheduled in. An unknown TZ falls
// back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown TZ %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}
