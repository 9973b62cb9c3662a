package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Geocode  GeocodeConfig
	Feed     FeedConfig
	Push     PushConfig
	Poll     PollConfig
	Summary  SummaryConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers            []string
	TopicReadings      string
	TopicNotifications string
	NumPartitions      int
}

type GeocodeConfig struct {
	BaseURL string
	Locale  string
}

// FeedConfig configures the WAQI feed client.
// QueryMode selects how user locations become feed queries: "geocode"
// resolves coordinates to city/district names first, "coords" queries
// the feed by coordinates directly.
type FeedConfig struct {
	BaseURL           string
	Token             string
	QueryMode         string
	RequestsPerMinute int
	FallbackCities    []string
}

type PushConfig struct {
	Endpoint  string
	ProjectID string
	AuthToken string
}

type PollConfig struct {
	Interval        time.Duration
	Workers         int
	PipelineTimeout time.Duration
}

type SummaryConfig struct {
	DailyTime string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "airalert_user"),
			Password: getEnv("DB_PASSWORD", "airalert_pass"),
			DBName:   getEnv("DB_NAME", "airalert_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings:      getEnv("KAFKA_TOPIC_READINGS", "air.readings"),
			TopicNotifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "air.notifications"),
			NumPartitions:      getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		Geocode: GeocodeConfig{
			BaseURL: getEnv("GEOCODE_BASE_URL", "https://api.bigdatacloud.net/data/reverse-geocode-client"),
			Locale:  getEnv("GEOCODE_LOCALE", "tr"),
		},
		Feed: FeedConfig{
			BaseURL:           getEnv("WAQI_BASE_URL", "https://api.waqi.info"),
			Token:             getEnv("WAQI_API_TOKEN", ""),
			QueryMode:         getEnv("WAQI_QUERY_MODE", "geocode"),
			RequestsPerMinute: getEnvAsInt("WAQI_REQUESTS_PER_MINUTE", 60),
			FallbackCities:    splitList(getEnv("WAQI_FALLBACK_CITIES", "istanbul,ankara,izmir,bursa,antalya")),
		},
		Push: PushConfig{
			Endpoint:  getEnv("PUSH_ENDPOINT", "https://fcm.googleapis.com/v1/projects"),
			ProjectID: getEnv("PUSH_PROJECT_ID", ""),
			AuthToken: getEnv("PUSH_AUTH_TOKEN", ""),
		},
		Poll: PollConfig{
			Interval:        getEnvAsDuration("POLL_INTERVAL", 1*time.Hour),
			Workers:         getEnvAsInt("POLL_WORKERS", 10),
			PipelineTimeout: getEnvAsDuration("POLL_PIPELINE_TIMEOUT", 30*time.Second),
		},
		Summary: SummaryConfig{
			DailyTime: getEnv("SUMMARY_DAILY_TIME", "00:05"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
