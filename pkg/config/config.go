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
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	HTTPServer  HTTPServerConfig
	Plug        PlugConfig
	Energy      EnergyConfig
	Dashboard   DashboardConfig
	Aggregation AggregationConfig
	SMTP        SMTPConfig
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
	Brokers       []string
	TopicReadings string
	TopicAlerts   string
	NumPartitions int
}

type HTTPServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PlugConfig describes the upstream smart-plug proxy API.
type PlugConfig struct {
	BaseURL         string
	DefaultDeviceID string
	LiveTimeout     time.Duration
	HistoryTimeout  time.Duration
}

// EnergyConfig carries the tariff applied when an upstream sample does not
// include its own rate information.
type EnergyConfig struct {
	RatePerKWh     float64
	CurrencySymbol string
	DailyCostAlert float64
}

type DashboardConfig struct {
	PollInterval     time.Duration
	SnapshotInterval time.Duration
}

type AggregationConfig struct {
	HourlyDelay time.Duration
	DailyTime   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "energy_user"),
			Password: getEnv("DB_PASSWORD", "energy_pass"),
			DBName:   getEnv("DB_NAME", "energy_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "energy.readings.raw"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "energy.alerts"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		HTTPServer: HTTPServerConfig{
			Port:         getEnvAsInt("HTTP_PORT", 8090),
			ReadTimeout:  getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
		Plug: PlugConfig{
			BaseURL:         getEnv("PLUG_API_BASE_URL", "http://localhost:8090"),
			DefaultDeviceID: getEnv("PLUG_DEFAULT_DEVICE_ID", ""),
			LiveTimeout:     getEnvAsDuration("PLUG_LIVE_TIMEOUT", 10*time.Second),
			HistoryTimeout:  getEnvAsDuration("PLUG_HISTORY_TIMEOUT", 15*time.Second),
		},
		Energy: EnergyConfig{
			RatePerKWh:     getEnvAsFloat("ENERGY_RATE_PER_KWH", 0.15),
			CurrencySymbol: getEnv("ENERGY_CURRENCY_SYMBOL", "$"),
			DailyCostAlert: getEnvAsFloat("ENERGY_DAILY_COST_ALERT", 5.0),
		},
		Dashboard: DashboardConfig{
			PollInterval:     getEnvAsDuration("DASHBOARD_POLL_INTERVAL", 5*time.Second),
			SnapshotInterval: getEnvAsDuration("DASHBOARD_SNAPSHOT_INTERVAL", 5*time.Minute),
		},
		Aggregation: AggregationConfig{
			HourlyDelay: getEnvAsDuration("AGGREGATION_HOURLY_DELAY", 5*time.Minute),
			DailyTime:   getEnv("AGGREGATION_DAILY_TIME", "00:05"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "energy-monitor@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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
