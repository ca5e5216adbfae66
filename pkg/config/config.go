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
	Store   StoreConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	OnPing  OnPingConfig
	Engine  EngineConfig
	Query   QueryConfig
	DataDir string
}

type StoreConfig struct {
	Driver   string // "postgres" or "sqlite3"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file, ":memory:" allowed
}

func (s StoreConfig) DSN() string {
	if s.Driver == "sqlite3" {
		return s.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.Host, s.Port, s.User, s.Password, s.DBName, s.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers     []string
	TopicAlarms string
}

type OnPingConfig struct {
	BaseURL         string
	Username        string
	Password        string
	WellsConfigFile string
	SessionTTL      time.Duration
	RequestTimeout  time.Duration
}

// EngineConfig collects every threshold and physical constant the
// derivation engine uses so tests can override them deterministically.
type EngineConfig struct {
	AlignWindowSeconds int64 // half-width of the channel join window

	SpecificGravity  float64 // SG in ph = 0.433 * SG * hl
	LiquidLoadHeight float64 // hl, feet
	MCFToCubicMeters float64 // 1 MCF in cubic meters
	SecondsPerDay    float64

	CasingDeltaThreshold float64 // delta_cp below this is an anomaly
	UnsafeVelocity       float64 // m/s
	LowVolumeThreshold   float64 // cubic meters

	LowTotalDuration   int64 // seconds, floors
	LowFlowDuration    int64
	LowShutinDuration  int64
	HighTotalDuration  int64 // seconds, ceilings
	HighFlowDuration   int64
	HighShutinDuration int64
}

type QueryConfig struct {
	Port int
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Store: StoreConfig{
			Driver:   getEnv("STORE_DRIVER", "sqlite3"),
			Host:     getEnv("STORE_HOST", "localhost"),
			Port:     getEnvAsInt("STORE_PORT", 5432),
			User:     getEnv("STORE_USER", "plunger_user"),
			Password: getEnv("STORE_PASSWORD", "plunger_pass"),
			DBName:   getEnv("STORE_DBNAME", "plunger_db"),
			SSLMode:  getEnv("STORE_SSLMODE", "disable"),
			Path:     getEnv("STORE_SQLITE_PATH", "data/events.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:     strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicAlarms: getEnv("KAFKA_TOPIC_ALARMS", "plunger.cycle.anomalies"),
		},
		OnPing: OnPingConfig{
			BaseURL:         getEnv("ONPING_BASE_URL", "https://onping.plowtech.net"),
			Username:        getEnv("ONPING_USERNAME", ""),
			Password:        getEnv("ONPING_PASSWORD", ""),
			WellsConfigFile: getEnv("WELLS_CONFIG_FILE", "config/wells-config.json"),
			SessionTTL:      getEnvAsDuration("ONPING_SESSION_TTL", 12*time.Hour),
			RequestTimeout:  getEnvAsDuration("ONPING_REQUEST_TIMEOUT", 15*time.Second),
		},
		Engine: EngineConfig{
			AlignWindowSeconds: int64(getEnvAsInt("ALIGN_WINDOW_SECONDS", 60)),

			SpecificGravity:  getEnvAsFloat("GAS_SPECIFIC_GRAVITY", 0.6),
			LiquidLoadHeight: getEnvAsFloat("LIQUID_LOAD_HEIGHT", 1000),
			MCFToCubicMeters: 28.3168,
			SecondsPerDay:    86400,

			CasingDeltaThreshold: getEnvAsFloat("CASING_DELTA_THRESHOLD", -5.0),
			UnsafeVelocity:       getEnvAsFloat("UNSAFE_VELOCITY_THRESHOLD", 2.5),
			LowVolumeThreshold:   getEnvAsFloat("LOW_VOLUME_THRESHOLD", 10.0),

			LowTotalDuration:   int64(getEnvAsInt("LOW_TOTAL_DURATION", 600)),
			LowFlowDuration:    int64(getEnvAsInt("LOW_FLOW_DURATION", 300)),
			LowShutinDuration:  int64(getEnvAsInt("LOW_SHUTIN_DURATION", 300)),
			HighTotalDuration:  int64(getEnvAsInt("HIGH_TOTAL_DURATION", 7200)),
			HighFlowDuration:   int64(getEnvAsInt("HIGH_FLOW_DURATION", 3600)),
			HighShutinDuration: int64(getEnvAsInt("HIGH_SHUTIN_DURATION", 3600)),
		},
		Query: QueryConfig{
			Port: getEnvAsInt("QUERY_PORT", 8090),
		},
		DataDir: getEnv("DATA_DIR", "data"),
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
