package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
	Executor  ExecutorConfig
	Backend   BackendConfig
	Jobs      JobsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	Environment     string
	AllowedOrigins  []string
	StreamInterval  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database connection configuration. With Enabled false
// the session journal is kept in memory.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// KafkaConfig holds the submission event producer settings. No brokers
// disables publishing.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// JWTConfig holds the settings used to verify backend-issued tokens
type JWTConfig struct {
	SecretKey string
	Issuer    string
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	Environment     string
	OTLPEndpoint    string
	MetricsEndpoint string
}

// ExecutorConfig holds the code execution service settings
type ExecutorConfig struct {
	BaseURL       string
	Timeout       time.Duration
	LanguagesFile string
}

// BackendConfig holds the application backend settings
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// JobsConfig holds background job schedules
type JobsConfig struct {
	ReapSchedule string
}

type setting struct {
	key string
	env string
	def interface{}
}

var settings = []setting{
	{"server.host", "SERVER_HOST", "0.0.0.0"},
	{"server.port", "SERVER_PORT", 8080},
	{"server.read_timeout", "SERVER_READ_TIMEOUT", 10},
	{"server.write_timeout", "SERVER_WRITE_TIMEOUT", 30},
	{"server.environment", "ENVIRONMENT", "development"},
	{"server.allowed_origins", "ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"},
	{"server.stream_interval_ms", "STREAM_INTERVAL_MS", 1000},
	{"server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT", 30},

	{"database.enabled", "DB_ENABLED", false},
	{"database.host", "DB_HOST", "localhost"},
	{"database.port", "DB_PORT", 5432},
	{"database.user", "DB_USER", "postgres"},
	{"database.password", "DB_PASSWORD", "postgres"},
	{"database.name", "DB_NAME", "assessment"},
	{"database.ssl_mode", "DB_SSL_MODE", "disable"},
	{"database.max_open_conns", "DB_MAX_OPEN_CONNS", 25},
	{"database.max_idle_conns", "DB_MAX_IDLE_CONNS", 5},
	{"database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME", 300},

	{"redis.addr", "REDIS_ADDR", ""},
	{"redis.password", "REDIS_PASSWORD", ""},
	{"redis.db", "REDIS_DB", 0},
	{"redis.cache_ttl", "REDIS_CACHE_TTL_SECONDS", 60},

	{"kafka.brokers", "KAFKA_BROKERS", ""},
	{"kafka.topic", "KAFKA_SUBMISSION_TOPIC", "assessment.submissions"},
	{"kafka.client_id", "KAFKA_CLIENT_ID", "assessment-engine"},

	{"jwt.secret", "JWT_SECRET", "your-super-secret-key-change-in-production"},
	{"jwt.issuer", "JWT_ISSUER", ""},

	{"telemetry.enabled", "TELEMETRY_ENABLED", true},
	{"telemetry.service_name", "SERVICE_NAME", "assessment-engine"},
	{"telemetry.service_version", "SERVICE_VERSION", "1.0.0"},
	{"telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"},
	{"telemetry.metrics_endpoint", "METRICS_ENDPOINT", "/metrics"},

	{"executor.base_url", "EXECUTOR_BASE_URL", "https://emkc.org/api/v2/piston"},
	{"executor.timeout", "EXECUTOR_TIMEOUT_SECONDS", 15},
	{"executor.languages_file", "EXECUTOR_LANGUAGES_FILE", ""},

	{"backend.base_url", "BACKEND_BASE_URL", "http://localhost:5000"},
	{"backend.timeout", "BACKEND_TIMEOUT_SECONDS", 10},

	{"jobs.reap_schedule", "JOBS_REAP_SCHEDULE", "@every 30s"},
}

// LoadConfig reads configuration from an optional .env file, an optional
// config file at path and the environment, falling back to defaults
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
		if err := v.BindEnv(s.key, s.env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", s.env, err)
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     seconds("server.read_timeout"),
			WriteTimeout:    seconds("server.write_timeout"),
			Environment:     v.GetString("server.environment"),
			AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
			StreamInterval:  time.Duration(v.GetInt("server.stream_interval_ms")) * time.Millisecond,
			ShutdownTimeout: seconds("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: seconds("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: seconds("redis.cache_ttl"),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(v.GetString("kafka.brokers")),
			Topic:    v.GetString("kafka.topic"),
			ClientID: v.GetString("kafka.client_id"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
		},
		Telemetry: TelemetryConfig{
			Enabled:         v.GetBool("telemetry.enabled"),
			ServiceName:     v.GetString("telemetry.service_name"),
			ServiceVersion:  v.GetString("telemetry.service_version"),
			Environment:     v.GetString("server.environment"),
			OTLPEndpoint:    v.GetString("telemetry.otlp_endpoint"),
			MetricsEndpoint: v.GetString("telemetry.metrics_endpoint"),
		},
		Executor: ExecutorConfig{
			BaseURL:       v.GetString("executor.base_url"),
			Timeout:       seconds("executor.timeout"),
			LanguagesFile: v.GetString("executor.languages_file"),
		},
		Backend: BackendConfig{
			BaseURL: v.GetString("backend.base_url"),
			Timeout: seconds("backend.timeout"),
		},
		Jobs: JobsConfig{
			ReapSchedule: v.GetString("jobs.reap_schedule"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor timeout must be positive, got %s", c.Executor.Timeout)
	}
	if c.Server.StreamInterval <= 0 {
		return fmt.Errorf("stream interval must be positive, got %s", c.Server.StreamInterval)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend base url is required")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
