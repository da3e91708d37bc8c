package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ServerPort  string

	AuthJWTSecret  string
	AdminTokenHash string

	OTLPEndpoint string

	Square SquareConfig

	WebhookPath         string
	CheckoutRedirectURL string

	RateLimitPerMinute int

	Redis RedisConfig

	MetricsPush MetricsPushConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
}

type SquareConfig struct {
	Environment     string
	AccessToken     string
	SignatureKey    string
	LocationID      string
	APIVersion      string
	Timeout         time.Duration
	ReadAttempts    int
	BaseURLOverride string
}

// MetricsPushConfig points short-lived jobs at a Pushgateway or remote_write endpoint.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RequiredEnv lists the variables that must be present before the service starts.
var RequiredEnv = []string{
	"SQUARE_SIGNATURE_KEY",
	"SQUARE_ACCESS_TOKEN",
	"SQUARE_LOCATION_ID",
	"AUTH_JWT_SECRET",
}

var ErrMissingEnv = errors.New("missing_required_env")

// MissingEnvError reports every required variable absent from the environment.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return ".env file missing required field: " + strings.Join(e.Keys, ", ")
}

func (e *MissingEnvError) Unwrap() error {
	return ErrMissingEnv
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	return Config{
		AppName:        getenv("APP_SERVICE", "railbook"),
		AppVersion:     getenv("APP_VERSION", "0.1.0"),
		Environment:    environment,
		ServerPort:     getenv("SERVER_PORT", "3000"),
		AuthJWTSecret:  strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AdminTokenHash: strings.TrimSpace(getenv("ADMIN_TOKEN_HASH", "")),
		OTLPEndpoint:   getenv("OTLP_ENDPOINT", "localhost:4317"),
		Square: SquareConfig{
			Environment:     strings.ToLower(getenv("SQUARE_ENVIRONMENT", "sandbox")),
			AccessToken:     strings.TrimSpace(getenv("SQUARE_ACCESS_TOKEN", "")),
			SignatureKey:    getenv("SQUARE_SIGNATURE_KEY", ""),
			LocationID:      strings.TrimSpace(getenv("SQUARE_LOCATION_ID", "")),
			APIVersion:      getenv("SQUARE_API_VERSION", "2024-01-18"),
			Timeout:         time.Duration(getenvInt("GATEWAY_TIMEOUT_SECONDS", 10)) * time.Second,
			ReadAttempts:    getenvInt("GATEWAY_READ_ATTEMPTS", 3),
			BaseURLOverride: strings.TrimSpace(getenv("SQUARE_BASE_URL", "")),
		},
		WebhookPath:         getenv("WEBHOOK_PATH", "/api/events"),
		CheckoutRedirectURL: getenv("CHECKOUT_REDIRECT_URL", "http://localhost:3000/booking/confirmed"),
		RateLimitPerMinute:  getenvInt("RATE_LIMIT_PER_MINUTE", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "railbook"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),
	}
}

// CheckRequired returns a *MissingEnvError naming every unset required variable.
func CheckRequired(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var missing []string
	for _, key := range RequiredEnv {
		if v, ok := lookup(key); !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingEnvError{Keys: missing}
	}
	return nil
}

// IsDevelopment reports whether raw gateway details may be echoed to clients.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func (c Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
