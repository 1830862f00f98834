package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	MetricsPort string
	GRPCPort    string
	RedisAddr   string
	RedisDB     int

	// Startup connection, used only when nothing is persisted yet.
	TraccarBaseURL  string
	TraccarUsername string
	TraccarPassword string

	DevicesInterval   time.Duration
	PositionsInterval time.Duration
	RequestTimeout    time.Duration
	TraccarRPS        int

	NATSURL      string
	NATSUser     string
	NATSPassword string
	NATSSubject  string

	RawLogDir string
	GinMode   string
}

// Load reads the process environment. A .env file in the working
// directory is applied first; variables already set win over it.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "9000"),
		GRPCPort:    lookupEnv("GRPC_PORT", "50051"),
		RedisAddr:   lookupEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvAsInt("REDIS_DB", 0),

		TraccarBaseURL:  strings.TrimSpace(os.Getenv("TRACCAR_BASE_URL")),
		TraccarUsername: strings.TrimSpace(os.Getenv("TRACCAR_USERNAME")),
		TraccarPassword: os.Getenv("TRACCAR_PASSWORD"),

		DevicesInterval:   getEnvAsDuration("DEVICES_INTERVAL", 60*time.Second),
		PositionsInterval: getEnvAsDuration("POSITIONS_INTERVAL", 15*time.Second),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		TraccarRPS:        getEnvAsInt("TRACCAR_RPS", 5),

		NATSURL:      os.Getenv("NATS_URL"),
		NATSUser:     os.Getenv("NATS_USER"),
		NATSPassword: os.Getenv("NATS_PASSWORD"),
		NATSSubject:  getEnv("NATS_SUBJECT", "crew.staff.snapshot"),

		RawLogDir: os.Getenv("RAW_LOG_DIR"),
		GinMode:   getEnv("GIN_MODE", "release"),
	}
}

// HasTraccarDefaults reports whether the environment carries a complete
// startup connection. The password may be empty only if explicitly unset
// upstream, so it is required to be non-empty here as well.
func (c Config) HasTraccarDefaults() bool {
	return c.TraccarBaseURL != "" && c.TraccarUsername != "" && c.TraccarPassword != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// lookupEnv differs from getEnv in that a variable set to "" is kept, so
// optional listeners and backends can be switched off explicitly.
func lookupEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
