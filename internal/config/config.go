package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	productionAPIBaseURL  = "https://audiobrew-backend.onrender.com"
	developmentAPIBaseURL = "http://localhost:8000"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	API         APIConfig
	Supabase    SupabaseConfig
	Session     SessionConfig
	Redis       RedisConfig
	Bolt        BoltConfig
	RateLimit   RateLimitConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host          string
	Port          string
	PublicURL     string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	MaxConn       int
	EnableMetrics bool
}

// APIConfig points at the FastAPI backend.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SupabaseConfig struct {
	URL       string
	AnonKey   string
	JWTSecret string
}

type SessionConfig struct {
	// Store is either "redis" or "bolt".
	Store         string
	CookieName    string
	CookieSecure  bool
	TTL           time.Duration
	RefreshLeeway time.Duration
	SweepInterval time.Duration
	GenerationTTL time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type BoltConfig struct {
	Path string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults suitable for local development.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	env := getString("APP_ENV", EnvDevelopment)
	cfg := &Config{
		AppName:     getString("APP_NAME", "audiobrew-web"),
		Environment: env,
		HTTP: HTTPConfig{
			Host:          getString("SERVER_HOST", "0.0.0.0"),
			Port:          getString("SERVER_PORT", "5173"),
			PublicURL:     strings.TrimRight(getString("PUBLIC_URL", "http://localhost:5173"), "/"),
			ReadTimeout:   getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:  getDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:   getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:       getInt("SERVER_MAX_CONN", 0),
			EnableMetrics: getBool("SERVER_ENABLE_METRICS", true),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(getString("API_BASE_URL", defaultAPIBaseURL(env)), "/"),
			Timeout: getDuration("API_TIMEOUT", 30*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:       strings.TrimRight(os.Getenv("PUBLIC_SUPABASE_URL"), "/"),
			AnonKey:   os.Getenv("PUBLIC_SUPABASE_ANON_KEY"),
			JWTSecret: os.Getenv("SUPABASE_JWT_SECRET"),
		},
		Session: SessionConfig{
			Store:         getString("SESSION_STORE", "bolt"),
			CookieName:    getString("SESSION_COOKIE_NAME", "audiobrew-session"),
			CookieSecure:  getBool("SESSION_COOKIE_SECURE", env == EnvProduction),
			TTL:           getDuration("SESSION_TTL", 7*24*time.Hour),
			RefreshLeeway: getDuration("SESSION_REFRESH_LEEWAY", 30*time.Second),
			SweepInterval: getDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
			GenerationTTL: getDuration("GENERATION_TTL", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/sessions.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBool("RATE_LIMIT_ENABLED", true),
			RPS:     getFloat("RATE_LIMIT_RPS", 10),
			Burst:   getInt("RATE_LIMIT_BURST", 30),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 35*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
		return fmt.Errorf("PUBLIC_SUPABASE_URL and PUBLIC_SUPABASE_ANON_KEY are required")
	}
	switch c.Session.Store {
	case "redis", "bolt":
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store)
	}
	return nil
}

func defaultAPIBaseURL(env string) string {
	if env == EnvProduction {
		return productionAPIBaseURL
	}
	return developmentAPIBaseURL
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}
