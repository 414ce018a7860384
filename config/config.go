package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "dev-secret-key"

// Store backends
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
)

// Auth modes
const (
	AuthLocal    = "local"
	AuthFirebase = "firebase"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	JWT       JWTConfig
	Auth      AuthConfig
	Store     StoreConfig
	Firebase  FirebaseConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Intel     IntelConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
}

type JWTConfig struct {
	Secret                 string
	Expiration             time.Duration
	RefreshTokenExpiration time.Duration
}

type AuthConfig struct {
	Mode       string
	BcryptCost int
}

type StoreConfig struct {
	Backend string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RedisConfig enables the daily report quota when Address is set.
type RedisConfig struct {
	Address          string
	Password         string
	ReportDailyLimit int
}

// IntelConfig points at the optional summarization and speech services.
type IntelConfig struct {
	Endpoint       string
	SpeechEndpoint string
	APIKey         string
	Timeout        time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Host:        getEnv("HOST", "0.0.0.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", DefaultJWTSecret),
			Expiration:             parseDuration(getEnv("JWT_EXPIRATION", "30m"), 30*time.Minute),
			RefreshTokenExpiration: parseDuration(getEnv("REFRESH_TOKEN_EXPIRATION", "7d"), 7*24*time.Hour),
		},
		Auth: AuthConfig{
			Mode:       getEnv("AUTH_MODE", AuthLocal),
			BcryptCost: parseInt(getEnv("BCRYPT_COST", "12"), 12),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", BackendFirestore),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseStringSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
		RateLimit: RateLimitConfig{
			Requests: parseInt(getEnv("RATE_LIMIT_REQUESTS", "100"), 100),
			Window:   parseDuration(getEnv("RATE_LIMIT_WINDOW", "60"), 60*time.Second),
		},
		Redis: RedisConfig{
			Address:          getEnv("REDIS_ADDRESS", ""),
			Password:         getEnv("REDIS_PASSWORD", ""),
			ReportDailyLimit: parseInt(getEnv("REPORT_DAILY_LIMIT", "5"), 5),
		},
		Intel: IntelConfig{
			Endpoint:       getEnv("INTEL_ENDPOINT", ""),
			SpeechEndpoint: getEnv("INTEL_SPEECH_ENDPOINT", ""),
			APIKey:         getEnv("INTEL_API_KEY", ""),
			Timeout:        parseDuration(getEnv("INTEL_TIMEOUT", "15s"), 15*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, defaultValue int) int {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultValue
}

func parseDuration(s string, defaultValue time.Duration) time.Duration {
	// Handle simple formats like "30m", "7d", "60"
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if i, err := strconv.Atoi(days); err == nil {
			return time.Duration(i) * 24 * time.Hour
		}
	}
	// If it's just a number, assume seconds
	if i, err := strconv.Atoi(s); err == nil {
		return time.Duration(i) * time.Second
	}
	return defaultValue
}

func parseStringSlice(s string) []string {
	result := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// Addr is the listen address
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == DefaultJWTSecret && c.IsProduction() {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}

	switch c.Store.Backend {
	case BackendFirestore:
		if c.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID must be set for the firestore backend"))
		}
	case BackendMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("the memory backend cannot be used in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}

	switch c.Auth.Mode {
	case AuthLocal:
	case AuthFirebase:
		if c.Store.Backend == BackendMemory {
			errs = append(errs, errors.New("AUTH_MODE=firebase requires the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode))
	}

	if c.Firebase.CredentialsPath != "" {
		if _, err := os.Stat(c.Firebase.CredentialsPath); os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("firebase credentials file not found: %s", c.Firebase.CredentialsPath))
		}
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}
