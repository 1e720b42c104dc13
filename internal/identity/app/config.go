package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/portalid/internal/identity/policy"
	"gopkg.in/yaml.v3"
)

const (
	MailDriverLog   = "log"
	MailDriverRedis = "redis"
)

// Config is loaded from defaults, then the optional YAML file named by
// IDENTITY_CONFIG_FILE, then environment variables.
type Config struct {
	Env       string `yaml:"env"`       // Environment (dev, staging, prod) (default: dev)
	LogLevel  string `yaml:"logLevel"`  // Log level (debug, info, warn, error) (default: info)
	LogFormat string `yaml:"logFormat"` // Log format (json, text) (default: json)
	Port      int    `yaml:"port"`      // HTTP server port (default: 8080)

	DatabaseFile string `yaml:"databaseFile"` // SQLite database file (default: ./identity.db)
	PepperFile   string `yaml:"pepperFile"`   // Password hashing pepper, created on first start (default: ./pepper)
	PublicURL    string `yaml:"publicURL"`    // Base URL for links in outbound email

	JWTIssuer        string `yaml:"jwtIssuer"`        // Optional: required iss of bearer tokens
	JWTSecret        string `yaml:"-"`                // HS256 secret; env only
	JWTPublicKeyFile string `yaml:"jwtPublicKeyFile"` // EdDSA public key; wins over JWTSecret

	RedisAddr     string `yaml:"redisAddr"` // Optional: enables the Redis outbox and session invalidation
	RedisPassword string `yaml:"-"`
	RedisDB       int    `yaml:"redisDB"`
	MailDriver    string `yaml:"mailDriver"` // log or redis (default: log)

	VerificationTTL  time.Duration `yaml:"verificationTTL"`
	ResetTTL         time.Duration `yaml:"resetTTL"`
	CompletionTTL    time.Duration `yaml:"completionTTL"`
	ResetMaxRequests int           `yaml:"resetMaxRequests"`
	ResetWindow      time.Duration `yaml:"resetWindow"`
	TokenRetention   time.Duration `yaml:"tokenRetention"` // 0 keeps tokens forever

	HousekeepingInterval time.Duration `yaml:"housekeepingInterval"` // default: 1h
	ShutdownGracePeriod  time.Duration `yaml:"shutdownGracePeriod"`  // default: 10s

	PasswordPolicy policy.Config `yaml:"passwordPolicy"`
}

func defaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		DatabaseFile:         "identity.db",
		PepperFile:           "pepper",
		PublicURL:            "http://localhost:8080",
		MailDriver:           MailDriverLog,
		HousekeepingInterval: time.Hour,
		ShutdownGracePeriod:  10 * time.Second,
	}
}

func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("IDENTITY_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)

	cfg.DatabaseFile = getEnvOrDefault("IDENTITY_DATABASE_FILE", cfg.DatabaseFile)
	cfg.PepperFile = getEnvOrDefault("IDENTITY_PEPPER_FILE", cfg.PepperFile)
	cfg.PublicURL = getEnvOrDefault("IDENTITY_PUBLIC_URL", cfg.PublicURL)

	cfg.JWTIssuer = getEnvOrDefault("IDENTITY_JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTSecret = getEnvOrDefault("IDENTITY_JWT_SECRET", cfg.JWTSecret)
	cfg.JWTPublicKeyFile = getEnvOrDefault("IDENTITY_JWT_PUBLIC_KEY_FILE", cfg.JWTPublicKeyFile)

	cfg.RedisAddr = getEnvOrDefault("IDENTITY_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("IDENTITY_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = getEnvIntOrDefault("IDENTITY_REDIS_DB", cfg.RedisDB)
	cfg.MailDriver = getEnvOrDefault("IDENTITY_MAIL_DRIVER", cfg.MailDriver)

	cfg.VerificationTTL = getEnvDurationOrDefault("IDENTITY_VERIFICATION_TTL", cfg.VerificationTTL)
	cfg.ResetTTL = getEnvDurationOrDefault("IDENTITY_RESET_TTL", cfg.ResetTTL)
	cfg.CompletionTTL = getEnvDurationOrDefault("IDENTITY_COMPLETION_TTL", cfg.CompletionTTL)
	cfg.ResetMaxRequests = getEnvIntOrDefault("IDENTITY_RESET_MAX_REQUESTS", cfg.ResetMaxRequests)
	cfg.ResetWindow = getEnvDurationOrDefault("IDENTITY_RESET_WINDOW", cfg.ResetWindow)
	cfg.TokenRetention = getEnvDurationOrDefault("IDENTITY_TOKEN_RETENTION", cfg.TokenRetention)

	cfg.HousekeepingInterval = getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", cfg.HousekeepingInterval)
	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && c.JWTPublicKeyFile == "" {
		errs = append(errs, errors.New("one of IDENTITY_JWT_SECRET or IDENTITY_JWT_PUBLIC_KEY_FILE is required"))
	}
	if c.JWTPublicKeyFile == "" && c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("IDENTITY_JWT_SECRET must be at least 32 bytes"))
	}
	switch c.MailDriver {
	case MailDriverLog:
	case MailDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("mail driver redis needs IDENTITY_REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail driver %q", c.MailDriver))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
