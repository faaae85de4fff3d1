// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no config path is given.
const DefaultPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseURL"`
	LogLevel    string `yaml:"logLevel"`
	BaseURL     string `yaml:"baseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	AMQPURL string `yaml:"amqpURL"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`
	SessionTTL  string `yaml:"sessionTTL"`
	RefreshTTL  string `yaml:"refreshTTL"`
	ConfirmTTL  string `yaml:"confirmTTL"`

	SMTPHost     string `yaml:"smtpHost"`
	SMTPPort     int    `yaml:"smtpPort"`
	SMTPUsername string `yaml:"smtpUsername"`
	SMTPPassword string `yaml:"smtpPassword"`
	SMTPFrom     string `yaml:"smtpFrom"`
	SMTPFromName string `yaml:"smtpFromName"`
	SMTPSSL      bool   `yaml:"smtpSSL"`
	TemplatesDir string `yaml:"templatesDir"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	GoogleClientID     string `yaml:"googleClientId"`
	GoogleClientSecret string `yaml:"googleClientSecret"`
	GoogleCallbackURL  string `yaml:"googleCallbackUrl"`

	OpenLibraryURL string `yaml:"openLibraryUrl"`

	RegisterRateLimitPerMinute int `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	EmailRateLimitPerMinute    int `yaml:"emailRateLimitPerMinute"`

	// Comma-separated IPs/CIDRs of reverse proxies whose X-Forwarded-For
	// is believed when resolving rate limit keys.
	TrustedProxies string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *FileConfig) {
	overrides := map[string]*string{
		"PORT":                 &cfg.Port,
		"DATABASE_URL":         &cfg.DatabaseURL,
		"BASE_URL":             &cfg.BaseURL,
		"REDIS_ADDR":           &cfg.RedisAddr,
		"REDIS_PASSWORD":       &cfg.RedisPassword,
		"AMQP_URL":             &cfg.AMQPURL,
		"JWT_SECRET":           &cfg.JWTSecret,
		"JWT_ISSUER":           &cfg.JWTIssuer,
		"JWT_AUDIENCE":         &cfg.JWTAudience,
		"JWT_LEEWAY":           &cfg.JWTLeeway,
		"SESSION_TTL":          &cfg.SessionTTL,
		"REFRESH_TTL":          &cfg.RefreshTTL,
		"CONFIRM_TTL":          &cfg.ConfirmTTL,
		"SMTP_HOST":            &cfg.SMTPHost,
		"SMTP_USERNAME":        &cfg.SMTPUsername,
		"SMTP_PASSWORD":        &cfg.SMTPPassword,
		"SMTP_FROM":            &cfg.SMTPFrom,
		"SMTP_FROM_NAME":       &cfg.SMTPFromName,
		"TEMPLATES_DIR":        &cfg.TemplatesDir,
		"MINIO_ENDPOINT":       &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":     &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":     &cfg.MinioSecretKey,
		"MINIO_BUCKET":         &cfg.MinioBucket,
		"GOOGLE_CLIENT_ID":     &cfg.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": &cfg.GoogleClientSecret,
		"GOOGLE_CALLBACK_URL":  &cfg.GoogleCallbackURL,
		"OPEN_LIBRARY_URL":     &cfg.OpenLibraryURL,
		"TRUSTED_PROXIES":      &cfg.TrustedProxies,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMTPPort = n
		}
	}
	intOverrides := map[string]*int{
		"REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
		"LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"EMAIL_RATE_LIMIT_PER_MINUTE":    &cfg.EmailRateLimitPerMinute,
	}
	for env, field := range intOverrides {
		if v := os.Getenv(env); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*field = n
			}
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for token revocation and rate limiting")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.EmailRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ParseDuration parses an optional duration string; empty means zero.
func ParseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	return dur, nil
}
