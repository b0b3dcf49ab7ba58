package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Reset    ResetConfig
	Admin    AdminConfig
	SMTP     SMTPConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig carries the three independent signing keys. Access, refresh and
// admin tokens must never be verifiable with each other's secret, so the keys
// are configured separately instead of being derived from a shared base value.
type JWTConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AdminSecret       string
	AccessExpiration  time.Duration
	RefreshExpiration time.Duration
	AdminExpiration   time.Duration
	Issuer            string
}

// ResetConfig tunes the password reset flow.
type ResetConfig struct {
	CodeTTL       time.Duration
	TokenTTL      time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
}

// AdminConfig holds the operational escape hatch credential. An empty key
// disables the header bypass entirely.
type AdminConfig struct {
	OpsKey string
}

// SMTPConfig configures outbound password reset mail. An empty host switches
// the service to the log-only development mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing .env is fine; the environment can supply everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		AccessSecret:      v.GetString("JWT_ACCESS_SECRET"),
		RefreshSecret:     v.GetString("JWT_REFRESH_SECRET"),
		AdminSecret:       v.GetString("JWT_ADMIN_SECRET"),
		AccessExpiration:  parseDuration(v.GetString("JWT_ACCESS_EXPIRATION"), 15*time.Minute),
		RefreshExpiration: parseDuration(v.GetString("JWT_REFRESH_EXPIRATION"), 90*24*time.Hour),
		AdminExpiration:   parseDuration(v.GetString("JWT_ADMIN_EXPIRATION"), 12*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.Reset = ResetConfig{
		CodeTTL:       parseDuration(v.GetString("RESET_CODE_TTL"), 10*time.Minute),
		TokenTTL:      parseDuration(v.GetString("RESET_TOKEN_TTL"), 15*time.Minute),
		MaxAttempts:   v.GetInt("RESET_MAX_ATTEMPTS"),
		AttemptWindow: parseDuration(v.GetString("RESET_ATTEMPT_WINDOW"), time.Hour),
	}

	cfg.Admin = AdminConfig{OpsKey: v.GetString("ADMIN_OPS_KEY")}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	// Development gets throwaway signing keys so a bare checkout can boot.
	// They are deliberately not viper defaults: any other environment must
	// configure all three keys explicitly or Load fails below.
	if cfg.Env == EnvDevelopment {
		if cfg.JWT.AccessSecret == "" {
			cfg.JWT.AccessSecret = "dev_access_secret"
		}
		if cfg.JWT.RefreshSecret == "" {
			cfg.JWT.RefreshSecret = "dev_refresh_secret"
		}
		if cfg.JWT.AdminSecret == "" {
			cfg.JWT.AdminSecret = "dev_admin_secret"
		}
	}

	if err := cfg.validateSecrets(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecrets refuses to start outside development with missing or shared
// signing keys. Deriving one secret from another weakens role isolation if the
// base value partially leaks, so the three keys must be configured
// independently.
func (c *Config) validateSecrets() error {
	if c.Env == EnvDevelopment {
		return nil
	}
	secrets := map[string]string{
		"JWT_ACCESS_SECRET":  c.JWT.AccessSecret,
		"JWT_REFRESH_SECRET": c.JWT.RefreshSecret,
		"JWT_ADMIN_SECRET":   c.JWT.AdminSecret,
	}
	seen := make(map[string]string, len(secrets))
	for name, value := range secrets {
		if value == "" {
			return fmt.Errorf("config: %s must be set when ENV is %q", name, c.Env)
		}
		if other, dup := seen[value]; dup {
			return fmt.Errorf("config: %s and %s must not share the same value", name, other)
		}
		seen[value] = name
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "drivehub")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ACCESS_EXPIRATION", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRATION", "2160h")
	v.SetDefault("JWT_ADMIN_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "drivehub-auth")

	v.SetDefault("RESET_CODE_TTL", "10m")
	v.SetDefault("RESET_TOKEN_TTL", "15m")
	v.SetDefault("RESET_MAX_ATTEMPTS", 3)
	v.SetDefault("RESET_ATTEMPT_WINDOW", "1h")

	v.SetDefault("ADMIN_OPS_KEY", "")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@drivehub.app")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
