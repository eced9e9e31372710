package config

import (
	"errors"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Scheduling SchedulingConfig
	AntiAbuse  AntiAbuseConfig
	Reaper     ReaperConfig
	Exports    ExportsConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulingConfig governs quiz publish/reschedule validation.
type SchedulingConfig struct {
	// MinStartBuffer is the minimum lead time between "now" and a newly
	// proposed start time.
	MinStartBuffer time.Duration
	// MaxFutureWindow caps how far in the future a start time may be set.
	MaxFutureWindow time.Duration
	// DefaultTimezone is the zone substituted when a request carries an
	// unresolvable identifier. The substitution is logged.
	DefaultTimezone string
	// DisplayTimezones drives UI pickers; any resolvable IANA zone is
	// accepted by the validator regardless of this list.
	DisplayTimezones []string
}

// AntiAbuseConfig tunes the attempt validator heuristics.
type AntiAbuseConfig struct {
	StartRateLimit     int
	StartRateWindow    time.Duration
	DistinctQuizLimit  int
	DistinctQuizWindow time.Duration
	StaleSubmitAfter   time.Duration
}

// ReaperConfig controls the abandoned-attempt sweeper.
type ReaperConfig struct {
	Enabled     bool
	Interval    time.Duration
	StaleAfter  time.Duration
	Concurrency int
	MaxRetries  int
}

// ExportsConfig toggles educator report exports.
type ExportsConfig struct {
	Enabled bool
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
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduling = SchedulingConfig{
		MinStartBuffer:   parseDuration(v.GetString("SCHEDULING_MIN_START_BUFFER"), 5*time.Minute),
		MaxFutureWindow:  parseDuration(v.GetString("SCHEDULING_MAX_FUTURE_WINDOW"), 365*24*time.Hour),
		DefaultTimezone:  v.GetString("SCHEDULING_DEFAULT_TIMEZONE"),
		DisplayTimezones: splitAndTrim(v.GetString("SCHEDULING_DISPLAY_TIMEZONES")),
	}

	cfg.AntiAbuse = AntiAbuseConfig{
		StartRateLimit:     v.GetInt("ANTIABUSE_START_RATE_LIMIT"),
		StartRateWindow:    parseDuration(v.GetString("ANTIABUSE_START_RATE_WINDOW"), 5*time.Minute),
		DistinctQuizLimit:  v.GetInt("ANTIABUSE_DISTINCT_QUIZ_LIMIT"),
		DistinctQuizWindow: parseDuration(v.GetString("ANTIABUSE_DISTINCT_QUIZ_WINDOW"), 10*time.Minute),
		StaleSubmitAfter:   parseDuration(v.GetString("ANTIABUSE_STALE_SUBMIT_AFTER"), 4*time.Hour),
	}

	cfg.Reaper = ReaperConfig{
		Enabled:     v.GetBool("REAPER_ENABLED"),
		Interval:    parseDuration(v.GetString("REAPER_INTERVAL"), 10*time.Minute),
		StaleAfter:  parseDuration(v.GetString("REAPER_STALE_AFTER"), 2*time.Hour),
		Concurrency: v.GetInt("REAPER_CONCURRENCY"),
		MaxRetries:  v.GetInt("REAPER_MAX_RETRIES"),
	}

	cfg.Exports = ExportsConfig{Enabled: v.GetBool("ENABLE_EXPORTS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "quiz_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULING_MIN_START_BUFFER", "5m")
	v.SetDefault("SCHEDULING_MAX_FUTURE_WINDOW", "8760h")
	v.SetDefault("SCHEDULING_DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_DISPLAY_TIMEZONES", "Asia/Kolkata,America/New_York,America/Los_Angeles,Europe/London,Europe/Berlin,Australia/Sydney,UTC")

	v.SetDefault("ANTIABUSE_START_RATE_LIMIT", 3)
	v.SetDefault("ANTIABUSE_START_RATE_WINDOW", "5m")
	v.SetDefault("ANTIABUSE_DISTINCT_QUIZ_LIMIT", 3)
	v.SetDefault("ANTIABUSE_DISTINCT_QUIZ_WINDOW", "10m")
	v.SetDefault("ANTIABUSE_STALE_SUBMIT_AFTER", "4h")

	v.SetDefault("REAPER_ENABLED", true)
	v.SetDefault("REAPER_INTERVAL", "10m")
	v.SetDefault("REAPER_STALE_AFTER", "2h")
	v.SetDefault("REAPER_CONCURRENCY", 4)
	v.SetDefault("REAPER_MAX_RETRIES", 3)

	v.SetDefault("ENABLE_EXPORTS", true)
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
