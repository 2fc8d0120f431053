package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DefaultTimeSlots is the fixed daily grid of lesson start times.
var DefaultTimeSlots = []string{"09:00", "10:30", "12:00", "13:30", "15:00", "16:30", "18:00", "19:30"}

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Storage   StorageConfig
	Mail      MailConfig
	Booking   BookingConfig
	Messaging MessagingConfig
	Metrics   MetricsConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig controls the object buckets and signed download links.
type StorageConfig struct {
	Dir              string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MailConfig configures outbound email. An empty API key selects the console sender.
type MailConfig struct {
	SendgridAPIKey  string
	FromName        string
	FromAddress     string
	OperatorAddress string
	Workers         int
	Retries         int
}

// BookingConfig holds the slot grid and scheduling knobs.
type BookingConfig struct {
	Timezone             string
	TimeSlots            []string
	AvailabilityCacheTTL time.Duration
	SweepSchedule        string
}

// MessagingConfig tunes realtime delivery.
type MessagingConfig struct {
	FallbackInterval time.Duration
	PingInterval     time.Duration
	RedisChannel     string
}

type MetricsConfig struct {
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 20 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Dir:              v.GetString("STORAGE_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
	}

	workers := v.GetInt("MAIL_WORKERS")
	if workers <= 0 {
		workers = 1
	}
	cfg.Mail = MailConfig{
		SendgridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		FromName:        v.GetString("MAIL_FROM_NAME"),
		FromAddress:     v.GetString("MAIL_FROM_ADDRESS"),
		OperatorAddress: v.GetString("MAIL_OPERATOR_ADDRESS"),
		Workers:         workers,
		Retries:         v.GetInt("MAIL_RETRIES"),
	}

	slots := splitAndTrim(v.GetString("BOOKING_TIME_SLOTS"))
	if len(slots) == 0 {
		slots = append([]string(nil), DefaultTimeSlots...)
	}
	cfg.Booking = BookingConfig{
		Timezone:             v.GetString("BOOKING_TIMEZONE"),
		TimeSlots:            slots,
		AvailabilityCacheTTL: parseDuration(v.GetString("AVAILABILITY_CACHE_TTL"), time.Minute),
		SweepSchedule:        v.GetString("BOOKING_SWEEP_SCHEDULE"),
	}

	cfg.Messaging = MessagingConfig{
		FallbackInterval: parseDuration(v.GetString("MESSAGING_FALLBACK_INTERVAL"), 7*time.Second),
		PingInterval:     parseDuration(v.GetString("MESSAGING_PING_INTERVAL"), 30*time.Second),
		RedisChannel:     v.GetString("MESSAGING_REDIS_CHANNEL"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tutor")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_DIR", "./buckets")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 20*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "application/pdf,image/png,image/jpeg,application/zip,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain; charset=utf-8")

	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("MAIL_FROM_NAME", "Tutor")
	v.SetDefault("MAIL_FROM_ADDRESS", "no-reply@tutor.local")
	v.SetDefault("MAIL_OPERATOR_ADDRESS", "operator@tutor.local")
	v.SetDefault("MAIL_WORKERS", 1)
	v.SetDefault("MAIL_RETRIES", 2)

	v.SetDefault("BOOKING_TIMEZONE", "Europe/Moscow")
	v.SetDefault("BOOKING_TIME_SLOTS", strings.Join(DefaultTimeSlots, ","))
	v.SetDefault("AVAILABILITY_CACHE_TTL", "1m")
	v.SetDefault("BOOKING_SWEEP_SCHEDULE", "@every 15m")

	v.SetDefault("MESSAGING_FALLBACK_INTERVAL", "7s")
	v.SetDefault("MESSAGING_PING_INTERVAL", "30s")
	v.SetDefault("MESSAGING_REDIS_CHANNEL", "tutor:messages")

	v.SetDefault("ENABLE_METRICS", true)
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
