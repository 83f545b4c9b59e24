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
	Timezone  string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Reconciliation ReconciliationConfig
	Schedule       ScheduleConfig
	Sync           SyncConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReconciliationConfig tunes the Transdata x Globus comparison runs.
type ReconciliationConfig struct {
	Tolerance    time.Duration
	Timeout      time.Duration
	LockTTL      time.Duration
	CacheTTL     time.Duration
	DefaultLimit int
}

// ScheduleConfig tunes the schedule control (overlay) endpoints.
type ScheduleConfig struct {
	DefaultLimit int
}

// SyncConfig configures pulls from the upstream trip sources.
type SyncConfig struct {
	Workers     int
	Retries     int
	RetryDelay  time.Duration
	ArchiveDir  string
	HTTPTimeout time.Duration
	APIToken    string
	Transdata   SourceConfig
	Globus      SourceConfig
}

// SourceConfig points at one upstream trip API.
type SourceConfig struct {
	URL         string
	RecordsPath string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
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
	cfg.Timezone = v.GetString("TIMEZONE")

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	tolerance := v.GetInt("RECONCILIATION_TOLERANCE_MINUTES")
	if tolerance < 0 {
		tolerance = 5
	}
	cfg.Reconciliation = ReconciliationConfig{
		Tolerance:    time.Duration(tolerance) * time.Minute,
		Timeout:      parseDuration(v.GetString("RECONCILIATION_TIMEOUT"), 2*time.Minute),
		LockTTL:      parseDuration(v.GetString("RECONCILIATION_LOCK_TTL"), 5*time.Minute),
		CacheTTL:     parseDuration(v.GetString("RECONCILIATION_CACHE_TTL"), 10*time.Minute),
		DefaultLimit: v.GetInt("RECONCILIATION_PAGE_SIZE"),
	}

	cfg.Schedule = ScheduleConfig{
		DefaultLimit: v.GetInt("SCHEDULE_PAGE_SIZE"),
	}

	cfg.Sync = SyncConfig{
		Workers:     v.GetInt("SYNC_WORKERS"),
		Retries:     v.GetInt("SYNC_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("SYNC_RETRY_DELAY"), 30*time.Second),
		ArchiveDir:  v.GetString("SYNC_ARCHIVE_DIR"),
		HTTPTimeout: parseDuration(v.GetString("SYNC_HTTP_TIMEOUT"), 30*time.Second),
		APIToken:    v.GetString("SYNC_API_TOKEN"),
		Transdata: SourceConfig{
			URL:         v.GetString("TRANSDATA_API_URL"),
			RecordsPath: v.GetString("TRANSDATA_RECORDS_PATH"),
		},
		Globus: SourceConfig{
			URL:         v.GetString("GLOBUS_API_URL"),
			RecordsPath: v.GetString("GLOBUS_RECORDS_PATH"),
		},
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "America/Sao_Paulo")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "controle_horarios")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "trip-control-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RECONCILIATION_TOLERANCE_MINUTES", 5)
	v.SetDefault("RECONCILIATION_TIMEOUT", "2m")
	v.SetDefault("RECONCILIATION_LOCK_TTL", "5m")
	v.SetDefault("RECONCILIATION_CACHE_TTL", "10m")
	v.SetDefault("RECONCILIATION_PAGE_SIZE", 150)
	v.SetDefault("SCHEDULE_PAGE_SIZE", 150)

	v.SetDefault("SYNC_WORKERS", 1)
	v.SetDefault("SYNC_RETRIES", 3)
	v.SetDefault("SYNC_RETRY_DELAY", "30s")
	v.SetDefault("SYNC_ARCHIVE_DIR", "./sync-archive")
	v.SetDefault("SYNC_HTTP_TIMEOUT", "30s")
	v.SetDefault("SYNC_API_TOKEN", "")
	v.SetDefault("TRANSDATA_API_URL", "")
	v.SetDefault("TRANSDATA_RECORDS_PATH", "data")
	v.SetDefault("GLOBUS_API_URL", "")
	v.SetDefault("GLOBUS_RECORDS_PATH", "data")
}

// isMissingFile reports viper's os-level error for an absent .env when SetConfigFile is used.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
