package config

import (
	"errors"
	"io/fs"
	"strconv"
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
	Log      LogConfig
	Workflow WorkflowConfig
	Mirror   MirrorConfig
	Metrics  MetricsConfig
	CORS     CORSConfig
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
	// ProfileTable is the externally owned candidate profile table read by the directory adapter.
	ProfileTable string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level  string
	Format string
}

// WorkflowConfig tunes the interactive booking dialog.
type WorkflowConfig struct {
	SessionTTL time.Duration
}

// MirrorConfig controls the spreadsheet mirror of bookings.
type MirrorConfig struct {
	Enabled             bool
	SpreadsheetID       string
	CredentialsFile     string
	SheetNames          map[int64]string
	Workers             int
	BufferSize          int
	MaxAttempts         int
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	WriteQuotaPerMinute int
	ReconcileInterval   time.Duration
	CallTimeout         time.Duration
}

// CORSConfig lists origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
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
		ProfileTable: v.GetString("DB_PROFILE_TABLE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Workflow = WorkflowConfig{
		SessionTTL: parseDuration(v.GetString("WORKFLOW_SESSION_TTL"), 30*time.Minute),
	}

	cfg.Mirror = MirrorConfig{
		Enabled:             v.GetBool("ENABLE_MIRROR"),
		SpreadsheetID:       v.GetString("MIRROR_SPREADSHEET_ID"),
		CredentialsFile:     v.GetString("MIRROR_CREDENTIALS_FILE"),
		SheetNames:          parseSheetNames(v.GetString("MIRROR_SHEET_NAMES")),
		Workers:             v.GetInt("MIRROR_WORKERS"),
		BufferSize:          v.GetInt("MIRROR_BUFFER_SIZE"),
		MaxAttempts:         v.GetInt("MIRROR_MAX_ATTEMPTS"),
		BaseDelay:           parseDuration(v.GetString("MIRROR_BASE_DELAY"), time.Second),
		MaxDelay:            parseDuration(v.GetString("MIRROR_MAX_DELAY"), 30*time.Second),
		WriteQuotaPerMinute: v.GetInt("MIRROR_WRITE_QUOTA_PER_MINUTE"),
		ReconcileInterval:   parseDuration(v.GetString("MIRROR_RECONCILE_INTERVAL"), 15*time.Minute),
		CallTimeout:         parseDuration(v.GetString("MIRROR_CALL_TIMEOUT"), 20*time.Second),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

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
	v.SetDefault("DB_NAME", "interview_slots")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_PROFILE_TABLE", "candidate_profiles")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("WORKFLOW_SESSION_TTL", "30m")

	v.SetDefault("ENABLE_MIRROR", false)
	v.SetDefault("MIRROR_SPREADSHEET_ID", "")
	v.SetDefault("MIRROR_CREDENTIALS_FILE", "./credentials.json")
	v.SetDefault("MIRROR_SHEET_NAMES", "")
	v.SetDefault("MIRROR_WORKERS", 2)
	v.SetDefault("MIRROR_BUFFER_SIZE", 256)
	v.SetDefault("MIRROR_MAX_ATTEMPTS", 5)
	v.SetDefault("MIRROR_BASE_DELAY", "1s")
	v.SetDefault("MIRROR_MAX_DELAY", "30s")
	v.SetDefault("MIRROR_WRITE_QUOTA_PER_MINUTE", 60)
	v.SetDefault("MIRROR_RECONCILE_INTERVAL", "15m")
	v.SetDefault("MIRROR_CALL_TIMEOUT", "20s")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
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

// parseSheetNames reads "1:Engineering,2:Design" into a department → sheet map.
func parseSheetNames(raw string) map[int64]string {
	result := make(map[int64]string)
	for _, part := range splitAndTrim(raw) {
		key, name, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		result[id] = name
	}
	return result
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
