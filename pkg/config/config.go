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
	Backend    BackendConfig
	Dashboard  DashboardConfig
	Syllabus   SyllabusConfig
	Attendance AttendanceConfig
	Uploads    UploadsConfig
	Exports    ExportsConfig
}

// DatabaseConfig points at the Postgres instance holding check-in state.
type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

// RedisConfig configures the shared view cache. A disabled cache makes every
// lookup a miss.
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	DialTimeout time.Duration
}

// JWTConfig holds the shared secret used to verify portal session tokens.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BackendConfig points the service at the hosted relational backend.
type BackendConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	JitterMax       time.Duration
	SequentialDelay time.Duration
}

// DashboardConfig governs dashboard exposure, cache and session tuning.
type DashboardConfig struct {
	Enabled    bool
	CacheTTL   time.Duration
	SessionTTL time.Duration
	TopN       int
	SemesterID string
	Clinics    []string
}

// SyllabusConfig carries the course constants used for expected-hours maths.
type SyllabusConfig struct {
	HoursPerStudentPerWeek float64
	ClientHoursTarget      float64
	ClassHour              int
	ClassMinute            int
}

// AttendanceConfig controls the password-gated check-in.
type AttendanceConfig struct {
	Enabled    bool
	BcryptCost int
}

// UploadsConfig controls the signed document upload handshake.
type UploadsConfig struct {
	Enabled          bool
	StorageDir       string
	PublicBaseURL    string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ExportsConfig configures dashboard export generation.
type ExportsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
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

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		MigrateOnStart: v.GetBool("DB_MIGRATE_ON_START"),
	}

	cfg.Redis = RedisConfig{
		Enabled:     v.GetBool("REDIS_ENABLED"),
		Host:        v.GetString("REDIS_HOST"),
		Port:        v.GetInt("REDIS_PORT"),
		Password:    v.GetString("REDIS_PASSWORD"),
		DB:          v.GetInt("REDIS_DB"),
		DialTimeout: parseDuration(v.GetString("REDIS_DIAL_TIMEOUT"), 5*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxRetries := v.GetInt("BACKEND_MAX_RETRIES")
	if maxRetries < 2 {
		maxRetries = 2
	}
	cfg.Backend = BackendConfig{
		BaseURL:         strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		APIKey:          v.GetString("BACKEND_API_KEY"),
		Timeout:         parseDuration(v.GetString("BACKEND_TIMEOUT"), 15*time.Second),
		MaxRetries:      maxRetries,
		BackoffBase:     parseDuration(v.GetString("BACKEND_BACKOFF_BASE"), 800*time.Millisecond),
		JitterMax:       parseDuration(v.GetString("BACKEND_JITTER_MAX"), 300*time.Millisecond),
		SequentialDelay: parseDuration(v.GetString("BACKEND_SEQUENTIAL_DELAY"), 600*time.Millisecond),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:    v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL:   parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
		SessionTTL: parseDuration(v.GetString("DASHBOARD_SESSION_TTL"), 30*time.Minute),
		TopN:       v.GetInt("DASHBOARD_TOP_N"),
		SemesterID: v.GetString("DASHBOARD_SEMESTER_ID"),
		Clinics:    splitAndTrim(v.GetString("AUDIT_CLINICS")),
	}

	cfg.Syllabus = SyllabusConfig{
		HoursPerStudentPerWeek: v.GetFloat64("SYLLABUS_HOURS_PER_WEEK"),
		ClientHoursTarget:      v.GetFloat64("SYLLABUS_CLIENT_HOURS_TARGET"),
		ClassHour:              v.GetInt("SYLLABUS_CLASS_HOUR"),
		ClassMinute:            v.GetInt("SYLLABUS_CLASS_MINUTE"),
	}

	cfg.Attendance = AttendanceConfig{
		Enabled:    v.GetBool("ENABLE_ATTENDANCE"),
		BcryptCost: v.GetInt("ATTENDANCE_BCRYPT_COST"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Enabled:          v.GetBool("ENABLE_UPLOADS"),
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		PublicBaseURL:    strings.TrimRight(v.GetString("UPLOADS_PUBLIC_BASE_URL"), "/"),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

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
	v.SetDefault("DB_NAME", "clinic_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE_ON_START", true)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3000")
	v.SetDefault("BACKEND_API_KEY", "")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_MAX_RETRIES", 3)
	v.SetDefault("BACKEND_BACKOFF_BASE", "800ms")
	v.SetDefault("BACKEND_JITTER_MAX", "300ms")
	v.SetDefault("BACKEND_SEQUENTIAL_DELAY", "600ms")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "60s")
	v.SetDefault("DASHBOARD_SESSION_TTL", "30m")
	v.SetDefault("DASHBOARD_TOP_N", 10)
	v.SetDefault("DASHBOARD_SEMESTER_ID", "")
	v.SetDefault("AUDIT_CLINICS", "Accounting,Consulting,Marketing,Resource Acquisition")

	v.SetDefault("SYLLABUS_HOURS_PER_WEEK", 3)
	v.SetDefault("SYLLABUS_CLIENT_HOURS_TARGET", 60)
	v.SetDefault("SYLLABUS_CLASS_HOUR", 19)
	v.SetDefault("SYLLABUS_CLASS_MINUTE", 30)

	v.SetDefault("ENABLE_ATTENDANCE", true)
	v.SetDefault("ATTENDANCE_BCRYPT_COST", 10)

	v.SetDefault("ENABLE_UPLOADS", false)
	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_PUBLIC_BASE_URL", "http://localhost:8080/files")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "15m")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,image/png,image/jpeg")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

func isMissingFile(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such file") || strings.Contains(msg, "cannot find the file")
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
