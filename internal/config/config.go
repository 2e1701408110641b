package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Feed         FeedConfig
	Workspace    WorkspaceConfig
	Mutation     MutationConfig
	Storage      StorageConfig
	Calendar     CalendarConfig
	Bootstrap    BootstrapConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory backend.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// FeedConfig selects the change-feed driver.
type FeedConfig struct {
	Driver        string
	ChannelPrefix string
}

// WorkspaceConfig tunes per-identity workspaces.
type WorkspaceConfig struct {
	IdleMinutes      int
	ReadyTimeoutSecs int
	ReapIntervalSecs int
	NoticeTTLSeconds int
}

// MutationConfig tunes the write path.
type MutationConfig struct {
	MaxRetries     int
	RetryBackoffMs int
	AtomicAppend   bool
}

// StorageConfig configures attachment uploads.
type StorageConfig struct {
	UploadDir     string
	PublicBaseURL string
	MaxUploadMB   int
}

// CalendarConfig configures the external calendar collaborator.
type CalendarConfig struct {
	Enabled    bool
	CalendarID string
}

// BootstrapConfig seeds the first super admin.
type BootstrapConfig struct {
	SuperAdminName     string
	SuperAdminEmail    string
	SuperAdminPassword string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "workflow-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Feed: FeedConfig{
			Driver:        getEnv("FEED_DRIVER", "redis"),
			ChannelPrefix: getEnv("FEED_CHANNEL_PREFIX", "workflow:changes:"),
		},
		Workspace: WorkspaceConfig{
			IdleMinutes:      getEnvAsInt("WORKSPACE_IDLE_MINUTES", 30),
			ReadyTimeoutSecs: getEnvAsInt("WORKSPACE_READY_TIMEOUT_SECONDS", 5),
			ReapIntervalSecs: getEnvAsInt("WORKSPACE_REAP_INTERVAL_SECONDS", 60),
			NoticeTTLSeconds: getEnvAsInt("WORKSPACE_NOTICE_TTL_SECONDS", 3),
		},
		Mutation: MutationConfig{
			MaxRetries:     getEnvAsInt("MUTATION_MAX_RETRIES", 2),
			RetryBackoffMs: getEnvAsInt("MUTATION_RETRY_BACKOFF_MS", 100),
			AtomicAppend:   getEnvAsBool("MUTATION_ATOMIC_APPEND", true),
		},
		Storage: StorageConfig{
			UploadDir:     getEnv("STORAGE_UPLOAD_DIR", "uploads"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "/files"),
			MaxUploadMB:   getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10),
		},
		Calendar: CalendarConfig{
			Enabled:    getEnvAsBool("CALENDAR_ENABLED", false),
			CalendarID: getEnv("CALENDAR_ID", "primary"),
		},
		Bootstrap: BootstrapConfig{
			SuperAdminName:     getEnv("BOOTSTRAP_SUPERADMIN_NAME", "Super Admin"),
			SuperAdminEmail:    getEnv("BOOTSTRAP_SUPERADMIN_EMAIL", "super.admin@example.com"),
			SuperAdminPassword: getEnv("BOOTSTRAP_SUPERADMIN_PASSWORD", "password"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// IdleTimeout returns how long an unused workspace is kept.
func (w WorkspaceConfig) IdleTimeout() time.Duration {
	if w.IdleMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(w.IdleMinutes) * time.Minute
}

// ReadyTimeout bounds the wait for a workspace's initial snapshots.
func (w WorkspaceConfig) ReadyTimeout() time.Duration {
	if w.ReadyTimeoutSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.ReadyTimeoutSecs) * time.Second
}

// ReapInterval is the period of the idle workspace sweep.
func (w WorkspaceConfig) ReapInterval() time.Duration {
	if w.ReapIntervalSecs <= 0 {
		return time.Minute
	}
	return time.Duration(w.ReapIntervalSecs) * time.Second
}

// RetryBackoff returns the base delay between mutation retries.
func (m MutationConfig) RetryBackoff() time.Duration {
	if m.RetryBackoffMs <= 0 {
		return 0
	}
	return time.Duration(m.RetryBackoffMs) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
