package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"Server"`
	Database  DatabaseConfig  `mapstructure:"Database"`
	Storage   StorageConfig   `mapstructure:"Storage"`
	LLM       LLMConfig       `mapstructure:"LLM"`
	Redis     RedisConfig     `mapstructure:"Redis"`
	Retention RetentionConfig `mapstructure:"Retention"`
	Log       LogConfig       `mapstructure:"Log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"Port"`
	GRPCPort       string        `mapstructure:"GRPCPort"`
	MaxUploadMB    int64         `mapstructure:"MaxUploadMB"`
	RequestTimeout time.Duration `mapstructure:"RequestTimeout"`
	AllowedOrigins []string      `mapstructure:"AllowedOrigins"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"Host"`
	Port           string `mapstructure:"Port"`
	User           string `mapstructure:"User"`
	Password       string `mapstructure:"Password"`
	Name           string `mapstructure:"Name"`
	SSLMode        string `mapstructure:"SSLMode"`
	MigrationsPath string `mapstructure:"MigrationsPath"`
}

type StorageConfig struct {
	Backend         string `mapstructure:"Backend"`
	Endpoint        string `mapstructure:"Endpoint"`
	Region          string `mapstructure:"Region"`
	Bucket          string `mapstructure:"Bucket"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	UseSSL          bool   `mapstructure:"UseSSL"`
	PublicBaseURL   string `mapstructure:"PublicBaseURL"`
}

type LLMConfig struct {
	APIKey            string        `mapstructure:"APIKey"`
	BaseURL           string        `mapstructure:"BaseURL"`
	Model             string        `mapstructure:"Model"`
	MaxTokens         int           `mapstructure:"MaxTokens"`
	Temperature       float64       `mapstructure:"Temperature"`
	Timeout           time.Duration `mapstructure:"Timeout"`
	RequestsPerMinute int           `mapstructure:"RequestsPerMinute"`
	MaxRetries        int           `mapstructure:"MaxRetries"`
}

// RedisConfig configures the plan cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"Addr"`
	Password string        `mapstructure:"Password"`
	DB       int           `mapstructure:"DB"`
	PlanTTL  time.Duration `mapstructure:"PlanTTL"`
}

// RetentionConfig bounds how many versions each document keeps. Zero keeps all.
type RetentionConfig struct {
	KeepVersions int           `mapstructure:"KeepVersions"`
	Interval     time.Duration `mapstructure:"Interval"`
}

type LogConfig struct {
	Level string `mapstructure:"Level"`
}

const (
	BackendS3    = "s3"
	BackendMinio = "minio"

	DefaultModel = "claude-3-opus-20240229"
)

var envBindings = map[string]string{
	"Server.Port":             "HTTP_PORT",
	"Server.GRPCPort":         "GRPC_PORT",
	"Server.MaxUploadMB":      "MAX_UPLOAD_MB",
	"Server.RequestTimeout":   "REQUEST_TIMEOUT",
	"Server.AllowedOrigins":   "ALLOWED_ORIGINS",
	"Database.Host":           "DATABASE_HOST",
	"Database.Port":           "DATABASE_PORT",
	"Database.User":           "DATABASE_USER",
	"Database.Password":       "DATABASE_PASSWORD",
	"Database.Name":           "DATABASE_NAME",
	"Database.SSLMode":        "DATABASE_SSLMODE",
	"Database.MigrationsPath": "MIGRATIONS_PATH",
	"Storage.Backend":         "STORAGE_BACKEND",
	"Storage.Endpoint":        "STORAGE_ENDPOINT",
	"Storage.Region":          "STORAGE_REGION",
	"Storage.Bucket":          "STORAGE_BUCKET",
	"Storage.AccessKeyID":     "STORAGE_ACCESS_KEY_ID",
	"Storage.SecretAccessKey": "STORAGE_SECRET_ACCESS_KEY",
	"Storage.UseSSL":          "STORAGE_USE_SSL",
	"Storage.PublicBaseURL":   "STORAGE_PUBLIC_BASE_URL",
	"LLM.APIKey":              "LLM_API_KEY",
	"LLM.BaseURL":             "LLM_BASE_URL",
	"LLM.Model":               "LLM_MODEL",
	"LLM.MaxTokens":           "LLM_MAX_TOKENS",
	"LLM.Temperature":         "LLM_TEMPERATURE",
	"LLM.Timeout":             "LLM_TIMEOUT",
	"LLM.RequestsPerMinute":   "LLM_REQUESTS_PER_MINUTE",
	"LLM.MaxRetries":          "LLM_MAX_RETRIES",
	"Redis.Addr":              "REDIS_ADDR",
	"Redis.Password":          "REDIS_PASSWORD",
	"Redis.DB":                "REDIS_DB",
	"Redis.PlanTTL":           "REDIS_PLAN_TTL",
	"Retention.KeepVersions":  "RETENTION_KEEP_VERSIONS",
	"Retention.Interval":      "RETENTION_INTERVAL",
	"Log.Level":               "LOG_LEVEL",
}

// NewConfig reads path if it exists, overlays environment variables and
// validates the result.
func NewConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is NewConfig without validation, for tools that need only part of it.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Zero is a meaningful value here, so it cannot be defaulted after Unmarshal.
	v.SetDefault("LLM.MaxRetries", 2)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			fmt.Printf("Warning: using only environment variables: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.GRPCPort == "" {
		c.Server.GRPCPort = "50051"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 50
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 2 * time.Minute
	}
	c.Server.AllowedOrigins = splitList(c.Server.AllowedOrigins)
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MigrationsPath == "" {
		c.Database.MigrationsPath = "migrations"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendS3
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}

	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.LLM.RequestsPerMinute <= 0 {
		c.LLM.RequestsPerMinute = 30
	}
	if c.LLM.MaxRetries < 0 {
		c.LLM.MaxRetries = 0
	}

	if c.Redis.PlanTTL <= 0 {
		c.Redis.PlanTTL = 24 * time.Hour
	}

	if c.Retention.Interval <= 0 {
		c.Retention.Interval = time.Hour
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// splitList flattens comma separated entries and drops blanks, so
// "a.com, b.com" and "a.com,b.com" configure the same two origins.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}

	switch c.Storage.Backend {
	case BackendS3, BackendMinio:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if c.Storage.Backend == BackendMinio && c.Storage.Endpoint == "" {
		return fmt.Errorf("minio backend requires an endpoint")
	}

	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetURL is the URL form golang-migrate expects.
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
