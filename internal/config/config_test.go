package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("DATABASE_USER", "pdfedit")
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("DATABASE_NAME", "pdfedit")
	t.Setenv("STORAGE_BUCKET", "pdfs")
}

func TestNewConfigFromEnvAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "50051", cfg.Server.GRPCPort)
	assert.Equal(t, int64(50), cfg.Server.MaxUploadMB)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Redis.PlanTTL)
	assert.Equal(t, 0, cfg.Retention.KeepVersions)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestNewConfigEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("STORAGE_ENDPOINT", "localhost:9000")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("RETENTION_KEEP_VERSIONS", "10")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := NewConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 10, cfg.Retention.KeepVersions)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestNewConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	content := `
Server:
  Port: "7070"
Database:
  Host: filehost
  User: u
  Password: p
  Name: docs
Storage:
  Bucket: files
  PublicBaseURL: https://cdn.example.com
LLM:
  Model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "filehost", cfg.Database.Host)
	assert.Equal(t, "https://cdn.example.com", cfg.Storage.PublicBaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
}

func TestNewConfigIncomplete(t *testing.T) {
	t.Setenv("DATABASE_HOST", "db")
	t.Setenv("STORAGE_BUCKET", "pdfs")

	_, err := NewConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database configuration is incomplete")
}

func TestValidateStorage(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Host: "h", User: "u", Password: "p", Name: "n"}}
	cfg.applyDefaults()

	assert.EqualError(t, cfg.Validate(), "storage bucket is required")

	cfg.Storage.Bucket = "b"
	cfg.Storage.Backend = BackendMinio
	assert.EqualError(t, cfg.Validate(), "minio backend requires an endpoint")

	cfg.Storage.Backend = "ftp"
	assert.EqualError(t, cfg.Validate(), `unknown storage backend "ftp"`)
}

func TestDatabaseStrings(t *testing.T) {
	db := DatabaseConfig{Host: "h", Port: "5432", User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", db.GetDSN())
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.GetURL())
}

func TestLoadSkipsValidation(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Error(t, cfg.Validate())
}

func TestAllowedOriginsFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want []string
	}{
		{"https://a.com,https://b.com", []string{"https://a.com", "https://b.com"}},
		{"https://a.com, https://b.com ,", []string{"https://a.com", "https://b.com"}},
		{"https://a.com", []string{"https://a.com"}},
		{" , ", []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("ALLOWED_ORIGINS", tt.env)

			cfg, err := NewConfig("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Server.AllowedOrigins)
		})
	}
}
