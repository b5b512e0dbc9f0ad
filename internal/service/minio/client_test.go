package minio

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfedit/internal/config"
	"pdfedit/internal/domain"
	"pdfedit/internal/logging"
)

func TestNewConfig(t *testing.T) {
	_, err := NewConfig(config.StorageConfig{Bucket: "b"})
	assert.EqualError(t, err, "endpoint is required")

	cfg, err := NewConfig(config.StorageConfig{Endpoint: "localhost:9000", Bucket: "b", UseSSL: true})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", cfg.Endpoint)
	assert.True(t, cfg.UseSSL)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000/docs", publicURL(&Config{Endpoint: "localhost:9000", BucketName: "docs"}))
	assert.Equal(t, "https://minio.example.com/docs", publicURL(&Config{Endpoint: "minio.example.com", BucketName: "docs", UseSSL: true}))
	assert.Equal(t, "https://cdn.example.com", publicURL(&Config{PublicBaseURL: "https://cdn.example.com"}))

	c := &Client{publicURL: "http://localhost:9000/docs"}
	assert.Equal(t, "http://localhost:9000/docs/pdfs/x/v1-a.pdf", c.URL("pdfs/x/v1-a.pdf"))
}

func TestMapError(t *testing.T) {
	c := &Client{logger: logging.Discard()}

	err := c.mapError("pdfs/x.pdf", minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"})
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)

	err = c.mapError("pdfs/x.pdf", errors.New("connection reset"))
	assert.NotErrorIs(t, err, domain.ErrBlobNotFound)
}
