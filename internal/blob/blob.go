// Package blob selects the object storage backend from configuration.
package blob

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pdfedit/internal/config"
	"pdfedit/internal/service/minio"
	"pdfedit/internal/service/s3"
)

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Ping(ctx context.Context) error
}

var (
	_ Store = (*s3.Client)(nil)
	_ Store = (*minio.Client)(nil)
)

// Open connects to the configured backend and verifies the bucket.
func Open(ctx context.Context, cfg config.StorageConfig, logger *logrus.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3, "":
		conf, err := s3.NewConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("invalid S3 config: %w", err)
		}
		client, err := s3.NewClient(conf, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendMinio:
		conf, err := minio.NewConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("invalid MinIO config: %w", err)
		}
		client, err := minio.NewClient(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
