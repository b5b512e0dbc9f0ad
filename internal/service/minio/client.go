package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/config"
	"pdfedit/internal/domain"
)

// Config holds the parameters for connecting to MinIO.
type Config struct {
	Endpoint        string // host:port, no scheme
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
	PublicBaseURL   string
}

func NewConfig(storage config.StorageConfig) (*Config, error) {
	if storage.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if storage.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Config{
		Endpoint:        storage.Endpoint,
		AccessKeyID:     storage.AccessKeyID,
		SecretAccessKey: storage.SecretAccessKey,
		UseSSL:          storage.UseSSL,
		BucketName:      storage.Bucket,
		Region:          storage.Region,
		PublicBaseURL:   storage.PublicBaseURL,
	}, nil
}

// Client stores objects in a MinIO bucket.
type Client struct {
	client     *minio.Client
	bucketName string
	publicURL  string
	logger     *logrus.Logger
}

// NewClient connects to MinIO and creates the bucket when it is missing.
func NewClient(ctx context.Context, cfg *Config, logger *logrus.Logger) (*Client, error) {
	logger.WithField("endpoint", cfg.Endpoint).Info("initializing MinIO client")

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init MinIO client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.BucketName, err)
	}
	if !exists {
		logger.WithField("bucket", cfg.BucketName).Info("bucket not found, creating")
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.BucketName, err)
		}
	}

	return &Client{
		client:     mc,
		bucketName: cfg.BucketName,
		publicURL:  publicURL(cfg),
		logger:     logger,
	}, nil
}

func publicURL(cfg *Config) string {
	if cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.BucketName)
}

func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.BucketExists(ctx, c.bucketName)
	if err != nil {
		return fmt.Errorf("unable to access bucket %s: %w", c.bucketName, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", c.bucketName)
	}
	return nil
}

func (c *Client) URL(key string) string {
	return domain.ObjectURL(c.publicURL, key)
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	info, err := c.client.PutObject(ctx, c.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload object to MinIO: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"key":  key,
		"size": info.Size,
		"etag": info.ETag,
	}).Debug("object stored")

	return c.URL(key), nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, c.mapError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.mapError(key, err)
	}
	return data, nil
}

// Delete removes key. MinIO treats a missing key as already deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object from MinIO: %w", err)
	}
	return nil
}

func (c *Client) mapError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, domain.ErrBlobNotFound)
	}
	return fmt.Errorf("failed to get object from MinIO: %w", err)
}
