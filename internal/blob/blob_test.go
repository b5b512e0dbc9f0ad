package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfedit/internal/config"
	"pdfedit/internal/logging"
)

func TestOpenRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "unknown backend",
			cfg:  config.StorageConfig{Backend: "ftp", Bucket: "b"},
			want: `unknown storage backend "ftp"`,
		},
		{
			name: "s3 without keys",
			cfg:  config.StorageConfig{Backend: config.BackendS3, Bucket: "b"},
			want: "invalid S3 config",
		},
		{
			name: "minio without endpoint",
			cfg:  config.StorageConfig{Backend: config.BackendMinio, Bucket: "b"},
			want: "invalid MinIO config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(context.Background(), tt.cfg, logging.Discard())
			require.Error(t, err)
			assert.Nil(t, store)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
