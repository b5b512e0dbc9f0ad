package service_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/logging"
	"pdfedit/internal/repository"
	"pdfedit/internal/service"
)

func newDiagnostics(t *testing.T) (*service.DiagnosticsService, *MockStore, *MockBlobs, *MockMigrator) {
	t.Helper()

	store, blobs, migrator := new(MockStore), new(MockBlobs), new(MockMigrator)
	t.Cleanup(func() {
		store.AssertExpectations(t)
		blobs.AssertExpectations(t)
		migrator.AssertExpectations(t)
	})
	return service.NewDiagnosticsService(store, blobs, migrator, logging.Discard()), store, blobs, migrator
}

func TestInitDB(t *testing.T) {
	tests := []struct {
		name    string
		result  repository.MigrationResult
		message string
	}{
		{
			name:    "fresh database",
			result:  repository.MigrationResult{Version: 2, Changed: true},
			message: "Database tables created successfully! You can now upload PDFs.",
		},
		{
			name:    "already migrated",
			result:  repository.MigrationResult{Version: 2},
			message: "Database schema is already up to date.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, migrator := newDiagnostics(t)
			migrator.On("Up").Return(tt.result, nil)

			res, err := svc.InitDB(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, uint(2), res.Version)
		})
	}
}

func TestInitDBFailure(t *testing.T) {
	svc, _, _, migrator := newDiagnostics(t)
	migrator.On("Up").Return(repository.MigrationResult{}, errors.New("connection refused"))

	_, err := svc.InitDB(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeInternal))
}

func TestTestBlob(t *testing.T) {
	svc, _, blobs, _ := newDiagnostics(t)
	ctx := context.Background()
	keyPattern := regexp.MustCompile(`^test/test-\d+\.txt$`)
	isTestKey := mock.MatchedBy(func(key string) bool { return keyPattern.MatchString(key) })

	blobs.On("Put", ctx, isTestKey, []byte("Hello from PDF Editor test!"), "text/plain").
		Return("https://blob.test/test/test-1.txt", nil)
	blobs.On("Delete", ctx, isTestKey).Return(nil)

	res, err := svc.TestBlob(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Blob storage is working correctly", res.Message)
	assert.Equal(t, "https://blob.test/test/test-1.txt", res.TestURL)
}

func TestTestBlobFailure(t *testing.T) {
	svc, _, blobs, _ := newDiagnostics(t)
	ctx := context.Background()

	blobs.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("access denied"))

	_, err := svc.TestBlob(ctx)
	require.Error(t, err)
	assert.True(t, apperr.IsType(err, apperr.TypeUpstream))
}

func TestTestDB(t *testing.T) {
	svc, store, _, _ := newDiagnostics(t)
	ctx := context.Background()

	var created uuid.UUID
	tx := newTx(t, expectCommit)
	store.On("CountDocuments", ctx).Return(7, nil)
	store.On("BeginTx", ctx).Return(tx, nil)
	store.On("CreateDocument", ctx, tx, mock.MatchedBy(func(d *domain.Document) bool {
		return d.FileName == "test.pdf"
	})).Run(func(args mock.Arguments) {
		created = args.Get(2).(*domain.Document).ID
	}).Return(nil)
	store.On("DeleteDocument", ctx, mock.MatchedBy(func(id uuid.UUID) bool { return id == created })).
		Return([]string{}, nil)

	res, err := svc.TestDB(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Database is working correctly", res.Message)
	assert.Equal(t, 7, res.DocumentCount)
	assert.Equal(t, created, res.TestDocID)
}

func TestTestDBFailure(t *testing.T) {
	svc, store, _, _ := newDiagnostics(t)
	ctx := context.Background()

	store.On("CountDocuments", ctx).Return(0, errors.New(`relation "documents" does not exist`))

	_, err := svc.TestDB(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}
