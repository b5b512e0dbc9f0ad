package service_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pdfedit/internal/domain"
	"pdfedit/internal/planner"
	"pdfedit/internal/repository"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	args := m.Called(ctx)
	tx, _ := args.Get(0).(*sqlx.Tx)
	return tx, args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) CreateDocument(ctx context.Context, tx *sqlx.Tx, doc *domain.Document) error {
	return m.Called(ctx, tx, doc).Error(0)
}

func (m *MockStore) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	args := m.Called(ctx, id)
	doc, _ := args.Get(0).(*domain.Document)
	return doc, args.Error(1)
}

func (m *MockStore) ListDocuments(ctx context.Context, limit, offset int) ([]domain.DocumentWithLatest, error) {
	args := m.Called(ctx, limit, offset)
	docs, _ := args.Get(0).([]domain.DocumentWithLatest)
	return docs, args.Error(1)
}

func (m *MockStore) CountDocuments(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) DeleteDocument(ctx context.Context, id uuid.UUID) ([]string, error) {
	args := m.Called(ctx, id)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockStore) LockDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (int, error) {
	args := m.Called(ctx, tx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) TouchDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockStore) CreateVersion(ctx context.Context, tx *sqlx.Tx, v *domain.Version) error {
	return m.Called(ctx, tx, v).Error(0)
}

func (m *MockStore) GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error) {
	args := m.Called(ctx, documentID, versionNum)
	v, _ := args.Get(0).(*domain.Version)
	return v, args.Error(1)
}

func (m *MockStore) GetLatestVersion(ctx context.Context, documentID uuid.UUID) (*domain.Version, error) {
	args := m.Called(ctx, documentID)
	v, _ := args.Get(0).(*domain.Version)
	return v, args.Error(1)
}

func (m *MockStore) ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	args := m.Called(ctx, documentID)
	versions, _ := args.Get(0).([]domain.Version)
	return versions, args.Error(1)
}

func (m *MockStore) PruneVersions(ctx context.Context, keep int) ([]domain.Version, error) {
	args := m.Called(ctx, keep)
	versions, _ := args.Get(0).([]domain.Version)
	return versions, args.Error(1)
}

type MockBlobs struct {
	mock.Mock
}

func (m *MockBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, data, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockBlobs) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockBlobs) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockBlobs) URL(key string) string {
	return m.Called(key).String(0)
}

func (m *MockBlobs) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, req planner.PlanRequest) (*planner.Plan, error) {
	args := m.Called(ctx, req)
	plan, _ := args.Get(0).(*planner.Plan)
	return plan, args.Error(1)
}

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() (repository.MigrationResult, error) {
	args := m.Called()
	return args.Get(0).(repository.MigrationResult), args.Error(1)
}

// newTx opens a transaction on a sqlmock connection. expect registers what
// should happen after BEGIN, usually a commit or a rollback.
func newTx(t *testing.T, expect func(sqlmock.Sqlmock)) *sqlx.Tx {
	t.Helper()

	db, sm, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sm.ExpectBegin()
	expect(sm)

	tx, err := sqlx.NewDb(db, "sqlmock").Beginx()
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, sm.ExpectationsWereMet())
	})
	return tx
}

func expectCommit(sm sqlmock.Sqlmock) { sm.ExpectCommit() }

func expectRollback(sm sqlmock.Sqlmock) { sm.ExpectRollback() }
