package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pdfedit/internal/domain"
	"pdfedit/internal/editor"
	"pdfedit/internal/planner"
	"pdfedit/internal/repository"
)

type DocumentStore interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	Ping(ctx context.Context) error

	CreateDocument(ctx context.Context, tx *sqlx.Tx, doc *domain.Document) error
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]domain.DocumentWithLatest, error)
	CountDocuments(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) ([]string, error)
	LockDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (int, error)
	TouchDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error

	CreateVersion(ctx context.Context, tx *sqlx.Tx, v *domain.Version) error
	GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error)
	GetLatestVersion(ctx context.Context, documentID uuid.UUID) (*domain.Version, error)
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error)
	PruneVersions(ctx context.Context, keep int) ([]domain.Version, error)
}

// BlobStore is implemented by the s3 and minio clients.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
	Ping(ctx context.Context) error
}

type Planner interface {
	Plan(ctx context.Context, req planner.PlanRequest) (*planner.Plan, error)
}

type Editor interface {
	Validate(data []byte) error
	PageCount(data []byte) (int, error)
	Apply(data []byte, actions []domain.Action) ([]byte, *editor.Report, error)
}

type Migrator interface {
	Up() (repository.MigrationResult, error)
}
