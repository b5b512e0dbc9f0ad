package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pdfedit/internal/domain"
)

const uniqueViolation = "23505"

const versionColumns = `id, document_id, version_num, blob_key, blob_url, size_bytes, created_at`

const (
	createDocumentQuery = `INSERT INTO documents (id, file_name) VALUES ($1, $2) RETURNING created_at, updated_at`
	getDocumentQuery    = `SELECT id, file_name, created_at, updated_at FROM documents WHERE id = $1`
	listDocumentsQuery  = `
        SELECT d.id, d.file_name, d.created_at, d.updated_at,
               COALESCE(MAX(v.version_num), 0) AS latest_version
        FROM documents d
        LEFT JOIN versions v ON v.document_id = d.id
        GROUP BY d.id
        ORDER BY d.updated_at DESC
        LIMIT $1 OFFSET $2`
	countDocumentsQuery   = `SELECT COUNT(*) FROM documents`
	documentBlobKeysQuery = `SELECT blob_key FROM versions WHERE document_id = $1 ORDER BY version_num`
	deleteDocumentQuery   = `DELETE FROM documents WHERE id = $1`
	lockDocumentQuery     = `SELECT id FROM documents WHERE id = $1 FOR UPDATE`
	latestVersionNumQuery = `SELECT COALESCE(MAX(version_num), 0) FROM versions WHERE document_id = $1`
	touchDocumentQuery    = `UPDATE documents SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	createVersionQuery = `
        INSERT INTO versions (id, document_id, version_num, blob_key, blob_url, size_bytes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at`
	getVersionQuery       = `SELECT ` + versionColumns + ` FROM versions WHERE document_id = $1 AND version_num = $2`
	getLatestVersionQuery = `SELECT ` + versionColumns + ` FROM versions WHERE document_id = $1 ORDER BY version_num DESC LIMIT 1`
	listVersionsQuery     = `SELECT ` + versionColumns + ` FROM versions WHERE document_id = $1 ORDER BY version_num DESC`
	pruneVersionsQuery    = `
        DELETE FROM versions
        WHERE id IN (
            SELECT id FROM (
                SELECT id, ROW_NUMBER() OVER (PARTITION BY document_id ORDER BY version_num DESC) AS rn
                FROM versions
            ) ranked
            WHERE rn > $1
        )
        RETURNING ` + versionColumns
)

type DocumentRepository struct {
	db *sqlx.DB
}

func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

func (r *DocumentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, tx *sqlx.Tx, doc *domain.Document) error {
	err := tx.QueryRowxContext(ctx, createDocumentQuery, doc.ID, doc.FileName).
		Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.GetContext(ctx, &doc, getDocumentQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, limit, offset int) ([]domain.DocumentWithLatest, error) {
	docs := []domain.DocumentWithLatest{}
	if err := r.db.SelectContext(ctx, &docs, listDocumentsQuery, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, countDocumentsQuery); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// DeleteDocument removes the document and, through the foreign key, its versions.
// It returns the blob keys the versions pointed at so the caller can clean up storage.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keys := []string{}
	if err := tx.SelectContext(ctx, &keys, documentBlobKeysQuery, id); err != nil {
		return nil, fmt.Errorf("failed to list document blobs: %w", err)
	}

	res, err := tx.ExecContext(ctx, deleteDocumentQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrDocumentNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document delete: %w", err)
	}
	return keys, nil
}

// LockDocument takes a row lock on the document for the rest of tx and
// returns the highest version number it has.
func (r *DocumentRepository) LockDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (int, error) {
	var locked uuid.UUID
	if err := tx.QueryRowxContext(ctx, lockDocumentQuery, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrDocumentNotFound
		}
		return 0, fmt.Errorf("failed to lock document: %w", err)
	}

	var latest int
	if err := tx.QueryRowxContext(ctx, latestVersionNumQuery, id).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	return latest, nil
}

func (r *DocumentRepository) TouchDocument(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, touchDocumentQuery, id); err != nil {
		return fmt.Errorf("failed to update document timestamp: %w", err)
	}
	return nil
}

func (r *DocumentRepository) CreateVersion(ctx context.Context, tx *sqlx.Tx, v *domain.Version) error {
	err := tx.QueryRowxContext(ctx, createVersionQuery,
		v.ID,
		v.DocumentID,
		v.VersionNum,
		v.BlobKey,
		v.BlobURL,
		v.SizeBytes,
	).Scan(&v.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("version %d of document %s: %w", v.VersionNum, v.DocumentID, domain.ErrVersionExists)
		}
		return fmt.Errorf("failed to create version: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error) {
	var v domain.Version
	if err := r.db.GetContext(ctx, &v, getVersionQuery, documentID, versionNum); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return &v, nil
}

func (r *DocumentRepository) GetLatestVersion(ctx context.Context, documentID uuid.UUID) (*domain.Version, error) {
	var v domain.Version
	if err := r.db.GetContext(ctx, &v, getLatestVersionQuery, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &v, nil
}

// ListVersions returns the versions of a document, newest first.
func (r *DocumentRepository) ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	versions := []domain.Version{}
	if err := r.db.SelectContext(ctx, &versions, listVersionsQuery, documentID); err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

// PruneVersions deletes all but the newest keep versions of every document
// and returns the deleted rows.
func (r *DocumentRepository) PruneVersions(ctx context.Context, keep int) ([]domain.Version, error) {
	if keep < 1 {
		return nil, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	pruned := []domain.Version{}
	if err := r.db.SelectContext(ctx, &pruned, pruneVersionsQuery, keep); err != nil {
		return nil, fmt.Errorf("failed to prune versions: %w", err)
	}
	return pruned, nil
}
