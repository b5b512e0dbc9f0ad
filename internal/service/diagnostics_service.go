package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
)

const (
	testBlobBody     = "Hello from PDF Editor test!"
	testDocumentName = "test.pdf"
)

type InitDBResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version uint   `json:"schemaVersion"`
	Changed bool   `json:"changed"`
}

type TestBlobResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TestURL string `json:"testUrl"`
}

type TestDBResult struct {
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	DocumentCount int       `json:"documentCount"`
	TestDocID     uuid.UUID `json:"testDocId"`
}

// DiagnosticsService backs the setup and smoke-test endpoints.
type DiagnosticsService struct {
	store    DocumentStore
	blobs    BlobStore
	migrator Migrator
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDiagnosticsService(store DocumentStore, blobs BlobStore, migrator Migrator, logger *logrus.Logger) *DiagnosticsService {
	return &DiagnosticsService{
		store:    store,
		blobs:    blobs,
		migrator: migrator,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DiagnosticsService) InitDB(ctx context.Context) (*InitDBResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := s.migrator.Up()
	if err != nil {
		return nil, apperr.NewInternalError("failed to apply migrations", err)
	}

	msg := "Database tables created successfully! You can now upload PDFs."
	if !res.Changed {
		msg = "Database schema is already up to date."
	}

	s.logger.WithFields(logrus.Fields{
		"version": res.Version,
		"changed": res.Changed,
	}).Info("Database initialized")

	return &InitDBResult{Success: true, Message: msg, Version: res.Version, Changed: res.Changed}, nil
}

func (s *DiagnosticsService) TestBlob(ctx context.Context) (*TestBlobResult, error) {
	key := fmt.Sprintf("test/test-%d.txt", s.now().UnixMilli())

	url, err := s.blobs.Put(ctx, key, []byte(testBlobBody), "text/plain")
	if err != nil {
		return nil, apperr.NewUpstreamError("failed to write test blob", err)
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		return nil, apperr.NewUpstreamError("failed to delete test blob", err)
	}

	s.logger.WithField("key", key).Info("Blob storage check passed")

	return &TestBlobResult{
		Success: true,
		Message: "Blob storage is working correctly",
		TestURL: url,
	}, nil
}

func (s *DiagnosticsService) TestDB(ctx context.Context) (*TestDBResult, error) {
	count, err := s.store.CountDocuments(ctx)
	if err != nil {
		return nil, apperr.NewInternalError("failed to count documents", err)
	}

	doc := &domain.Document{ID: uuid.New(), FileName: testDocumentName}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, apperr.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateDocument(ctx, tx, doc); err != nil {
		return nil, apperr.NewInternalError("failed to create test document", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.NewInternalError("failed to commit test document", err)
	}

	if _, err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return nil, apperr.NewInternalError("failed to delete test document", err)
	}

	s.logger.WithField("document_count", count).Info("Database check passed")

	return &TestDBResult{
		Success:       true,
		Message:       "Database is working correctly",
		DocumentCount: count,
		TestDocID:     doc.ID,
	}, nil
}
