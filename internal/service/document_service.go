package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/editor"
	"pdfedit/internal/planner"
	"pdfedit/internal/textextract"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	cleanupTimeout = 30 * time.Second
)

type UploadResult struct {
	DocumentID uuid.UUID `json:"documentId"`
	VersionNum int       `json:"versionNum"`
	URL        string    `json:"url"`
}

type ApplyRequest struct {
	DocumentID  uuid.UUID
	BaseVersion int // 0 means the latest version
	Instruction string
}

type ApplyResult struct {
	VersionNum  int             `json:"versionNum"`
	BaseVersion int             `json:"baseVersion"`
	URL         string          `json:"url"`
	Actions     []domain.Action `json:"actions"`
	Report      *editor.Report  `json:"report"`
}

type DocumentPage struct {
	Documents []domain.DocumentWithLatest `json:"documents"`
	Total     int                         `json:"total"`
	Limit     int                         `json:"limit"`
	Offset    int                         `json:"offset"`
}

type DocumentService struct {
	store   DocumentStore
	blobs   BlobStore
	planner Planner
	editor  Editor
	logger  *logrus.Logger
}

// NewDocumentService wires the document workflow. planner may be nil when no
// LLM is configured, in which case Apply and Plan fail with an upstream error.
func NewDocumentService(store DocumentStore, blobs BlobStore, planner Planner, editor Editor, logger *logrus.Logger) *DocumentService {
	return &DocumentService{
		store:   store,
		blobs:   blobs,
		planner: planner,
		editor:  editor,
		logger:  logger,
	}
}

func (s *DocumentService) Upload(ctx context.Context, fileName string, data []byte) (*UploadResult, error) {
	name := cleanFileName(fileName)
	if name == "" {
		return nil, apperr.NewValidationError("file name is required")
	}
	if len(data) == 0 {
		return nil, apperr.NewValidationError("file is empty")
	}
	if err := s.editor.Validate(data); err != nil {
		return nil, err
	}

	doc := &domain.Document{ID: uuid.New(), FileName: name}
	key := domain.BlobKey(doc.ID, 1, name)

	url, err := s.blobs.Put(ctx, key, data, domain.ContentTypePDF)
	if err != nil {
		return nil, apperr.NewUpstreamError("failed to store file", err)
	}

	version := &domain.Version{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		VersionNum: 1,
		BlobKey:    key,
		BlobURL:    url,
		SizeBytes:  int64(len(data)),
	}

	if err := s.createDocument(ctx, doc, version); err != nil {
		s.discardBlob(key)
		return nil, mapStoreError(err, "failed to save document")
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"file_name":   name,
		"size":        len(data),
	}).Info("Document uploaded")

	return &UploadResult{DocumentID: doc.ID, VersionNum: 1, URL: url}, nil
}

func (s *DocumentService) createDocument(ctx context.Context, doc *domain.Document, version *domain.Version) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := s.store.CreateVersion(ctx, tx, version); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// editSource is a loaded base version together with the text the planner sees.
type editSource struct {
	doc       *domain.Document
	base      *domain.Version
	data      []byte
	pageCount int
	pages     []textextract.PageText
}

func (s *DocumentService) load(ctx context.Context, req ApplyRequest) (*editSource, error) {
	if req.DocumentID == uuid.Nil {
		return nil, apperr.NewValidationError("documentId is required")
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return nil, apperr.NewValidationError("message is required")
	}
	if req.BaseVersion < 0 {
		return nil, apperr.NewValidationError("currentVersion must not be negative")
	}
	if s.planner == nil {
		return nil, apperr.NewUpstreamError("LLM is not configured", nil)
	}

	doc, err := s.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, mapStoreError(err, "failed to load document")
	}

	base, err := s.version(ctx, req.DocumentID, req.BaseVersion)
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, base.BlobKey)
	if err != nil {
		return nil, mapBlobError(err)
	}

	src := &editSource{doc: doc, base: base, data: data}

	if src.pageCount, err = s.editor.PageCount(data); err != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Warn("Failed to count pages")
	}
	if src.pages, err = textextract.Extract(data); err != nil {
		s.logger.WithError(err).WithField("document_id", doc.ID).Warn("Failed to extract text")
	}

	return src, nil
}

func (s *DocumentService) plan(ctx context.Context, src *editSource, instruction string) (*planner.Plan, error) {
	return s.planner.Plan(ctx, planner.PlanRequest{
		Instruction: instruction,
		PageCount:   src.pageCount,
		Pages:       src.pages,
	})
}

func (s *DocumentService) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	src, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}

	plan, err := s.plan(ctx, src, req.Instruction)
	if err != nil {
		return nil, err
	}
	if msg, ok := plan.List().NoopOnly(); ok {
		return nil, apperr.NewValidationError(msg)
	}

	out, report, err := s.editor.Apply(src.data, plan.Actions)
	if err != nil {
		return nil, err
	}

	version, err := s.storeVersion(ctx, src.doc, out)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"document_id":  src.doc.ID,
		"base_version": src.base.VersionNum,
		"version":      version.VersionNum,
		"actions":      len(plan.Actions),
		"cached_plan":  plan.Cached,
	}).Info("Edit applied")

	return &ApplyResult{
		VersionNum:  version.VersionNum,
		BaseVersion: src.base.VersionNum,
		URL:         version.BlobURL,
		Actions:     plan.Actions,
		Report:      report,
	}, nil
}

// Plan asks the planner for an action list without applying it.
func (s *DocumentService) Plan(ctx context.Context, req ApplyRequest) (*planner.Plan, error) {
	src, err := s.load(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.plan(ctx, src, req.Instruction)
}

// storeVersion saves data as the next version of doc. The document row stays
// locked until commit so concurrent edits get distinct numbers.
func (s *DocumentService) storeVersion(ctx context.Context, doc *domain.Document, data []byte) (*domain.Version, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, apperr.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	latest, err := s.store.LockDocument(ctx, tx, doc.ID)
	if err != nil {
		return nil, mapStoreError(err, "failed to lock document")
	}

	version := &domain.Version{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		VersionNum: latest + 1,
		BlobKey:    domain.BlobKey(doc.ID, latest+1, doc.FileName),
		SizeBytes:  int64(len(data)),
	}

	version.BlobURL, err = s.blobs.Put(ctx, version.BlobKey, data, domain.ContentTypePDF)
	if err != nil {
		return nil, apperr.NewUpstreamError("failed to store new version", err)
	}

	if err := s.commitVersion(ctx, tx, version); err != nil {
		s.discardBlob(version.BlobKey)
		return nil, mapStoreError(err, "failed to save version")
	}
	return version, nil
}

func (s *DocumentService) commitVersion(ctx context.Context, tx *sqlx.Tx, version *domain.Version) error {
	if err := s.store.CreateVersion(ctx, tx, version); err != nil {
		return err
	}
	if err := s.store.TouchDocument(ctx, tx, version.DocumentID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, limit, offset int) (*DocumentPage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	docs, err := s.store.ListDocuments(ctx, limit, offset)
	if err != nil {
		return nil, mapStoreError(err, "failed to list documents")
	}
	total, err := s.store.CountDocuments(ctx)
	if err != nil {
		return nil, mapStoreError(err, "failed to count documents")
	}

	return &DocumentPage{Documents: docs, Total: total, Limit: limit, Offset: offset}, nil
}

// DeleteDocument removes the rows first, then every blob the versions and
// their previews used. Blob failures are logged and do not fail the call.
func (s *DocumentService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	versions, err := s.store.ListVersions(ctx, id)
	if err != nil {
		return mapStoreError(err, "failed to list versions")
	}

	keys, err := s.store.DeleteDocument(ctx, id)
	if err != nil {
		return mapStoreError(err, "failed to delete document")
	}

	for _, v := range versions {
		keys = append(keys, domain.PreviewKey(id, v.VersionNum))
	}
	for _, key := range keys {
		s.discardBlob(key)
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": id,
		"blobs":       len(keys),
	}).Info("Document deleted")
	return nil
}

func (s *DocumentService) ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, mapStoreError(err, "failed to load document")
	}
	versions, err := s.store.ListVersions(ctx, documentID)
	if err != nil {
		return nil, mapStoreError(err, "failed to list versions")
	}
	return versions, nil
}

func (s *DocumentService) GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error) {
	if versionNum < 1 {
		return nil, apperr.NewValidationError("version number must be at least 1")
	}
	return s.version(ctx, documentID, versionNum)
}

// version loads versionNum, or the latest version when versionNum is 0.
func (s *DocumentService) version(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error) {
	var (
		v   *domain.Version
		err error
	)
	if versionNum == 0 {
		v, err = s.store.GetLatestVersion(ctx, documentID)
	} else {
		v, err = s.store.GetVersion(ctx, documentID, versionNum)
	}
	if err != nil {
		return nil, mapStoreError(err, "failed to load version")
	}
	return v, nil
}

func (s *DocumentService) ReadVersion(ctx context.Context, documentID uuid.UUID, versionNum int) ([]byte, *domain.Version, error) {
	v, err := s.GetVersion(ctx, documentID, versionNum)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(ctx, v.BlobKey)
	if err != nil {
		return nil, nil, mapBlobError(err)
	}
	return data, v, nil
}

func (s *DocumentService) VersionText(ctx context.Context, documentID uuid.UUID, versionNum int) ([]textextract.PageText, error) {
	data, _, err := s.ReadVersion(ctx, documentID, versionNum)
	if err != nil {
		return nil, err
	}
	pages, err := textextract.Extract(data)
	if err != nil {
		return nil, apperr.NewProcessingError("failed to extract text", err)
	}
	return pages, nil
}

func (s *DocumentService) discardBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to delete blob")
	}
}

func mapBlobError(err error) error {
	if errors.Is(err, domain.ErrBlobNotFound) {
		return apperr.NewNotFoundError(msgPDFNotFound)
	}
	return apperr.NewUpstreamError("failed to read file from storage", err)
}

func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
