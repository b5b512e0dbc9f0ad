package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/handler/respond"
	"pdfedit/internal/planner"
	"pdfedit/internal/service"
	"pdfedit/internal/textextract"
)

const multipartMemory = 32 << 20

type DocumentService interface {
	Upload(ctx context.Context, fileName string, data []byte) (*service.UploadResult, error)
	Apply(ctx context.Context, req service.ApplyRequest) (*service.ApplyResult, error)
	Plan(ctx context.Context, req service.ApplyRequest) (*planner.Plan, error)
	GetDocument(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) (*service.DocumentPage, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]domain.Version, error)
	GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error)
	ReadVersion(ctx context.Context, documentID uuid.UUID, versionNum int) ([]byte, *domain.Version, error)
	VersionText(ctx context.Context, documentID uuid.UUID, versionNum int) ([]textextract.PageText, error)
}

type DocumentHandler struct {
	service        DocumentService
	maxUploadBytes int64
	logger         *logrus.Logger
}

func NewDocumentHandler(service DocumentService, maxUploadBytes int64, logger *logrus.Logger) *DocumentHandler {
	return &DocumentHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

type editRequest struct {
	DocumentID     string `json:"documentId"`
	CurrentVersion int    `json:"currentVersion"`
	Message        string `json:"message"`
}

type pageTextsResponse struct {
	DocumentID uuid.UUID              `json:"documentId"`
	VersionNum int                    `json:"versionNum"`
	Pages      []textextract.PageText `json:"pages"`
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, r, apperr.NewValidationError("file is too large", fmt.Sprintf("limit is %d bytes", tooLarge.Limit)))
			return
		}
		h.error(w, r, apperr.NewValidationError("No file provided"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.error(w, r, apperr.NewValidationError("No file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.error(w, r, apperr.NewInternalError("failed to read upload", err))
		return
	}

	res, err := h.service.Upload(r.Context(), header.Filename, data)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) decodeEdit(r *http.Request) (service.ApplyRequest, error) {
	var body editRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return service.ApplyRequest{}, apperr.NewValidationError("invalid JSON body", err.Error())
	}
	if strings.TrimSpace(body.DocumentID) == "" || strings.TrimSpace(body.Message) == "" {
		return service.ApplyRequest{}, apperr.NewValidationError("Missing documentId or message")
	}

	id, err := uuid.Parse(body.DocumentID)
	if err != nil {
		return service.ApplyRequest{}, apperr.NewValidationError("invalid documentId")
	}

	return service.ApplyRequest{
		DocumentID:  id,
		BaseVersion: body.CurrentVersion,
		Instruction: body.Message,
	}, nil
}

func (h *DocumentHandler) Apply(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeEdit(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	res, err := h.service.Apply(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, res)
}

func (h *DocumentHandler) Plan(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeEdit(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	plan, err := h.service.Plan(r.Context(), req)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, plan)
}

func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.error(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.error(w, r, err)
		return
	}

	page, err := h.service.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, page)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	if err := h.service.DeleteDocument(r.Context(), id); err != nil {
		h.error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	versions, err := h.service.ListVersions(r.Context(), id)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"documentId": id,
		"versions":   versions,
	})
}

func (h *DocumentHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, num, err := versionParams(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	version, err := h.service.GetVersion(r.Context(), id, num)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, version)
}

func (h *DocumentHandler) DownloadVersion(w http.ResponseWriter, r *http.Request) {
	id, num, err := versionParams(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	data, version, err := h.service.ReadVersion(r.Context(), id, num)
	if err != nil {
		h.error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", domain.ContentTypePDF)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", downloadName(version)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *DocumentHandler) VersionText(w http.ResponseWriter, r *http.Request) {
	id, num, err := versionParams(r)
	if err != nil {
		h.error(w, r, err)
		return
	}

	pages, err := h.service.VersionText(r.Context(), id, num)
	if err != nil {
		h.error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, pageTextsResponse{DocumentID: id, VersionNum: num, Pages: pages})
}

func (h *DocumentHandler) error(w http.ResponseWriter, r *http.Request, err error) {
	respond.Error(w, h.logger, r, err)
}

func documentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.NewValidationError("invalid document id")
	}
	return id, nil
}

func versionParams(r *http.Request) (uuid.UUID, int, error) {
	id, err := documentID(r)
	if err != nil {
		return uuid.Nil, 0, err
	}
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil || num < 1 {
		return uuid.Nil, 0, apperr.NewValidationError("invalid version number")
	}
	return id, num, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewValidationError(fmt.Sprintf("invalid %s", name))
	}
	return v, nil
}

// downloadName is the stored file name with the version before the extension,
// e.g. contract.pdf -> contract-v3.pdf.
func downloadName(v *domain.Version) string {
	_, name, found := strings.Cut(v.BlobKey, fmt.Sprintf("/v%d-", v.VersionNum))
	if !found || name == "" {
		name = "document.pdf"
	}
	base := strings.TrimSuffix(name, ".pdf")
	return fmt.Sprintf("%s-v%d.pdf", base, v.VersionNum)
}
