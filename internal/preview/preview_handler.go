package preview

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
	"pdfedit/internal/handler/respond"
)

type VersionLookup interface {
	GetVersion(ctx context.Context, documentID uuid.UUID, versionNum int) (*domain.Version, error)
}

type Handler struct {
	service  *Service
	versions VersionLookup
	logger   *logrus.Logger
}

func NewHandler(service *Service, versions VersionLookup, logger *logrus.Logger) *Handler {
	return &Handler{
		service:  service,
		versions: versions,
		logger:   logger,
	}
}

func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, h.logger, r, apperr.NewValidationError("invalid document id"))
		return
	}
	num, err := strconv.Atoi(chi.URLParam(r, "num"))
	if err != nil {
		respond.Error(w, h.logger, r, apperr.NewValidationError("invalid version number"))
		return
	}

	version, err := h.versions.GetVersion(r.Context(), docID, num)
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	image, err := h.service.GetOrGeneratePreview(r.Context(), version)
	if err != nil {
		respond.Error(w, h.logger, r, err)
		return
	}

	w.Header().Set("Content-Type", contentTypeJPEG)
	// Versions are immutable, so their previews are too.
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}
