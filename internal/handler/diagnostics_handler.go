package handler

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"pdfedit/internal/handler/respond"
	"pdfedit/internal/service"
)

const (
	hintInitDB   = "Run `pdfeditctl migrate up` to create the tables manually"
	hintTestDB   = "Call /api/init-db to create database tables"
	hintTestBlob = "Check the STORAGE_* settings and that the bucket is reachable"
)

type Diagnostics interface {
	InitDB(ctx context.Context) (*service.InitDBResult, error)
	TestBlob(ctx context.Context) (*service.TestBlobResult, error)
	TestDB(ctx context.Context) (*service.TestDBResult, error)
}

type DiagnosticsHandler struct {
	service Diagnostics
	logger  *logrus.Logger
}

type diagnosticsFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Hint    string `json:"hint"`
}

func NewDiagnosticsHandler(service Diagnostics, logger *logrus.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{service: service, logger: logger}
}

func (h *DiagnosticsHandler) InitDB(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.InitDB(r.Context())
	h.write(w, r, res, err, hintInitDB)
}

func (h *DiagnosticsHandler) TestBlob(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.TestBlob(r.Context())
	h.write(w, r, res, err, hintTestBlob)
}

func (h *DiagnosticsHandler) TestDB(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.TestDB(r.Context())
	h.write(w, r, res, err, hintTestDB)
}

func (h *DiagnosticsHandler) write(w http.ResponseWriter, r *http.Request, res interface{}, err error, hint string) {
	if err != nil {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("Diagnostics check failed")
		respond.JSON(w, http.StatusInternalServerError, diagnosticsFailure{
			Success: false,
			Error:   err.Error(),
			Hint:    hint,
		})
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
