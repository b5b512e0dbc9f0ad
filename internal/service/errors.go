package service

import (
	"errors"

	"pdfedit/internal/apperr"
	"pdfedit/internal/domain"
)

const msgPDFNotFound = "PDF not found"

// mapStoreError turns repository and blob errors into errors a client can act on.
func mapStoreError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperr.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		return apperr.NewNotFoundError("document not found")
	case errors.Is(err, domain.ErrVersionNotFound), errors.Is(err, domain.ErrBlobNotFound):
		return apperr.NewNotFoundError(msgPDFNotFound)
	case errors.Is(err, domain.ErrVersionExists):
		return apperr.NewConflictError("version was created concurrently, retry the request", err)
	}
	return apperr.NewInternalError(message, err)
}
