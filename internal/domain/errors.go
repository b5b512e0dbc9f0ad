package domain

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrVersionExists    = errors.New("version already exists")
	ErrBlobNotFound     = errors.New("object not found in storage")
)
