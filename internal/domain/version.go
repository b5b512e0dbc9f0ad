package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const ContentTypePDF = "application/pdf"

type Version struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"documentId" db:"document_id"`
	VersionNum int       `json:"versionNum" db:"version_num"`
	BlobKey    string    `json:"blobKey" db:"blob_key"`
	BlobURL    string    `json:"url" db:"blob_url"`
	SizeBytes  int64     `json:"sizeBytes" db:"size_bytes"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// BlobKey builds the object key under which a version's bytes are stored.
func BlobKey(documentID uuid.UUID, versionNum int, fileName string) string {
	return fmt.Sprintf("pdfs/%s/v%d-%s", documentID, versionNum, fileName)
}

// PreviewKey is the object key of the cached first-page preview of a version.
func PreviewKey(documentID uuid.UUID, versionNum int) string {
	return fmt.Sprintf("previews/%s/v%d.jpg", documentID, versionNum)
}

// ObjectURL joins a base URL and an object key, escaping each key segment.
func ObjectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
