package domain

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FileName  string    `json:"fileName" db:"file_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DocumentWithLatest is a document row joined with its newest version number.
type DocumentWithLatest struct {
	Document
	LatestVersion int `json:"latestVersion" db:"latest_version"`
}
