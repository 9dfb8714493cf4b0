package domain

import (
	"time"
)

// Dataset identifies one persisted ingest batch. Datasets are created
// once, never mutated, and never deleted by the pipeline; lifecycle
// management belongs to the record store.
type Dataset struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name" validate:"required,min=1,max=200"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}
