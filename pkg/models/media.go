package models

import "time"

// Media is an uploaded file: the raw bytes live both in the bucket (keyed by
// filename) and in the database row. The single-file upload path keys rows
// by generated id, the multi-file path keys them by filename -- two identity
// schemes over the same table, kept as-is for existing clients.
type Media struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Data      []byte    `json:"-" db:"data"`
	MimeType  string    `json:"mime_type" db:"mime_type"`
	ProjectID string    `json:"project_id" db:"project_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UploadedMedia is the metadata returned after an upload
type UploadedMedia struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

// FileInfo is one entry of a file listing (db or bucket)
type FileInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
