package model

import "time"

// UploadedDocument describes a file accepted by the stager. It is never stored
// anywhere but the document directory itself.
type UploadedDocument struct {
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	SizeBytes    int64     `json:"sizeBytes"`
	MimeType     string    `json:"mimeType"`
	StoredAt     time.Time `json:"storedAt"`
}

// StoredDocument is one entry of the document directory listing.
type StoredDocument struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"sizeBytes"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
