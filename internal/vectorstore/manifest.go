package vectorstore

import "time"

// Manifest is the single source of truth for a collection. A collection with a missing
// or mismatched checksum is treated as unreadable.
type Manifest struct {
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
	Dim           int       `json:"dim"`
	Rows          int       `json:"rows"`
	Algorithm     string    `json:"algorithm"`
	SHA256Hex     string    `json:"sha256_hex"`
	SchemaVersion string    `json:"schema_version"`
}
