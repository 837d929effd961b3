package models

import (
	"fmt"
	"time"
)

// ValidationError reports a single field-level validation failure, shared
// by every domain model in this package that validates itself.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// AccessScope defines the visibility scope of a file in the storage.
type AccessScope string

const (
	// ScopeResource - file belongs to a case's source-upload storage key.
	ScopeResource AccessScope = "resource"
)

// ValidAccessScopes contains all valid access scope values.
var ValidAccessScopes = map[AccessScope]bool{
	ScopeResource: true,
}

// IsValid checks if the access scope is valid.
func (s AccessScope) IsValid() bool {
	return ValidAccessScopes[s]
}

// FileEntry represents a file stored in the file storage system — the
// source spreadsheet blobs internal/orderworkflow.Blobs persists per case.
type FileEntry struct {
	ID          string                 `json:"id"`
	StorageID   string                 `json:"storage_id"`
	Name        string                 `json:"name"`
	Path        string                 `json:"path"`
	MimeType    string                 `json:"mime_type"`
	Size        int64                  `json:"size"`
	Checksum    string                 `json:"checksum"`
	AccessScope AccessScope            `json:"access_scope"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CaseID      *string                `json:"case_id,omitempty"`
	TTL         *time.Duration         `json:"ttl,omitempty"`
	ExpiresAt   *time.Time             `json:"expires_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// IsExpired checks if the file has expired.
func (f *FileEntry) IsExpired() bool {
	if f.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*f.ExpiresAt)
}

// SetTTL sets the TTL and calculates ExpiresAt.
func (f *FileEntry) SetTTL(ttl time.Duration) {
	f.TTL = &ttl
	expiresAt := time.Now().Add(ttl)
	f.ExpiresAt = &expiresAt
}

// Validate validates the file entry.
func (f *FileEntry) Validate() error {
	if f.ID == "" {
		return &ValidationError{Field: "id", Message: "file ID is required"}
	}
	if f.StorageID == "" {
		return &ValidationError{Field: "storage_id", Message: "storage ID is required"}
	}
	if f.Name == "" {
		return &ValidationError{Field: "name", Message: "file name is required"}
	}
	if f.MimeType == "" {
		return &ValidationError{Field: "mime_type", Message: "MIME type is required"}
	}
	if !f.AccessScope.IsValid() {
		return &ValidationError{Field: "access_scope", Message: fmt.Sprintf("invalid access scope: %s", f.AccessScope)}
	}
	if f.Size < 0 {
		return &ValidationError{Field: "size", Message: "file size cannot be negative"}
	}
	return nil
}

// StorageConfig holds configuration for a storage instance.
type StorageConfig struct {
	Type        StorageType            `json:"type"`
	BasePath    string                 `json:"base_path"`
	MaxSize     int64                  `json:"max_size"`
	MaxFileSize int64                  `json:"max_file_size"`
	DefaultTTL  *time.Duration         `json:"default_ttl,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
)

// StorageUsage contains storage usage statistics.
type StorageUsage struct {
	StorageID    string  `json:"storage_id"`
	TotalSize    int64   `json:"total_size"`
	FileCount    int64   `json:"file_count"`
	MaxSize      int64   `json:"max_size"`
	UsagePercent float64 `json:"usage_percent"`
}

// AllowedMimeTypes defines the whitelist of MIME types the storage
// manager accepts; order intake itself only ever stores .xlsx/.xls
// blobs (internal/parser rejects anything else), but the underlying
// storage is the teacher's general-purpose file store.
var AllowedMimeTypes = map[string]bool{
	// Images
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
	"image/bmp":     true,
	"image/tiff":    true,

	// Documents
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,

	// Audio
	"audio/mpeg": true,
	"audio/wav":  true,
	"audio/ogg":  true,
	"audio/webm": true,
	"audio/flac": true,

	// Video
	"video/mp4":       true,
	"video/webm":      true,
	"video/ogg":       true,
	"video/mpeg":      true,
	"video/quicktime": true,

	// Text
	"text/plain":       true,
	"text/csv":         true,
	"text/html":        true,
	"text/markdown":    true,
	"application/json": true,
	"application/xml":  true,

	// Archives
	"application/zip":              true,
	"application/gzip":             true,
	"application/x-tar":            true,
	"application/x-rar-compressed": true,
	"application/x-7z-compressed":  true,
}

// IsMimeTypeAllowed checks if a MIME type is in the allowed list.
func IsMimeTypeAllowed(mimeType string) bool {
	return AllowedMimeTypes[mimeType]
}
