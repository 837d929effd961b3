package filestorage

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/smilemakc/mbflow/pkg/models"
)

// MimeValidator validates MIME types against a whitelist.
type MimeValidator struct {
	allowedTypes map[string]bool
}

// NewMimeValidator creates a new MIME validator against the default
// allowed types (models.AllowedMimeTypes — a general whitelist of image,
// document, audio, video, text and archive MIME types).
func NewMimeValidator() *MimeValidator {
	return &MimeValidator{allowedTypes: models.AllowedMimeTypes}
}

// NewMimeValidatorWithTypes creates a validator with custom allowed types.
func NewMimeValidatorWithTypes(types []string) *MimeValidator {
	allowed := make(map[string]bool)
	for _, t := range types {
		allowed[t] = true
	}
	return &MimeValidator{allowedTypes: allowed}
}

// IsAllowed checks if a MIME type is allowed.
func (v *MimeValidator) IsAllowed(mimeType string) bool {
	return v.allowedTypes[v.normalizeMimeType(mimeType)]
}

// Validate validates a MIME type and returns an error if not allowed.
func (v *MimeValidator) Validate(mimeType string) error {
	if !v.IsAllowed(mimeType) {
		return fmt.Errorf("MIME type not allowed: %s", mimeType)
	}
	return nil
}

// normalizeMimeType strips parameters like charset from a MIME type.
func (v *MimeValidator) normalizeMimeType(mimeType string) string {
	parts := strings.Split(mimeType, ";")
	return strings.TrimSpace(parts[0])
}

// AllowedMimeTypesList returns the validator's allowed MIME types.
func (v *MimeValidator) AllowedMimeTypesList() []string {
	types := make([]string, 0, len(v.allowedTypes))
	for t := range v.allowedTypes {
		types = append(types, t)
	}
	return types
}

// AddAllowedType adds a MIME type to the allowed list.
func (v *MimeValidator) AddAllowedType(mimeType string) {
	v.allowedTypes[mimeType] = true
}

// RemoveAllowedType removes a MIME type from the allowed list.
func (v *MimeValidator) RemoveAllowedType(mimeType string) {
	delete(v.allowedTypes, mimeType)
}

// DetectMimeType detects MIME type from file content.
func DetectMimeType(data []byte) string {
	return http.DetectContentType(data)
}

// DetectMimeTypeFromFilename returns MIME type based on file extension.
func DetectMimeTypeFromFilename(filename string) string {
	ext := filepath.Ext(filename)
	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

// GetMimeCategory returns the top-level category of a MIME type (the part
// before the slash), or the whole string when it carries no slash.
func GetMimeCategory(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	idx := strings.Index(mimeType, "/")
	if idx < 0 {
		return mimeType
	}
	return mimeType[:idx]
}

// IsImageMime reports whether mimeType is in the image category.
func IsImageMime(mimeType string) bool {
	return GetMimeCategory(mimeType) == "image"
}

// IsVideoMime reports whether mimeType is in the video category.
func IsVideoMime(mimeType string) bool {
	return GetMimeCategory(mimeType) == "video"
}

// IsAudioMime reports whether mimeType is in the audio category.
func IsAudioMime(mimeType string) bool {
	return GetMimeCategory(mimeType) == "audio"
}

// IsDocumentMime reports whether mimeType is a document-like type: plain
// text, structured text, Office/OpenXML, or PDF.
func IsDocumentMime(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return true
	case strings.Contains(mimeType, "openxmlformats"):
		return true
	case mimeType == "application/pdf",
		mimeType == "application/msword",
		mimeType == "application/json",
		mimeType == "application/xml":
		return true
	default:
		return false
	}
}
