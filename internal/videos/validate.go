package videos

import (
	"mime"
	"path/filepath"
	"strings"
)

// MaxUploadSize is the largest file accepted for processing (500 MiB).
const MaxUploadSize int64 = 500 * 1024 * 1024

var allowedContentTypes = map[string]struct{}{
	"video/mp4": {},
	"video/avi": {},
	"video/mov": {},
	"video/mkv": {},
	"video/flv": {},
	"video/wmv": {},
}

var allowedExtensions = map[string]struct{}{
	".mp4": {},
	".avi": {},
	".mov": {},
	".mkv": {},
	".flv": {},
	".wmv": {},
}

// ValidateUpload checks a candidate file before it is sent anywhere. The type
// check passes when either the MIME type or the extension is recognised.
func ValidateUpload(name, contentType string, size int64) error {
	if !acceptedContentType(contentType) && !acceptedExtension(name) {
		return ErrInvalidFileType
	}
	if size > MaxUploadSize {
		return ErrFileTooLarge
	}
	return nil
}

func acceptedContentType(contentType string) bool {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return false
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	_, ok := allowedContentTypes[strings.ToLower(contentType)]
	return ok
}

func acceptedExtension(name string) bool {
	_, ok := allowedExtensions[strings.ToLower(filepath.Ext(strings.TrimSpace(name)))]
	return ok
}
