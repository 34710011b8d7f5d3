package videos

import "errors"

var (
	// ErrInvalidFileType rejects files that are neither a video MIME type nor a video extension.
	ErrInvalidFileType = errors.New("invalid video file type")
	// ErrFileTooLarge rejects files over MaxUploadSize.
	ErrFileTooLarge = errors.New("video file too large")
	// ErrArchiveStorageUnavailable indicates the export archive has no backing store.
	ErrArchiveStorageUnavailable = errors.New("export archive storage unavailable")
)

// Messages shown for local upload validation failures.
const (
	MsgInvalidFileType = "Invalid file type. Please upload a video file."
	MsgFileTooLarge    = "File size exceeds 500MB limit."
)

// ValidationMessage returns the display text for a local upload check failure.
func ValidationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidFileType):
		return MsgInvalidFileType, true
	case errors.Is(err, ErrFileTooLarge):
		return MsgFileTooLarge, true
	default:
		return "", false
	}
}
