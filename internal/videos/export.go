package videos

import (
	"fmt"
	"strings"
)

// ExportFormats lists every format the backend can render.
var ExportFormats = []string{"txt", "pdf", "json", "csv"}

// OfferedExportFormats are the formats linked from the results page.
var OfferedExportFormats = []string{"txt", "pdf"}

// ValidExportFormat reports whether format is one of ExportFormats.
func ValidExportFormat(format string) bool {
	format = strings.ToLower(format)
	for _, f := range ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ExportFilename names a downloaded export.
func ExportFilename(videoID, format string) string {
	return fmt.Sprintf("video_%s_results.%s", videoID, strings.ToLower(format))
}

// ExportFailureMessage is shown when an export download fails.
func ExportFailureMessage(format string) string {
	return "Failed to export results as " + strings.ToUpper(format)
}
