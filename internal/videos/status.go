package videos

import (
	"strings"

	"github.com/v2t/web/internal/models"
)

// NormalizeStatus folds case and surrounding whitespace out of a backend status.
func NormalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// IsTerminal reports whether status ends processing.
func IsTerminal(status string) bool {
	switch NormalizeStatus(status) {
	case models.StatusCompleted, models.StatusFailed:
		return true
	default:
		return false
	}
}

// IsCompleted reports whether status is the successful terminal state.
func IsCompleted(status string) bool {
	return NormalizeStatus(status) == models.StatusCompleted
}

// ClampProgress bounds a progress value to 0..100.
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
