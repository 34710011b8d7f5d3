package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized matches any backend response with status 401.
	ErrUnauthorized = errors.New("backend rejected the session token")
	// ErrUnauthenticated is returned before any network I/O when a call needs a
	// session and no token is available.
	ErrUnauthenticated = errors.New("no session token")
)

// ValidationFallback is shown when the backend sends a detail array with no usable messages.
const ValidationFallback = "Validation error occurred"

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Message renders err for display. A backend "detail" array is flattened by
// joining each element's msg (or message) with ", ". A string detail is used
// verbatim. Anything else, including transport failures, yields fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fallback
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(apiErr.Body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallback
	}

	var items []json.RawMessage
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, raw := range items {
			var item struct {
				Msg     string `json:"msg"`
				Message string `json:"message"`
			}
			if json.Unmarshal(raw, &item) != nil {
				continue
			}
			switch {
			case item.Msg != "":
				parts = append(parts, item.Msg)
			case item.Message != "":
				parts = append(parts, item.Message)
			}
		}
		if len(parts) == 0 {
			return ValidationFallback
		}
		return strings.Join(parts, ", ")
	}

	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err == nil && detail != "" {
		return detail
	}

	return fallback
}
