package handlers

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"fixed": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"percent": func(v float64) string {
		return fmt.Sprintf("%.1f%%", v*100)
	},
	"megabytes": func(size int64) string {
		return fmt.Sprintf("%.2f MB", float64(size)/(1024*1024))
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"when": func(ts models.Timestamp) string {
		if ts.IsZero() {
			return ""
		}
		return ts.Format("2006-01-02 15:04:05")
	},
}

var pageNames = []string{
	"home",
	"signup",
	"verify_otp",
	"login",
	"dashboard",
	"videos",
	"video_status",
	"results",
	"confirm_delete",
}

var pages = mustParsePages()

func mustParsePages() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		parsed[name] = template.Must(template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		))
	}
	return parsed
}

// page carries the fields every template reads from the layout.
type page struct {
	Title    string
	SignedIn bool
	User     *models.User
	Error    string
	Notice   string
	Refresh  *refresh
}

type refresh struct {
	Seconds int
	URL     string
}

func refreshAfter(delay time.Duration, url string) *refresh {
	seconds := int(math.Ceil(delay.Seconds()))
	if seconds < 0 {
		seconds = 0
	}
	return &refresh{Seconds: seconds, URL: url}
}

func render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	logger := logging.FromContext(r.Context())

	tmpl, ok := pages[name]
	if !ok {
		logger.Error("unknown template", "template", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		logger.Error("render template", "template", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)

	if status >= http.StatusBadRequest {
		logger.Warn("page rendered with error", "template", name, "status", status)
	}
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
