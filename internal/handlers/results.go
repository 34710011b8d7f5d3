package handlers

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
	"github.com/v2t/web/internal/videos"
)

const (
	resultsFallback   = "Failed to load results"
	msgDeleteFailed   = "Failed to delete video"
	resultsPreviewLen = 10

	errCodeExport = "export"
	errCodeDelete = "delete"
)

// ResultsHandler serves processed results, exports and deletion.
type ResultsHandler struct {
	Sessions SessionManager
	Videos   VideoClientFactory
	Archive  ExportArchiver
}

type resultsPage struct {
	page
	VideoID     string
	Results     *models.VideoResults
	Objects     []models.DetectedObject
	MoreObjects int
	Texts       []models.ExtractedText
	MoreTexts   int
	Formats     []string
}

type confirmDeletePage struct {
	page
	VideoID string
}

func (h ResultsHandler) client(token string) VideoClient {
	if h.Videos == nil {
		return nil
	}
	return h.Videos(token)
}

// Results handles GET /dashboard/video/{id}/results. Results are fetched once
// per view and never cached.
func (h ResultsHandler) Results(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	videoID := r.PathValue("id")

	data := resultsPage{
		page:    signedInPage("Results", session),
		VideoID: videoID,
		Formats: videos.OfferedExportFormats,
	}

	client := h.client(session.Token)
	if client == nil {
		logging.FromContext(ctx).Error("results unavailable")
		data.Error = resultsFallback
		render(w, r, http.StatusInternalServerError, "results", data)
		return
	}

	results, err := client.Results(ctx, videoID)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logging.FromContext(ctx).Warn("results fetch failed", "videoId", videoID, "error", err)
		data.Error = gateway.Message(err, resultsFallback)
		render(w, r, backendStatus(err), "results", data)
		return
	}

	data.Results = &results
	data.Objects, data.MoreObjects = preview(results.DetectedObjects)
	data.Texts, data.MoreTexts = preview(results.ExtractedTexts)
	data.Error = actionError(r.URL.Query())
	render(w, r, http.StatusOK, "results", data)
}

func preview[T any](items []T) ([]T, int) {
	if len(items) <= resultsPreviewLen {
		return items, 0
	}
	return items[:resultsPreviewLen], len(items) - resultsPreviewLen
}

// actionError maps the error code carried back from a failed export or
// delete to its message.
func actionError(query url.Values) string {
	switch query.Get("error") {
	case errCodeExport:
		format := strings.ToLower(query.Get("format"))
		if !videos.ValidExportFormat(format) {
			format = "txt"
		}
		return videos.ExportFailureMessage(format)
	case errCodeDelete:
		return msgDeleteFailed
	default:
		return ""
	}
}

func resultsErrorURL(videoID string, values url.Values) string {
	return resultsURL(videoID) + "?" + values.Encode()
}

// Export handles GET /dashboard/video/{id}/export/{format}. The payload is
// streamed to the browser as an attachment and, when an archive is
// configured, queued for a copy to object storage.
func (h ResultsHandler) Export(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")
	format := strings.ToLower(r.PathValue("format"))

	failed := resultsErrorURL(videoID, url.Values{"error": {errCodeExport}, "format": {format}})
	if !videos.ValidExportFormat(format) {
		logger.Warn("unsupported export format", "format", format)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	client := h.client(session.Token)
	if client == nil {
		logger.Error("export unavailable")
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	export, err := client.Export(ctx, videoID, format)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logger.Warn("export failed", "videoId", videoID, "format", format, "error", err)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	filename := videos.ExportFilename(videoID, format)
	contentType := export.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		logger.Warn("write export", "videoId", videoID, "error", err)
		return
	}

	if h.Archive != nil {
		if err := h.Archive.Enqueue(ctx, videoID, filename, export.Data); err != nil {
			logger.Warn("export not archived", "videoId", videoID, "error", err)
		}
	}
}

// ConfirmDelete handles GET /dashboard/video/{id}/delete.
func (h ResultsHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, "confirm_delete", confirmDeletePage{
		page:    signedInPage("Delete video", session),
		VideoID: r.PathValue("id"),
	})
}

// Delete handles POST /dashboard/video/{id}/delete. Nothing is sent to the
// backend unless the form carries confirm=yes.
func (h ResultsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")

	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, resultsURL(videoID), http.StatusSeeOther)
		return
	}

	failed := resultsErrorURL(videoID, url.Values{"error": {errCodeDelete}})
	client := h.client(session.Token)
	if client == nil {
		logger.Error("delete unavailable")
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	if err := client.Delete(ctx, videoID); err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logger.Warn("delete failed", "videoId", videoID, "error", err)
		http.Redirect(w, r, failed, http.StatusSeeOther)
		return
	}

	logger.Info("video deleted", "videoId", videoID)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}
