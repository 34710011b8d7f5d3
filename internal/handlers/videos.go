package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
	"github.com/v2t/web/internal/videos"
)

const (
	uploadFallback = "Upload failed. Please try again."
	listFallback   = "Failed to load videos"
	msgNoFile      = "Please choose a video file to upload."

	// multipartOverhead covers form boundaries and headers around the file.
	multipartOverhead   = 1 << 20
	multipartMemory     = 32 << 20
	defaultListPageSize = 20
	maxListPageSize     = 100
)

// VideoHandler serves the upload dashboard, the job list and status tracking.
type VideoHandler struct {
	Sessions       SessionManager
	Videos         VideoClientFactory
	Poll           videos.PollerConfig
	RedirectDelay  time.Duration
	MaxUploadBytes int64
}

type dashboardPage struct {
	page
	Uploaded *models.VideoUpload
}

type videosPage struct {
	page
	Videos   []models.VideoSummary
	Total    int
	From     int
	To       int
	Filter   string
	Statuses []string
	PrevURL  string
	NextURL  string
}

type statusPage struct {
	page
	VideoID        string
	Status         *models.VideoStatus
	Terminal       bool
	Completed      bool
	FailureMessage string
	EventsURL      string
	ResultsURL     string
}

// statusEvent is the payload of one server-sent status event.
type statusEvent struct {
	VideoID      string `json:"video_id"`
	State        string `json:"state"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	Message      string `json:"message"`
	ErrorMessage string `json:"error_message,omitempty"`
	ResultsURL   string `json:"results_url,omitempty"`
	Redirect     string `json:"redirect,omitempty"`
}

func resultsURL(videoID string) string {
	return "/dashboard/video/" + url.PathEscape(videoID) + "/results"
}

func (h VideoHandler) client(token string) (VideoClient, error) {
	if h.Videos == nil {
		return nil, errors.New("video client unavailable")
	}
	return h.Videos(token), nil
}

// Dashboard handles GET /dashboard.
func (h VideoHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	render(w, r, http.StatusOK, "dashboard", dashboardPage{page: signedInPage("Dashboard", session)})
}

// Upload handles POST /dashboard/upload. The file is checked locally before
// anything is sent to the backend.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	data := dashboardPage{page: signedInPage("Dashboard", session)}
	fail := func(status int, message string) {
		data.Error = message
		render(w, r, status, "dashboard", data)
	}

	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = videos.MaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("upload body exceeded limit", "limit", limit)
			fail(http.StatusRequestEntityTooLarge, videos.MsgFileTooLarge)
			return
		}
		logger.Warn("invalid upload form", "error", err)
		fail(http.StatusBadRequest, uploadFallback)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("upload missing file", "error", err)
		fail(http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := videos.ValidateUpload(header.Filename, contentType, header.Size); err != nil {
		message, _ := videos.ValidationMessage(err)
		logger.Warn("upload rejected", "filename", header.Filename, "contentType", contentType, "size", header.Size, "error", err)
		fail(http.StatusBadRequest, message)
		return
	}

	client, err := h.client(session.Token)
	if err != nil {
		logger.Error("upload unavailable", "error", err)
		fail(http.StatusInternalServerError, uploadFallback)
		return
	}

	uploaded, err := client.Upload(ctx, header.Filename, contentType, file)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logger.Warn("upload failed", "filename", header.Filename, "error", err)
		fail(backendStatus(err), gateway.Message(err, uploadFallback))
		return
	}

	logger.Info("video uploaded", "videoId", uploaded.VideoID, "size", uploaded.FileSize)
	data.Uploaded = &uploaded
	data.Notice = strings.TrimSpace("Video uploaded successfully! " + uploaded.Message)
	data.Refresh = refreshAfter(h.RedirectDelay, "/dashboard/video/"+url.PathEscape(uploaded.VideoID))
	render(w, r, http.StatusOK, "dashboard", data)
}

// List handles GET /dashboard/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	query := r.URL.Query()
	opts := gateway.ListOptions{
		Skip:   queryInt(query, "skip", 0, 0, 1<<30),
		Limit:  queryInt(query, "limit", defaultListPageSize, 1, maxListPageSize),
		Status: videos.NormalizeStatus(query.Get("status")),
	}
	data := videosPage{
		page:     signedInPage("My videos", session),
		Filter:   opts.Status,
		Statuses: []string{models.StatusUploaded, models.StatusProcessing, models.StatusCompleted, models.StatusFailed},
	}

	client, err := h.client(session.Token)
	if err != nil {
		logger.Error("video list unavailable", "error", err)
		data.Error = listFallback
		render(w, r, http.StatusInternalServerError, "videos", data)
		return
	}

	list, err := client.List(ctx, opts)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logger.Warn("video list failed", "error", err)
		data.Error = gateway.Message(err, listFallback)
		render(w, r, backendStatus(err), "videos", data)
		return
	}

	data.Videos = list.Videos
	data.Total = list.Total
	if len(list.Videos) > 0 {
		data.From = opts.Skip + 1
		data.To = opts.Skip + len(list.Videos)
	}
	if opts.Skip > 0 {
		data.PrevURL = listURL(opts.Status, max(opts.Skip-opts.Limit, 0), opts.Limit)
	}
	if opts.Skip+len(list.Videos) < list.Total {
		data.NextURL = listURL(opts.Status, opts.Skip+opts.Limit, opts.Limit)
	}
	render(w, r, http.StatusOK, "videos", data)
}

func listURL(status string, skip, limit int) string {
	values := url.Values{}
	if status != "" {
		values.Set("status", status)
	}
	values.Set("skip", strconv.Itoa(skip))
	values.Set("limit", strconv.Itoa(limit))
	return "/dashboard/videos?" + values.Encode()
}

func queryInt(values url.Values, key string, fallback, lo, hi int) int {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return min(max(n, lo), hi)
}

// StatusPage handles GET /dashboard/video/{id}. It renders one snapshot;
// the page then follows the event stream until a terminal state.
func (h VideoHandler) StatusPage(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	videoID := r.PathValue("id")

	data := statusPage{
		page:       signedInPage("Video status", session),
		VideoID:    videoID,
		EventsURL:  "/dashboard/video/" + url.PathEscape(videoID) + "/events?after=snapshot",
		ResultsURL: resultsURL(videoID),
	}

	client, err := h.client(session.Token)
	if err != nil {
		logging.FromContext(ctx).Error("status unavailable", "error", err)
		data.Error = videos.StatusFallback
		data.Terminal = true
		render(w, r, http.StatusInternalServerError, "video_status", data)
		return
	}

	status, err := client.Status(ctx, videoID)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		logging.FromContext(ctx).Warn("status fetch failed", "videoId", videoID, "error", err)
		data.Error = gateway.Message(err, videos.StatusFallback)
		data.Terminal = true
		render(w, r, backendStatus(err), "video_status", data)
		return
	}

	status.Progress = videos.ClampProgress(status.Progress)
	data.Status = &status
	data.Terminal = videos.IsTerminal(status.Status)
	data.Completed = videos.IsCompleted(status.Status)
	if data.Terminal && !data.Completed {
		data.FailureMessage = videos.PollUpdate{State: videos.StateFailed, Status: status}.Message()
	}
	render(w, r, http.StatusOK, "video_status", data)
}

// StatusJSON handles GET /dashboard/video/{id}/status.
func (h VideoHandler) StatusJSON(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	videoID := r.PathValue("id")

	client, err := h.client(session.Token)
	if err != nil {
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": videos.StatusFallback})
		return
	}

	status, err := client.Status(ctx, videoID)
	if err != nil {
		if signOutOnUnauthorized(h.Sessions, w, r, err) {
			return
		}
		respondJSON(ctx, w, backendStatus(err), map[string]string{"error": gateway.Message(err, videos.StatusFallback)})
		return
	}

	status.Progress = videos.ClampProgress(status.Progress)
	respondJSON(ctx, w, http.StatusOK, status)
}

// Events handles GET /dashboard/video/{id}/events, streaming poller updates as
// server-sent events until a terminal state or until the viewer disconnects.
func (h VideoHandler) Events(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(h.Sessions, w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	videoID := r.PathValue("id")

	client, err := h.client(session.Token)
	if err != nil {
		logger.Error("status stream unavailable", "error", err)
		http.Error(w, videos.StatusFallback, http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		logger.Warn("clear write deadline", "error", err)
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	cfg := h.Poll
	// The status page renders its own snapshot, so the stream's first
	// request can wait for the next tick.
	cfg.SkipInitialFetch = r.URL.Query().Get("after") == "snapshot"
	poller := videos.NewPoller(client, cfg)
	final := poller.Run(ctx, videoID, func(update videos.PollUpdate) {
		if update.State == videos.StateCancelled {
			return
		}
		name, event := eventFor(update)
		if err := writeEvent(w, name, event); err != nil {
			logger.Debug("write status event", "error", err)
			return
		}
		_ = rc.Flush()
	})

	if isAuthError(final.Err) && h.Sessions != nil {
		// Headers are already sent, so only the durable record can be dropped
		// here; the next dashboard load clears the cookie.
		h.Sessions.Clear(ctx, w, r)
	}
	logger.Info("status stream closed", "videoId", videoID, "state", final.State, "attempts", final.Attempt)
}

func eventFor(update videos.PollUpdate) (string, statusEvent) {
	event := statusEvent{
		VideoID:      update.VideoID,
		State:        string(update.State),
		Status:       update.Status.Status,
		Progress:     update.Status.Progress,
		Message:      update.Message(),
		ErrorMessage: update.Status.ErrorMessage,
	}

	switch {
	case isAuthError(update.Err):
		event.Redirect = dashboardPath
		return "unauthorized", event
	case update.State == videos.StateDone:
		event.ResultsURL = resultsURL(update.VideoID)
	case update.State == videos.StateFailed && event.ErrorMessage == "":
		event.ErrorMessage = event.Message
	}
	return string(update.State), event
}

func writeEvent(w http.ResponseWriter, name string, event statusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
