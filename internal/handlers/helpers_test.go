package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/models"
	"github.com/v2t/web/internal/videos"
)

type stubVideoClient struct {
	mu    sync.Mutex
	calls map[string]int
	token string

	uploadName string
	uploadType string
	uploadBody []byte
	upload     models.VideoUpload
	uploadErr  error

	statuses  []models.VideoStatus
	statusErr error

	results    models.VideoResults
	resultsErr error

	list     models.VideoList
	listOpts gateway.ListOptions
	listErr  error

	export    gateway.Export
	exportErr error

	deleted   string
	deleteErr error
}

func (s *stubVideoClient) record(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
	return s.calls[name]
}

func (s *stubVideoClient) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubVideoClient) Upload(_ context.Context, filename, contentType string, r io.Reader) (models.VideoUpload, error) {
	s.record("upload")
	data, err := io.ReadAll(r)
	if err != nil {
		return models.VideoUpload{}, err
	}
	s.uploadName, s.uploadType, s.uploadBody = filename, contentType, data
	return s.upload, s.uploadErr
}

func (s *stubVideoClient) Status(_ context.Context, videoID string) (models.VideoStatus, error) {
	n := s.record("status")
	if s.statusErr != nil {
		return models.VideoStatus{}, s.statusErr
	}
	idx := n - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	status := s.statuses[idx]
	status.VideoID = videoID
	return status, nil
}

func (s *stubVideoClient) Results(_ context.Context, videoID string) (models.VideoResults, error) {
	s.record("results")
	return s.results, s.resultsErr
}

func (s *stubVideoClient) List(_ context.Context, opts gateway.ListOptions) (models.VideoList, error) {
	s.record("list")
	s.listOpts = opts
	return s.list, s.listErr
}

func (s *stubVideoClient) Export(_ context.Context, videoID, format string) (gateway.Export, error) {
	s.record("export")
	return s.export, s.exportErr
}

func (s *stubVideoClient) Delete(_ context.Context, videoID string) error {
	s.record("delete")
	s.deleted = videoID
	return s.deleteErr
}

type stubArchive struct {
	mu       sync.Mutex
	videoID  string
	filename string
	data     []byte
}

func (a *stubArchive) Enqueue(_ context.Context, videoID, filename string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.videoID, a.filename, a.data = videoID, filename, data
	return nil
}

type testEnv struct {
	store    *auth.InMemorySessionStore
	sessions *auth.SessionManager
	client   *stubVideoClient
	archive  *stubArchive
	handler  http.Handler
}

func newTestEnv(t *testing.T, flow AuthFlow) *testEnv {
	t.Helper()
	store := auth.NewInMemorySessionStore()
	env := &testEnv{
		store:    store,
		sessions: auth.NewSessionManager(store, 24*time.Hour, false),
		client:   &stubVideoClient{statuses: []models.VideoStatus{{Status: "processing"}}},
		archive:  &stubArchive{},
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Sessions: env.sessions,
		Auth:     flow,
		Videos: func(token string) VideoClient {
			env.client.mu.Lock()
			env.client.token = token
			env.client.mu.Unlock()
			return env.client
		},
		Archive:       env.archive,
		Poll:          videos.PollerConfig{Interval: 5 * time.Millisecond, RequestTimeout: time.Second, MaxDuration: 5 * time.Second},
		RedirectDelay: 2 * time.Second,
	})
	env.handler = mux
	return env
}

// signIn establishes a session and returns its cookie.
func (e *testEnv) signIn(t *testing.T, token string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if _, err := e.sessions.Establish(context.Background(), rec, token, models.User{ID: 1, Name: "Ada", Username: "ada"}); err != nil {
		t.Fatalf("establish session: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func assertSignedOut(t *testing.T, env *testEnv, rec *httptest.ResponseRecorder, token string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/auth/login" {
		t.Fatalf("expected redirect to /auth/login got %q", loc)
	}
	if env.store.Has(token) {
		t.Fatal("expected durable session removed")
	}
	cookie := sessionCookie(rec)
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Fatalf("expected session cookie to be expired, got %+v", cookie)
	}
}

var unauthorized = &gateway.APIError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"detail":"Could not validate credentials"}`)}

var apiErrorWithDetail = gateway.APIError{StatusCode: http.StatusBadRequest, Body: []byte(`{"detail":"Unsupported codec"}`)}
