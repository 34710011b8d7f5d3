package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/models"
)

func TestResultsPreviewTruncates(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")

	objects := make([]models.DetectedObject, 14)
	for i := range objects {
		objects[i] = models.DetectedObject{FrameNumber: i, Timestamp: float64(i) / 2, ObjectClass: fmt.Sprintf("class-%d", i), Confidence: 0.9}
	}
	fps := 29.97
	env.client.results = models.VideoResults{
		VideoID:         "v1",
		Filename:        "clip.mp4",
		Status:          "completed",
		FPS:             &fps,
		TotalFrames:     300,
		DetectedObjects: objects,
		ExtractedTexts:  []models.ExtractedText{{FrameNumber: 3, Timestamp: 0.1, Text: "EXIT", Confidence: 0.75}},
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/results", nil), cookie)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Detected Objects (14)",
		"class-9",
		"+ 4 more objects...",
		"Extracted Texts (1)",
		"EXIT",
		"29.97",
		`href="/dashboard/video/v1/export/txt"`,
		`href="/dashboard/video/v1/export/pdf"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in results page: %s", want, body)
		}
	}
	if strings.Contains(body, "class-10") {
		t.Fatal("expected preview limited to ten objects")
	}
	if strings.Contains(body, "more texts") {
		t.Fatal("unexpected overflow line for texts")
	}
}

func TestResultsEmptySections(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.results = models.VideoResults{VideoID: "v1", Status: "completed"}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/results", nil), cookie)

	body := rec.Body.String()
	if !strings.Contains(body, "No objects detected") || !strings.Contains(body, "No text extracted") {
		t.Fatalf("expected empty placeholders: %s", body)
	}
}

func TestResultsFetchedPerView(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.results = models.VideoResults{VideoID: "v1"}

	env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/results", nil), cookie)
	env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/results", nil), cookie)

	if env.client.count("results") != 2 {
		t.Fatalf("expected a fetch per view got %d", env.client.count("results"))
	}
}

func TestResultsBackendFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.resultsErr = &gateway.APIError{StatusCode: http.StatusNotFound, Body: []byte(`{"detail":"Video not found"}`)}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/results", nil), cookie)

	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Video not found") {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExportStreamsAttachmentAndArchives(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.export = gateway.Export{ContentType: "application/pdf", Data: []byte("%PDF-1.4")}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/export/PDF", nil), cookie)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=video_v1_results.pdf" {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	env.archive.mu.Lock()
	defer env.archive.mu.Unlock()
	if env.archive.videoID != "v1" || env.archive.filename != "video_v1_results.pdf" || string(env.archive.data) != "%PDF-1.4" {
		t.Fatalf("unexpected archive request %+v", env.archive)
	}
}

func TestExportFailureReturnsToResults(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.exportErr = errors.New("connection reset")
	env.client.results = models.VideoResults{VideoID: "v1"}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/export/pdf", nil), cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc != "/dashboard/video/v1/results?error=export&format=pdf" {
		t.Fatalf("unexpected redirect %q", loc)
	}

	page := env.do(httptest.NewRequest(http.MethodGet, loc, nil), cookie)
	if !strings.Contains(page.Body.String(), "Failed to export results as PDF") {
		t.Fatalf("expected export failure message: %s", page.Body.String())
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/export/docx", nil), cookie)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", rec.Code)
	}
	if env.client.count("export") != 0 {
		t.Fatal("backend must not see an unknown format")
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")

	rec := env.do(postForm("/dashboard/video/v1/delete", ""), cookie)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard/video/v1/results" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if env.client.count("delete") != 0 {
		t.Fatal("delete must not reach the backend without confirmation")
	}
}

func TestConfirmDeletePage(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard/video/v1/delete", nil), cookie)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="confirm" value="yes"`) {
		t.Fatalf("unexpected confirm page %d: %s", rec.Code, rec.Body.String())
	}
	if env.client.count("delete") != 0 {
		t.Fatal("viewing the confirmation must not delete")
	}
}

func TestDeleteConfirmed(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")

	rec := env.do(postForm("/dashboard/video/v1/delete", "confirm=yes"), cookie)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if env.client.deleted != "v1" {
		t.Fatalf("expected v1 deleted got %q", env.client.deleted)
	}
}

func TestDeleteFailureMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.signIn(t, "tok")
	env.client.deleteErr = &gateway.APIError{StatusCode: http.StatusInternalServerError}
	env.client.results = models.VideoResults{VideoID: "v1"}

	rec := env.do(postForm("/dashboard/video/v1/delete", "confirm=yes"), cookie)
	loc := rec.Header().Get("Location")
	if loc != "/dashboard/video/v1/results?error=delete" {
		t.Fatalf("unexpected redirect %q", loc)
	}

	page := env.do(httptest.NewRequest(http.MethodGet, loc, nil), cookie)
	if !strings.Contains(page.Body.String(), "Failed to delete video") {
		t.Fatalf("expected delete failure message: %s", page.Body.String())
	}
}
