package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/v2t/web/internal/auth"
)

var guardNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRouteGuard(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		token    string
		wantCode int
		wantLoc  string
	}{
		{name: "anonymous dashboard", path: "/dashboard", wantCode: http.StatusFound, wantLoc: "/auth/login?redirect=%2Fdashboard"},
		{name: "anonymous nested dashboard", path: "/dashboard/video/abc", wantCode: http.StatusFound, wantLoc: "/auth/login?redirect=%2Fdashboard%2Fvideo%2Fabc"},
		{name: "prefix lookalike passes", path: "/dashboards", wantCode: http.StatusOK},
		{name: "signed in dashboard", path: "/dashboard", token: "opaque-token", wantCode: http.StatusOK},
		{name: "signed in login", path: "/auth/login", token: "opaque-token", wantCode: http.StatusFound, wantLoc: "/dashboard"},
		{name: "signed in signup", path: "/auth/signup", token: "opaque-token", wantCode: http.StatusFound, wantLoc: "/dashboard"},
		{name: "signed in verify passes", path: "/auth/verify-otp", token: "opaque-token", wantCode: http.StatusOK},
		{name: "anonymous login", path: "/auth/login", wantCode: http.StatusOK},
		{name: "anonymous home", path: "/", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := routeGuard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}), func() time.Time { return guardNow })

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d got %d", tt.wantCode, rec.Code)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Fatalf("expected location %q got %q", tt.wantLoc, rec.Header().Get("Location"))
			}
		})
	}
}

func TestHasSessionChecksJWTExpiry(t *testing.T) {
	valid := signedToken(t, guardNow.Add(time.Hour))
	expired := signedToken(t, guardNow.Add(-time.Minute))

	for name, tc := range map[string]struct {
		token string
		want  bool
	}{
		"valid jwt":   {token: valid, want: true},
		"expired jwt": {token: expired, want: false},
		"opaque":      {token: "not.a.jwt", want: true},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tc.token})
			if got := HasSession(req, guardNow); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}

	if HasSession(httptest.NewRequest(http.MethodGet, "/", nil), guardNow) {
		t.Fatal("expected no session without cookie")
	}
}
