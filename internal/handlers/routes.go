package handlers

import (
	"net/http"
	"time"

	"github.com/v2t/web/internal/videos"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Sessions       SessionManager
	Auth           AuthFlow
	Videos         VideoClientFactory
	Archive        ExportArchiver
	AuthLimiter    RateLimiter
	Poll           videos.PollerConfig
	RedirectDelay  time.Duration
	MaxUploadBytes int64
	HealthChecks   map[string]HealthCheck
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	delay := deps.RedirectDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	health := HealthHandler{Checks: deps.HealthChecks}
	home := HomeHandler{}
	authPages := AuthHandler{Flow: deps.Auth, Sessions: deps.Sessions, Limiter: deps.AuthLimiter, RedirectDelay: delay}
	dashboard := VideoHandler{
		Sessions:       deps.Sessions,
		Videos:         deps.Videos,
		Poll:           deps.Poll,
		RedirectDelay:  delay,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	results := ResultsHandler{Sessions: deps.Sessions, Videos: deps.Videos, Archive: deps.Archive}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("GET /{$}", home.Handle)

	mux.HandleFunc("GET /auth/signup", authPages.SignupForm)
	mux.HandleFunc("POST /auth/signup", authPages.Signup)
	mux.HandleFunc("GET /auth/verify-otp", authPages.VerifyForm)
	mux.HandleFunc("POST /auth/verify-otp", authPages.Verify)
	mux.HandleFunc("POST /auth/resend-otp", authPages.ResendOTP)
	mux.HandleFunc("GET /auth/login", authPages.LoginForm)
	mux.HandleFunc("POST /auth/login", authPages.Login)
	mux.HandleFunc("POST /auth/logout", authPages.Logout)

	mux.HandleFunc("GET /dashboard", dashboard.Dashboard)
	mux.HandleFunc("POST /dashboard/upload", dashboard.Upload)
	mux.HandleFunc("GET /dashboard/videos", dashboard.List)
	mux.HandleFunc("GET /dashboard/video/{id}", dashboard.StatusPage)
	mux.HandleFunc("GET /dashboard/video/{id}/events", dashboard.Events)
	mux.HandleFunc("GET /dashboard/video/{id}/status", dashboard.StatusJSON)

	mux.HandleFunc("GET /dashboard/video/{id}/results", results.Results)
	mux.HandleFunc("GET /dashboard/video/{id}/export/{format}", results.Export)
	mux.HandleFunc("GET /dashboard/video/{id}/delete", results.ConfirmDelete)
	mux.HandleFunc("POST /dashboard/video/{id}/delete", results.Delete)
}
