package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/models"
)

// SessionManager keeps the session cookie and the durable record in step.
type SessionManager interface {
	Establish(ctx context.Context, w http.ResponseWriter, token string, user models.User) (models.Session, error)
	Clear(ctx context.Context, w http.ResponseWriter, r *http.Request)
	Load(ctx context.Context, r *http.Request) (models.Session, error)
}

// AuthFlow runs the signup, OTP and login exchanges.
type AuthFlow interface {
	Signup(ctx context.Context, form auth.SignupForm) error
	VerifyOTP(ctx context.Context, email, otp string) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, form auth.LoginForm) (models.AuthResponse, error)
}

// VideoClient is the authenticated view of the backend's video API.
type VideoClient interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader) (models.VideoUpload, error)
	Status(ctx context.Context, videoID string) (models.VideoStatus, error)
	Results(ctx context.Context, videoID string) (models.VideoResults, error)
	List(ctx context.Context, opts gateway.ListOptions) (models.VideoList, error)
	Export(ctx context.Context, videoID, format string) (gateway.Export, error)
	Delete(ctx context.Context, videoID string) error
}

// VideoClientFactory binds a VideoClient to a session token.
type VideoClientFactory func(token string) VideoClient

// ExportArchiver copies served exports to long-term storage.
type ExportArchiver interface {
	Enqueue(ctx context.Context, videoID, filename string, data []byte) error
}
