package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/gateway"
	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
)

const (
	loginPath     = "/auth/login"
	dashboardPath = "/dashboard"

	msgSessionUnavailable = "Session service unavailable. Please try again shortly."
)

// requireSession loads the session behind the cookie. When the durable record
// is missing or stale the cookie is cleared and the visitor is sent to login.
// Any other store failure answers 503 and leaves both mirrors untouched.
func requireSession(sessions SessionManager, w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	ctx := r.Context()
	if sessions == nil {
		logging.FromContext(ctx).Error("session manager unavailable")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return models.Session{}, false
	}

	session, err := sessions.Load(ctx, r)
	if err != nil && !sessionGone(err) {
		logging.FromContext(ctx).Error("load session", "error", err)
		http.Error(w, msgSessionUnavailable, http.StatusServiceUnavailable)
		return models.Session{}, false
	}
	if err != nil {
		logging.FromContext(ctx).Info("session not usable, signing out", "error", err)
		sessions.Clear(ctx, w, r)
		target := loginPath + "?" + url.Values{"redirect": {r.URL.Path}}.Encode()
		http.Redirect(w, r, target, http.StatusSeeOther)
		return models.Session{}, false
	}

	return session, true
}

// signOutOnUnauthorized clears the session and redirects to login when err
// shows the backend no longer accepts the token. It reports whether it
// handled the response.
func signOutOnUnauthorized(sessions SessionManager, w http.ResponseWriter, r *http.Request, err error) bool {
	if !isAuthError(err) {
		return false
	}

	logging.FromContext(r.Context()).Info("backend rejected session, signing out", "error", err)
	if sessions != nil {
		sessions.Clear(r.Context(), w, r)
	}
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
	return true
}

func sessionGone(err error) bool {
	return errors.Is(err, auth.ErrNoSession) || errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrSessionExpired)
}

func isAuthError(err error) bool {
	return errors.Is(err, gateway.ErrUnauthorized) || errors.Is(err, gateway.ErrUnauthenticated)
}

// safeRedirect returns target when it is a local dashboard path and the
// dashboard otherwise.
func safeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || strings.Contains(target, "\\") {
		return dashboardPath
	}

	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" || strings.HasPrefix(target, "//") {
		return dashboardPath
	}
	if u.Path != dashboardPath && !strings.HasPrefix(u.Path, dashboardPath+"/") {
		return dashboardPath
	}
	return u.RequestURI()
}

// backendStatus picks the status code for a page re-rendered after a backend failure.
func backendStatus(err error) int {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}

func signedInPage(title string, session models.Session) page {
	user := session.User
	return page{Title: title, SignedIn: true, User: &user}
}
