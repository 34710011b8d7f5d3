package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/v2t/web/internal/auth"
	"github.com/v2t/web/internal/logging"
)

const (
	protectedPrefix = "/dashboard"
	loginPath       = "/auth/login"
	signupPath      = "/auth/signup"
)

// RouteGuard redirects anonymous visitors away from the dashboard and signed-in
// visitors away from the login and signup pages. It consults the session
// cookie only.
func RouteGuard(next http.Handler) http.Handler {
	return routeGuard(next, time.Now)
}

func routeGuard(next http.Handler, now func() time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		signedIn := HasSession(r, now())

		switch {
		case isProtected(path) && !signedIn:
			logging.FromContext(r.Context()).Debug("redirecting anonymous visitor to login")
			target := loginPath + "?" + url.Values{"redirect": {path}}.Encode()
			http.Redirect(w, r, target, http.StatusFound)
			return
		case (path == loginPath || path == signupPath) && signedIn:
			http.Redirect(w, r, protectedPrefix, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isProtected(path string) bool {
	return path == protectedPrefix || strings.HasPrefix(path, protectedPrefix+"/")
}

// HasSession reports whether r carries a session token that has not visibly
// expired. Tokens that do not parse as JWTs are taken at face value.
func HasSession(r *http.Request, now time.Time) bool {
	token, ok := auth.TokenFromRequest(r)
	if !ok {
		return false
	}
	return !tokenExpired(token, now)
}

func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
