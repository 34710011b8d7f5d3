package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/v2t/web/internal/logging"
	"github.com/v2t/web/internal/models"
)

// CookieName is the cookie that mirrors the bearer token for request-time guards.
const CookieName = "token"

var (
	// ErrNoSession indicates the request carries no session cookie.
	ErrNoSession = errors.New("no session")
	// ErrSessionNotFound indicates the cookie has no matching durable record.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the durable record outlived its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore is the durable mirror of the session. Records are keyed by
// StoreKey(token) so the bearer token itself is never stored.
type SessionStore interface {
	Save(ctx context.Context, key string, session models.Session) error
	Find(ctx context.Context, key string) (models.Session, error)
	Delete(ctx context.Context, key string) error
}

// SessionManager keeps the cookie and the durable store in step. Both mirrors
// are written by Establish and removed by Clear.
type SessionManager struct {
	store  SessionStore
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager constructs a SessionManager whose sessions last ttl.
func NewSessionManager(store SessionStore, ttl time.Duration, secure bool) *SessionManager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{store: store, ttl: ttl, secure: secure, now: time.Now}
}

// StoreKey derives the durable-store key for a bearer token.
func StoreKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Establish records a freshly issued token. The durable record is written
// first; if that fails no cookie is set.
func (m *SessionManager) Establish(ctx context.Context, w http.ResponseWriter, token string, user models.User) (models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Session{}, errors.New("session token must be provided")
	}

	session := models.Session{
		User:      user,
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}
	if err := m.store.Save(ctx, StoreKey(token), session); err != nil {
		return models.Session{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	session.Token = token
	return session, nil
}

// Clear removes both mirrors. It is safe to call without a session.
func (m *SessionManager) Clear(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if token, ok := m.Token(r); ok {
		if err := m.store.Delete(ctx, StoreKey(token)); err != nil && !errors.Is(err, ErrSessionNotFound) {
			// The cookie is still cleared; the record lapses at ExpiresAt.
			logging.FromContext(ctx).Warn("failed to delete session record", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token reads the cookie mirror only.
func (m *SessionManager) Token(r *http.Request) (string, bool) {
	return TokenFromRequest(r)
}

// TokenFromRequest returns the session cookie value, if any.
func TokenFromRequest(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	return value, value != ""
}

// Load returns the session for r, reconciling the two mirrors: a cookie whose
// durable record is gone or stale is reported as ErrSessionNotFound or
// ErrSessionExpired so the caller can clear it.
func (m *SessionManager) Load(ctx context.Context, r *http.Request) (models.Session, error) {
	token, ok := m.Token(r)
	if !ok {
		return models.Session{}, ErrNoSession
	}

	key := StoreKey(token)
	session, err := m.store.Find(ctx, key)
	if err != nil {
		return models.Session{}, err
	}

	if m.now().UTC().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, key)
		return models.Session{}, ErrSessionExpired
	}

	session.Token = token
	return session, nil
}
