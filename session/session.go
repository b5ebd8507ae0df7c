// Package session provides a minimal cookie-identified session layer with
// pluggable storage backends.
//
// Backends:
//   - Memory (in-process, for development and testing)
//   - Redis (shared, for production)
//
// A Manager issues the session-ID cookie and injects a *Session into the
// request context; a Session is a narrow per-client view over the Store.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store.Get when the key does not exist.
var ErrNotFound = errors.New("session: key not found")

// Store is the associative backend sessions are kept in. Keys are opaque
// strings namespaced by the Manager; values are strings.
//
// Add is first-write-wins: it stores the value only if the key does not
// already exist and reports whether the write happened. Implementations must
// make Add atomic so concurrent writers converge on a single value.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Session is a per-client view over the store, scoped by session ID.
type Session struct {
	id    string
	store Store
	ttl   time.Duration
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) key(field string) string {
	return "sess:" + s.id + ":" + field
}

// Get returns the value bound to field, or the empty string when the field
// is not set. Errors are store failures only.
func (s *Session) Get(ctx context.Context, field string) (string, error) {
	v, err := s.store.Get(ctx, s.key(field))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Set binds value to field, replacing any previous value.
func (s *Session) Set(ctx context.Context, field, value string) error {
	return s.store.Set(ctx, s.key(field), value, s.ttl)
}

// Add binds value to field only if the field is not set yet, reporting
// whether the write happened. Atomicity comes from the store.
func (s *Session) Add(ctx context.Context, field, value string) (bool, error) {
	return s.store.Add(ctx, s.key(field), value, s.ttl)
}

// Contains reports whether field is set.
func (s *Session) Contains(ctx context.Context, field string) (bool, error) {
	_, err := s.store.Get(ctx, s.key(field))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes field from the session.
func (s *Session) Delete(ctx context.Context, field string) error {
	return s.store.Delete(ctx, s.key(field))
}

// Config configures a Manager.
type Config struct {
	// Store holds session data. Required.
	Store Store

	// CookieName names the session-ID cookie. Default "session_id".
	CookieName string

	// TTL bounds both the cookie and stored fields. Default 24h.
	TTL time.Duration

	// Secure marks the session-ID cookie Secure.
	Secure bool
}

// Manager issues session-ID cookies and resolves sessions for requests.
type Manager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewManager builds a Manager from cfg, applying defaults.
func NewManager(cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "session_id"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{
		store:      cfg.Store,
		cookieName: cfg.CookieName,
		ttl:        cfg.TTL,
		secure:     cfg.Secure,
	}
}

// Handle ensures every request carries a session: an existing session-ID
// cookie is reused, otherwise a fresh ID is minted and set on the response.
// The session is injected into the request context for FromContext.
func (m *Manager) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
			// Only IDs this manager could have minted are accepted. Anything
			// else is treated as absent, so a planted cookie cannot fix the
			// session ID (and whatever binds under it) to a value the
			// attacker chose.
			if _, err := uuid.Parse(c.Value); err == nil {
				sid = c.Value
			}
		}
		if sid == "" {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     m.cookieName,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(m.ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   m.secure,
			})
		}

		sess := &Session{id: sid, store: m.store, ttl: m.ttl}
		next.ServeHTTP(w, r.WithContext(contextWithSession(r.Context(), sess)))
	})
}

type ctxKey struct{}

func contextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session injected by Manager.Handle, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok
}
