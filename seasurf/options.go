package seasurf

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Fixed protocol constants. The cookie, the form field and the fallback
// header are deliberately not configurable so that client and server never
// disagree on where the token travels.
const (
	// CookieName is the cookie that carries the canonical session token.
	CookieName = "_csrf_token"
	// FormFieldName is the POST form field checked first for the client token.
	FormFieldName = "_csrf_token"
	// HeaderName is the fallback transport for non-form clients.
	HeaderName = "X-CSRF-Token"

	// tokenField is the key the token is bound under in the session store.
	tokenField = "_csrf_token"
)

// DefaultCookieMaxAge is how long the token cookie lives when Config leaves
// CookieMaxAge unset: five days.
const DefaultCookieMaxAge = 5 * 24 * time.Hour

// Rejection reasons. ErrBadReferer is always returned wrapped with the two
// origins that failed to match, so test with errors.Is.
var (
	ErrNoReferer  = errors.New("referer check failed: no referer")
	ErrBadReferer = errors.New("referer check failed: origin mismatch")
	ErrBadToken   = errors.New("csrf token missing or incorrect")

	// ErrNoSession is returned by token operations when the request carries
	// no session, typically because the session middleware is not installed
	// upstream of the guard.
	ErrNoSession = errors.New("no session bound to request")
)

// Session is the narrow view of the per-client session the guard needs.
// The session package provides an implementation; any store with the same
// semantics works.
//
// Get must return the empty string (and a nil error) when the field is not
// set; errors are reserved for store failures. Add must be atomic
// first-write-wins per session: when two concurrent requests race on token
// creation, exactly one Add returns true and both requests observe the same
// canonical token afterwards.
type Session interface {
	Get(ctx context.Context, field string) (string, error)
	Add(ctx context.Context, field, value string) (bool, error)
	Delete(ctx context.Context, field string) error
}

// Observer receives guard events for metrics integration. The metrics
// package provides a Prometheus-backed implementation.
type Observer interface {
	// Denied is called once per rejected request with a short reason label.
	Denied(reason string)
	// TokenIssued is called when a new token is bound to a session.
	TokenIssued()
}

// Config drives the guard's behavior.
type Config struct {
	// Secret is mixed into token derivation. Required in practice: an empty
	// secret is accepted but weakens the token construction.
	Secret []byte

	// Disabled turns off all validation. Meant for test contexts only.
	Disabled bool

	// CookieMaxAge bounds the token cookie's lifetime.
	// Defaults to DefaultCookieMaxAge.
	CookieMaxAge time.Duration

	// Sessions resolves the session for a request, or nil when none exists.
	// Wire this to the session middleware's context lookup.
	Sessions func(r *http.Request) Session

	// Logger receives a warning per denied request. Defaults to a no-op
	// logger.
	Logger *zap.Logger

	// Observer, when set, is notified of denials and token issuance.
	Observer Observer
}

// Guard validates inbound state-changing requests and surfaces the session
// token on outbound responses. Construct with New, register exemptions
// during route setup, then wrap handlers with Protect.
type Guard struct {
	cfg Config
	log *zap.Logger

	// Written only during setup, read without synchronization while serving.
	exempt    map[string]struct{}
	exemptFns []func(r *http.Request) bool
}

// New builds a Guard from cfg, applying defaults for unset fields.
//
// New probes the secure random source once and fails if it is unavailable:
// token generation must never degrade to a non-cryptographic generator, so a
// broken CSPRNG is a startup fault rather than a per-request one.
//
// Params:
// - cfg: guard configuration; zero values get defaults where documented.
//
// Returns:
// - a ready Guard, or an error if the secure random source is unavailable.
func New(cfg Config) (*Guard, error) {
	if cfg.CookieMaxAge <= 0 {
		cfg.CookieMaxAge = DefaultCookieMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var probe [8]byte
	if _, err := io.ReadFull(rand.Reader, probe[:]); err != nil {
		return nil, fmt.Errorf("seasurf: secure random source unavailable: %w", err)
	}

	return &Guard{
		cfg:    cfg,
		log:    cfg.Logger,
		exempt: make(map[string]struct{}),
	}, nil
}

// Exempt marks the handler at path as not requiring validation. Registering
// the same path twice has no additional effect. Must be called during route
// setup, before the guard serves traffic.
//
// Params:
// - path: the request path of the handler to exempt, e.g. "/webhooks/pay".
func (g *Guard) Exempt(path string) {
	g.exempt[path] = struct{}{}
}

// ExemptFunc registers a matcher consulted for requests whose path is not in
// the exact-path set. Useful for prefix or pattern exemptions. Same setup-time
// restriction as Exempt.
func (g *Guard) ExemptFunc(fn func(r *http.Request) bool) {
	g.exemptFns = append(g.exemptFns, fn)
}

func (g *Guard) isExempt(r *http.Request) bool {
	if _, ok := g.exempt[r.URL.Path]; ok {
		return true
	}
	for _, fn := range g.exemptFns {
		if fn(r) {
			return true
		}
	}
	return false
}

// session resolves the request's session via the configured lookup.
func (g *Guard) session(r *http.Request) Session {
	if g.cfg.Sessions == nil {
		return nil
	}
	return g.cfg.Sessions(r)
}
