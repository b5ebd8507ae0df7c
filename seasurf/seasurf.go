package seasurf

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Methods defined by HTTP semantics to have no side effects. These never
// require a token.
var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Protect wraps next with the full request lifecycle: the pre-request
// validation chain, then the handler, then token-cookie issuance on the way
// out.
//
// Behavior:
//   - If Check rejects the request, respond 403 Forbidden immediately; next
//     never runs. The denial is logged with its reason and the request path.
//   - Otherwise next runs with the response writer wrapped so that, at the
//     moment response headers are committed, the token cookie and a
//     Vary: Cookie marker are added when the session holds a bound token.
//   - If the session already held a token on the way in, the token is also
//     placed in the request context for TokenFromContext.
//
// The session middleware must be installed upstream so that Config.Sessions
// can resolve a session; without one, every non-exempt unsafe request is
// denied.
//
// Params:
// - next: downstream handler to execute after validation passes.
//
// Returns:
// - An http.Handler enforcing CSRF validation around next.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Check(r); err != nil {
			g.deny(w, r, err)
			return
		}

		if s := g.session(r); s != nil {
			if tok, err := s.Get(r.Context(), tokenField); err == nil && tok != "" {
				r = r.WithContext(contextWithToken(r.Context(), tok))
			}
		}

		tw := &tokenWriter{ResponseWriter: w, guard: g, req: r}
		next.ServeHTTP(tw, r)
		tw.finish()
	})
}

// Check runs the pre-request validation chain and reports whether r may
// proceed. It is exposed separately from Protect for frameworks with their
// own hook points; the returned error is one of the Err* reasons (possibly
// wrapped) or nil to continue.
//
// The chain short-circuits on the first applicable outcome:
//  1. validation disabled: allow.
//  2. safe method (GET, HEAD, OPTIONS, TRACE): allow.
//  3. exempt handler: allow.
//  4. secure transport: require a Referer whose origin matches our own.
//  5. constant-time compare of the client token against the session token.
func (g *Guard) Check(r *http.Request) error {
	if g.cfg.Disabled {
		return nil
	}
	if safeMethods[r.Method] {
		return nil
	}
	if g.isExempt(r) {
		return nil
	}

	// Strict referer checking over TLS only: an active network attacker can
	// strip the Referer on plaintext connections, and privacy tooling strips
	// it on legitimate plaintext traffic anyway.
	if isSecure(r) {
		referer := r.Header.Get("Referer")
		if referer == "" {
			return ErrNoReferer
		}
		own := requestOrigin(r)
		if !sameOrigin(referer, own) {
			return fmt.Errorf("%w: %s does not match %s", ErrBadReferer, referer, own)
		}
	}

	var canonical string
	if s := g.session(r); s != nil {
		tok, err := s.Get(r.Context(), tokenField)
		if err != nil {
			// Store failure folds into "no token bound": the request is
			// denied rather than the pipeline crashed.
			g.log.Warn("session token lookup failed",
				zap.String("path", r.URL.Path),
				zap.Error(err))
		} else {
			canonical = tok
		}
	}

	supplied := extractClientToken(r)
	if canonical == "" || supplied == "" || !tokensEqual(supplied, canonical) {
		return ErrBadToken
	}
	return nil
}

// deny short-circuits the request with 403 Forbidden and records the reason.
func (g *Guard) deny(w http.ResponseWriter, r *http.Request, reason error) {
	g.log.Warn("forbidden",
		zap.String("reason", reason.Error()),
		zap.String("path", r.URL.Path))
	if g.cfg.Observer != nil {
		g.cfg.Observer.Denied(reasonLabel(reason))
	}
	http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
}

// reasonLabel folds a denial error into a low-cardinality label.
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrNoReferer):
		return "no_referer"
	case errors.Is(err, ErrBadReferer):
		return "bad_referer"
	default:
		return "bad_token"
	}
}
