package seasurf

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// generateToken derives a fresh token: a uniformly random 64-bit value from
// the CSPRNG, concatenated in decimal form with the application secret and
// digested with SHA-256 to a fixed-length hex string.
//
// The random source was verified in New; a read failure here means the
// source broke after startup, which is unrecoverable.
func (g *Guard) generateToken() string {
	var b [8]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		panic("seasurf: secure random source failed: " + err.Error())
	}
	n := binary.BigEndian.Uint64(b[:])

	sum := sha256.Sum256(append(strconv.AppendUint(nil, n, 10), g.cfg.Secret...))
	return hex.EncodeToString(sum[:])
}

// getOrCreateToken returns the session's canonical token, minting and
// binding one on first access. Idempotent across the session's lifetime:
// once bound, the same token comes back until an explicit Reset.
//
// Binding uses the store's first-write-wins Add so two concurrent requests
// racing on a fresh session converge on a single canonical token.
func (g *Guard) getOrCreateToken(ctx context.Context, s Session) (string, error) {
	tok, err := s.Get(ctx, tokenField)
	if err != nil {
		return "", err
	}
	if tok != "" {
		return tok, nil
	}

	tok = g.generateToken()
	ok, err := s.Add(ctx, tokenField, tok)
	if err != nil {
		return "", err
	}
	if !ok {
		// Lost the creation race: read back the winner's token.
		return s.Get(ctx, tokenField)
	}
	if g.cfg.Observer != nil {
		g.cfg.Observer.TokenIssued()
	}
	return tok, nil
}

// Token returns the canonical token for the request's session, creating and
// binding one if none exists yet. This is the capability handed to the
// rendering layer so pages can embed the token as a hidden form field:
//
//	<input type="hidden" name="_csrf_token" value="{{ .CSRFToken }}">
//
// Params:
// - r: the request whose session the token belongs to.
//
// Returns:
// - the token, or ErrNoSession when no session is bound to r.
func (g *Guard) Token(r *http.Request) (string, error) {
	s := g.session(r)
	if s == nil {
		return "", ErrNoSession
	}
	return g.getOrCreateToken(r.Context(), s)
}

// Reset clears the session's token binding so the next access mints a fresh
// one. Call after privilege changes such as login.
func (g *Guard) Reset(r *http.Request) error {
	s := g.session(r)
	if s == nil {
		return ErrNoSession
	}
	return s.Delete(r.Context(), tokenField)
}

// TokenHandler returns an HTTP handler that responds with the current token
// in plain text, creating one if needed. Useful for SPAs that fetch the
// token and attach it to subsequent requests via the header.
//
// Returns:
// - http.Handler that writes the token (text/plain) or 500 without a session.
func (g *Guard) TokenHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := g.Token(r)
		if err != nil {
			http.Error(w, "no session", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(tok))
	})
}

// tokensEqual compares two tokens without leaking the position of the first
// mismatching byte through timing. Unequal lengths return false immediately;
// equal-length inputs are XOR-accumulated across every byte position. The
// comparison runs over the raw bytes of the hex digest, never a decoded
// form.
func tokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// extractClientToken pulls the client-supplied token out of the request:
// the POST form field first, then the header. Malformed input folds into the
// empty string.
func extractClientToken(r *http.Request) string {
	if r.Method == http.MethodPost {
		// PostFormValue parses the body (including multipart) as needed and
		// returns "" on anything malformed.
		if v := r.PostFormValue(FormFieldName); v != "" {
			return v
		}
	}
	return r.Header.Get(HeaderName)
}

// isSecure reports whether the request arrived over a secure transport,
// directly or behind a TLS-terminating proxy.
func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// requestOrigin rebuilds the application's own origin for this request.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if isSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// sameOrigin reports whether two URLs share a (scheme, host, port) tuple.
func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme &&
		strings.EqualFold(ua.Hostname(), ub.Hostname()) &&
		ua.Port() == ub.Port()
}
