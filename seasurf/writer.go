package seasurf

import (
	"bufio"
	"io"
	"net"
	"net/http"
)

// tokenWriter defers cookie issuance to the moment response headers are
// committed, so a token bound during the handler (for example by a template
// calling Guard.Token) still makes it onto the response.
type tokenWriter struct {
	http.ResponseWriter
	guard       *Guard
	req         *http.Request
	wroteHeader bool
}

func (tw *tokenWriter) WriteHeader(code int) {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.guard.IssueCookie(tw.ResponseWriter, tw.req)
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *tokenWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.ResponseWriter.Write(b)
}

// finish covers handlers that return without writing anything: headers are
// still open at that point, so the cookie can be added before net/http
// commits the implicit 200.
func (tw *tokenWriter) finish() {
	if !tw.wroteHeader {
		tw.wroteHeader = true
		tw.guard.IssueCookie(tw.ResponseWriter, tw.req)
	}
}

// Flush passes through to the underlying writer when it supports streaming.
func (tw *tokenWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		if !tw.wroteHeader {
			tw.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Hijack passes through so handlers can take over the connection
// (websockets). A hijacked connection bypasses cookie issuance entirely.
func (tw *tokenWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := tw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// ReadFrom keeps the underlying writer's sendfile path available while still
// committing headers (and the token cookie) first.
func (tw *tokenWriter) ReadFrom(src io.Reader) (int64, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	if rf, ok := tw.ResponseWriter.(io.ReaderFrom); ok {
		return rf.ReadFrom(src)
	}
	return io.Copy(writerOnly{tw.ResponseWriter}, src)
}

// writerOnly hides the ResponseWriter's other methods from io.Copy so the
// fallback path cannot recurse into ReadFrom.
type writerOnly struct{ io.Writer }

// Unwrap exposes the underlying writer to http.ResponseController.
func (tw *tokenWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// IssueCookie surfaces the session's bound token on the response: the token
// cookie with the configured max age, plus Vary: Cookie so shared caches
// never serve one user's token-bearing response to another. Sessions with no
// bound token leave the response untouched.
//
// Protect calls this automatically when response headers are committed; it
// is exported as the post-request hook for frameworks with their own
// middleware lifecycle, paired with Check as the pre-request hook. Call it
// before the response body is written, while headers are still open.
func (g *Guard) IssueCookie(w http.ResponseWriter, r *http.Request) {
	s := g.session(r)
	if s == nil {
		return
	}
	tok, err := s.Get(r.Context(), tokenField)
	if err != nil || tok == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(g.cfg.CookieMaxAge.Seconds()),
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	w.Header().Add("Vary", "Cookie")
}
