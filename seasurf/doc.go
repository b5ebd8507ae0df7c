// Package seasurf provides session-bound CSRF protection for Go net/http
// applications.
//
// Unlike double-submit-cookie schemes, the canonical token lives server-side
// in the client's session: it is minted on first access from a CSPRNG salted
// with an application secret, stays stable for the session's lifetime, and is
// compared in constant time against whatever the client presents.
//
// # How it works
//
//   - Safe methods (GET, HEAD, OPTIONS, TRACE) always pass; per HTTP
//     semantics they must have no side effects, so forgery is out of scope.
//   - Unsafe methods must present the session's token via the _csrf_token
//     form field or the X-CSRF-Token header. Requests over TLS additionally
//     require a Referer whose scheme, host and port match the application's
//     own origin, which defends against active network attackers.
//   - On the way out, responses for sessions holding a token carry it in the
//     _csrf_token cookie with Vary: Cookie set.
//
// # Usage
//
// Install the session middleware, then the guard:
//
//	store := session.NewMemory("myapp")
//	sessions := session.NewManager(session.Config{Store: store})
//
//	guard, err := seasurf.New(seasurf.Config{
//		Secret: []byte(os.Getenv("SECRET_KEY")),
//		Sessions: func(r *http.Request) seasurf.Session {
//			if s, ok := session.FromContext(r.Context()); ok {
//				return s
//			}
//			return nil
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Use(sessions.Handle)
//	r.Use(guard.Protect)
//
// Handlers rendering forms embed the token:
//
//	tok, _ := guard.Token(r)
//	tmpl.Execute(w, map[string]any{"CSRFToken": tok})
//
// Views that must not be validated (payment webhooks, third-party callbacks)
// are registered during route setup:
//
//	guard.Exempt("/webhooks/pay")
//
// For SPAs, mount guard.TokenHandler() on a GET route and send the token
// back in the X-CSRF-Token header.
package seasurf
