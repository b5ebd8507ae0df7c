package seasurf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Successive generations must be statistically distinct and fixed-format.
func TestGenerateTokenDistinctness(t *testing.T) {
	g := newTestGuard(t, nil, nil)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok := g.generateToken()
		if !hexToken.MatchString(tok) {
			t.Fatalf("token %q is not a 64-char hex digest", tok)
		}
		if seen[tok] {
			t.Fatalf("duplicate token after %d draws: %q", i, tok)
		}
		seen[tok] = true
	}
}

func TestGenerateTokenAcceptsEmptySecret(t *testing.T) {
	g := newTestGuard(t, nil, func(cfg *Config) { cfg.Secret = nil })
	if tok := g.generateToken(); !hexToken.MatchString(tok) {
		t.Fatalf("token %q is not a 64-char hex digest", tok)
	}
}

// Two calls without a reset return the identical token.
func TestTokenIdempotentPerSession(t *testing.T) {
	sess := newFakeSession()
	g := newTestGuard(t, sess, nil)
	req := httptest.NewRequest(http.MethodGet, "/form", nil)

	first, err := g.Token(req)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	second, err := g.Token(req)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first != second {
		t.Fatalf("token not stable across calls: %q vs %q", first, second)
	}
}

func TestResetMintsFreshToken(t *testing.T) {
	sess := newFakeSession()
	g := newTestGuard(t, sess, nil)
	req := httptest.NewRequest(http.MethodGet, "/form", nil)

	before, err := g.Token(req)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if err := g.Reset(req); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	after, err := g.Token(req)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if before == after {
		t.Fatalf("expected a fresh token after reset")
	}
}

// Losing the creation race must return the winner's token, not the loser's.
func TestGetOrCreateTokenLostRace(t *testing.T) {
	sess := newFakeSession()
	g := newTestGuard(t, sess, nil)
	req := httptest.NewRequest(http.MethodGet, "/form", nil)

	// Simulate the race: bind between the guard's Get and Add by binding
	// first, then making Get report empty once.
	sess.bind("winner")
	raced := &racingSession{fakeSession: sess}
	tok, err := g.getOrCreateToken(req.Context(), raced)
	if err != nil {
		t.Fatalf("getOrCreateToken: %v", err)
	}
	if tok != "winner" {
		t.Fatalf("expected winner's token, got %q", tok)
	}
}

// racingSession reports the token field empty on the first Get so that the
// guard proceeds to Add and loses against the pre-bound value.
type racingSession struct {
	*fakeSession
	gets int
}

func (s *racingSession) Get(ctx context.Context, field string) (string, error) {
	s.gets++
	if s.gets == 1 {
		return "", nil
	}
	return s.fakeSession.Get(ctx, field)
}

func TestTokensEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		// Two empties compare equal; the guard rejects empty tokens before
		// ever comparing them.
		{"", "", true},
		{"abc123", "abc123", true},
		{"abc123", "abc124", false},
		{"abc123", "abc12", false},
		{"abc123", "", false},
		{"", "abc123", false},
		{strings.Repeat("a", 64), strings.Repeat("a", 64), true},
		{strings.Repeat("a", 64), strings.Repeat("a", 63) + "b", false},
	}
	for _, c := range cases {
		if got := tokensEqual(c.a, c.b); got != c.want {
			t.Fatalf("tokensEqual(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestExtractClientTokenPrefersFormForPost(t *testing.T) {
	body := strings.NewReader(FormFieldName + "=from-form")
	req := httptest.NewRequest(http.MethodPost, "/transfer", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(HeaderName, "from-header")
	if got := extractClientToken(req); got != "from-form" {
		t.Fatalf("expected form token, got %q", got)
	}

	// Without a form field, the header wins.
	req = httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader("other=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(HeaderName, "from-header")
	if got := extractClientToken(req); got != "from-header" {
		t.Fatalf("expected header token, got %q", got)
	}

	// Malformed bodies fold into absence, not failure.
	req = httptest.NewRequest(http.MethodPost, "/transfer", strings.NewReader("%zz=broken"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got := extractClientToken(req); got != "" {
		t.Fatalf("expected empty token from malformed body, got %q", got)
	}
}

func TestSameOrigin(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"https://example.com/page", "https://example.com", true},
		{"https://EXAMPLE.com/page", "https://example.com", true},
		{"http://example.com/page", "https://example.com", false},
		{"https://evil.com/page", "https://example.com", false},
		{"https://example.com:8443/page", "https://example.com", false},
		{"https://example.com:8443/a", "https://example.com:8443", true},
		{"://not a url", "https://example.com", false},
	}
	for _, c := range cases {
		if got := sameOrigin(c.a, c.b); got != c.want {
			t.Fatalf("sameOrigin(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
