package seasurf

import "context"

type ctxKey string

const tokenKey ctxKey = "seasurf_token_ctx"

// contextWithToken returns a derived context that stores the given token.
//
// Params:
// - ctx: base context to attach the token to.
// - tok: token string to store.
//
// Returns:
// - a new context containing the token.
func contextWithToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// TokenFromContext returns the session token stored in ctx by Protect, if
// present. Only requests whose session already held a token on the way in
// carry one; use Guard.Token to create on first access.
//
// Params:
// - ctx: context potentially containing a token.
//
// Returns:
// - token (string) and a boolean indicating whether a token was found.
func TokenFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(tokenKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
