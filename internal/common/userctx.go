package common

import "context"

// Session describes the authenticated caller of a request. Novus is a
// single-user system, so the session only carries the login subject.
type Session struct {
	Subject   string
	TokenID   string
	ExpiresAt int64
}

type contextKey int

const sessionKey contextKey = iota

// WithSession stores a Session in the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext retrieves the Session from context, or nil if absent.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}
