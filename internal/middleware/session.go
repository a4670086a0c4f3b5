package middleware // middleware provides shared request processing for handlers

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/novabrands/storefront-api/internal/session"
)

// sessionContextKey is where the resolved session lives in the Echo
// context for the duration of one request. Handlers never consult any
// ambient global state; this per-request object is the only carrier of
// authentication.
const sessionContextKey = "session"

// SessionResolver is the subset of the session store the middleware
// needs. A nil session with a nil error means "not authenticated".
type SessionResolver interface {
	Get(ctx context.Context, token string) (*session.Session, error)
}

// ResolveSession reads the session cookie and, when the token resolves,
// injects the session snapshot into the request context. Absence or
// invalidity of the token is never an error: the request simply
// proceeds unauthenticated and admin gates fail later with a proper
// authorization message.
func ResolveSession(store SessionResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(session.CookieName)
			if err != nil || cookie.Value == "" {
				return next(c)
			}
			sess, err := store.Get(c.Request().Context(), cookie.Value)
			if err != nil {
				// Store trouble degrades to unauthenticated rather than 500;
				// the mutation gates will refuse anything that needs auth.
				log.Warn().Err(err).Msg("session lookup failed")
				return next(c)
			}
			if sess != nil {
				c.Set(sessionContextKey, sess)
			}
			return next(c)
		}
	}
}

// SessionFromContext returns the session resolved for this request, or
// nil when the caller is not authenticated.
func SessionFromContext(c echo.Context) *session.Session {
	if v, ok := c.Get(sessionContextKey).(*session.Session); ok {
		return v
	}
	return nil
}

// SetSession injects a session into the request context. Exported for
// handler tests that bypass the cookie round trip.
func SetSession(c echo.Context, s *session.Session) {
	c.Set(sessionContextKey, s)
}
