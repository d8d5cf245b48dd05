package echoportal

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/storage/credential"
)

const (
	contextSessionKey     = "session"
	contextCredentialsKey = "credentials"
	contextUserKey        = "user"
)

var errSessionNotFoundInCtx = errors.New("session not found in echo.Context")

// sessionMiddleware gives every exchange its own session.Context, backed by the session cookie.
// Resolution starts right away; handlers that need the outcome wait for it.
func (s *Server) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		store := credential.NewCookieStore(s.cookies, ctx.Request(), ctx.Response())
		sess := session.New(store, s.resolver, session.WithLogger(s.logger))
		defer sess.Close()
		sess.Subscribe(s.metrics.sessionTransition)

		ctx.Set(contextSessionKey, sess)
		ctx.Set(contextCredentialsKey, store)
		// backend calls made with the request context can reach the session on expiry
		ctx.SetRequest(ctx.Request().WithContext(session.NewContext(ctx.Request().Context(), sess)))

		go sess.Init()
		return next(ctx)
	}
}

func getContextSession(ctx echo.Context) (*session.Context, error) {
	sess, ok := ctx.Get(contextSessionKey).(*session.Context)
	if !ok {
		return nil, errSessionNotFoundInCtx
	}
	return sess, nil
}

// getContextToken returns the session token of the exchange, including one saved during it.
func getContextToken(ctx echo.Context) (string, bool) {
	store, ok := ctx.Get(contextCredentialsKey).(session.CredentialStore)
	if !ok {
		return "", false
	}
	return store.Load()
}

// getContextUser returns the user admitted by requireRole.
func getContextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

// LogoutExpired returns a backend.OnExpired hook ending the session the rejected call was made for.
func LogoutExpired(logger core.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		sess, ok := session.FromContext(ctx)
		if !ok {
			return
		}
		if err := sess.Logout(); err != nil {
			logger.Warn("logging out expired session", err)
		}
	}
}
