package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/guard"
	"github.com/trezcool/masomo/portal/core/user"
)

// requireRole admits the request once the session is resolved and its user has role
// (any authenticated user for guard.AnyRole). Visitors without a session go to the login page,
// users of another role to their own landing page.
func (s *Server) requireRole(role user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}

			// a cancelled request leaves the session Resolving: Decide then says wait
			snap, _ := sess.Wait(ctx.Request().Context())
			d := guard.Decide(snap, role, s.conf.Session.LoginPath)
			s.metrics.guardDecision(d)

			switch d.Action {
			case guard.ActionWait:
				return renderPlaceholder(ctx)
			case guard.ActionRedirect:
				target, code, msg := d.Target, http.StatusForbidden, errHttpForbidden.Message
				if d.Reason == guard.ReasonUnauthenticated {
					target = loginURL(target, ctx.Request().URL.RequestURI())
					code, msg = http.StatusUnauthorized, errUnauthorized.Message
				}
				if wantsJSON(ctx) {
					return ctx.JSON(code, echo.Map{"error": msg, "redirect": target})
				}
				return redirect(ctx, target)
			}

			ctx.Set(contextUserKey, *d.User)
			return next(ctx)
		}
	}
}

func renderPlaceholder(ctx echo.Context) error {
	ctx.Response().Header().Set("Refresh", "1")
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusAccepted, echo.Map{"state": "resolving"})
	}
	return ctx.Render(http.StatusOK, "placeholder", page{Title: "Loading"})
}

// redirect sends browsers to target; JSON clients get the target in the body.
func redirect(ctx echo.Context, target string) error {
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"redirect": target})
	}
	code := http.StatusFound
	if ctx.Request().Method == http.MethodPost {
		code = http.StatusSeeOther
	}
	return ctx.Redirect(code, target)
}
