package echoportal

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/services/backend"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// An expired session ends the exchange's session and sends the visitor to loginPath, whichever screen failed.
func newAppHTTPErrorHandler(loginPath string, logger core.Logger) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Error()
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				message = origErr.FieldMap()
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if origErr == backend.ErrSessionExpired {
				handleExpiredSession(ctx, loginPath, logger)
				return
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := getContextUser(ctx); ok {
				args = append(args, usr)
			}
			logger.Error(msg, args...)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = respondError(ctx, code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// handleExpiredSession logs the exchange out, unless the backend client already did, and redirects to the login page.
func handleExpiredSession(ctx echo.Context, loginPath string, logger core.Logger) {
	if sess, ok := session.FromContext(ctx.Request().Context()); ok && sess.Current().Authenticated() {
		if err := sess.Logout(); err != nil {
			logger.Warn("logging out expired session", err)
		}
	}
	if ctx.Response().Committed {
		return
	}

	var err error
	if wantsJSON(ctx) {
		err = ctx.JSON(http.StatusUnauthorized, echo.Map{"error": backend.ErrSessionExpired.Error(), "redirect": loginPath})
	} else {
		err = ctx.Redirect(http.StatusFound, loginPath)
	}
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}

func respondError(ctx echo.Context, code int, message interface{}) error {
	if wantsJSON(ctx) {
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}
		return ctx.JSON(code, message)
	}
	p := page{Title: http.StatusText(code), Status: code}
	switch m := message.(type) {
	case string:
		p.Error = m
	case map[string]string:
		p.Fields = m
	default:
		p.Error = http.StatusText(code)
	}
	return ctx.Render(code, "error", p)
}

// wantsJSON reports whether the client talks JSON rather than HTML.
func wantsJSON(ctx echo.Context) bool {
	req := ctx.Request()
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
