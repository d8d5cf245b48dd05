package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/nav"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
)

const passwordResetSuccess = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type authHandlers struct {
	*Server
}

func registerAuthRoutes(g *echo.Group, s *Server) {
	h := authHandlers{s}

	// TODO: rate limit `/login` & `/password-reset` once the API exposes attempt counters
	g.GET("/login", h.loginForm)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/register", h.registerForm)
	g.POST("/register", h.register)
	g.GET("/password-reset", h.passwordResetForm)
	g.POST("/password-reset", h.resetPassword)
}

// Handlers

func (h authHandlers) loginForm(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	// already logged in
	if snap, err := sess.Wait(ctx.Request().Context()); err == nil && snap.Authenticated() {
		return redirect(ctx, h.landing(ctx, *snap.User))
	}

	p := newPage("Log in", nil)
	p.Next = ctx.QueryParam("next")
	if ctx.QueryParam("registered") != "" {
		p.Success = "Your account was created. You can now log in."
	}
	return ctx.Render(http.StatusOK, "login", p)
}

func (h authHandlers) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	next := ctx.FormValue("next")

	if err := data.Validate(h.validate, h.translator); err != nil {
		return h.rejectLogin(ctx, http.StatusBadRequest, data, next, err)
	}

	res, err := h.api.Login(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == backend.ErrAuthenticationFailed {
			return h.rejectLogin(ctx, http.StatusUnauthorized, data, next, err)
		}
		return errors.Wrap(err, "logging in")
	}

	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	if err = sess.Login(res.User, res.Token); err != nil {
		return errors.Wrap(err, "starting session")
	}

	target := h.landing(ctx, res.User)
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"user": res.User, "redirect": target})
	}
	return ctx.Redirect(http.StatusSeeOther, target)
}

// rejectLogin re-renders the login form. Wrong credentials always get the same generic message.
func (h authHandlers) rejectLogin(ctx echo.Context, code int, data user.Credentials, next string, err error) error {
	data.Password = ""
	p := newPage("Log in", nil)
	p.Form = data
	p.Next = next

	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		if wantsJSON(ctx) {
			return err
		}
		p.Fields = vErr.FieldMap()
		return ctx.Render(http.StatusOK, "login", p)
	}

	p.Error = backend.ErrAuthenticationFailed.Error()
	if wantsJSON(ctx) {
		return ctx.JSON(code, echo.Map{"error": p.Error})
	}
	return ctx.Render(http.StatusOK, "login", p)
}

// landing is where a freshly logged in usr goes: the page they were headed to, or their own landing page.
func (h authHandlers) landing(ctx echo.Context, usr user.User) string {
	if next, ok := safeNext(ctx.FormValue("next"), h.conf.Session.LoginPath); ok {
		return next
	}
	return nav.LandingPath(usr.Role)
}

func (h authHandlers) logout(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	if err = sess.Logout(); err != nil {
		// the session is over anyway
		h.logger.Warn("logging out", err)
	}
	return redirect(ctx, h.conf.Session.LoginPath)
}

func (h authHandlers) registerForm(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "register", newPage("Register", nil))
}

func (h authHandlers) register(ctx echo.Context) error {
	var data user.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}

	err := data.Validate(h.validate, h.translator)
	if err == nil {
		err = h.api.Register(ctx.Request().Context(), data)
	}
	if err != nil {
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) || wantsJSON(ctx) {
			return err
		}
		data.Password, data.PasswordConfirm = "", ""
		p := newPage("Register", nil)
		p.Form = data
		p.Fields = vErr.FieldMap()
		if len(p.Fields) == 0 {
			p.Error = vErr.Error()
		}
		return ctx.Render(http.StatusOK, "register", p)
	}

	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusCreated, echo.Map{"email": data.Email})
	}
	return ctx.Redirect(http.StatusSeeOther, h.conf.Session.LoginPath+"?registered=1")
}

func (h authHandlers) passwordResetForm(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, "password_reset", newPage("Reset password", nil))
}

func (h authHandlers) resetPassword(ctx echo.Context) error {
	var data user.PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(h.validate, h.translator); err != nil {
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) || wantsJSON(ctx) {
			return err
		}
		p := newPage("Reset password", nil)
		p.Form = data
		p.Fields = vErr.FieldMap()
		return ctx.Render(http.StatusOK, "password_reset", p)
	}

	if err := h.api.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil {
		// do not return errors to attackers
		h.logger.Error("requesting password reset", err)
	}

	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"success": passwordResetSuccess})
	}
	p := newPage("Reset password", nil)
	p.Success = passwordResetSuccess
	return ctx.Render(http.StatusOK, "password_reset", p)
}
