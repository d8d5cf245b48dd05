package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/portal/core/guard"
	"github.com/trezcool/masomo/portal/core/nav"
	"github.com/trezcool/masomo/portal/core/user"
)

type screens struct {
	*Server
}

func registerScreens(g *echo.Group, s *Server) {
	h := screens{s}

	anyUser := s.requireRole(guard.AnyRole)
	g.GET("", h.dashboard, anyUser)
	g.GET("/profile", h.profile, anyUser)

	for _, role := range user.AllRoles {
		rg := g.Group("/"+role.String(), s.requireRole(role))
		rg.GET("", h.section)
		rg.GET("/:section", h.section)
	}
}

// dashboard is the landing page of users whose role has no dedicated portal.
func (h screens) dashboard(ctx echo.Context) error {
	usr, ok := getContextUser(ctx)
	if !ok {
		return errUnauthorized
	}
	if landing := nav.LandingPath(usr.Role); landing != nav.DefaultLandingPath {
		return redirect(ctx, landing)
	}
	return h.render(ctx, "dashboard", newPage("Dashboard", &usr))
}

func (h screens) section(ctx echo.Context) error {
	usr, ok := getContextUser(ctx)
	if !ok {
		return errUnauthorized
	}

	path := ctx.Request().URL.Path
	p := newPage(nav.Label(usr.Role), &usr)
	for i := range p.Nav {
		if p.Nav[i].Path == path {
			p.Current = &p.Nav[i]
			break
		}
	}
	if p.Current == nil {
		return errHttpNotFound
	}
	if path == nav.LandingPath(usr.Role) {
		p.Title = p.RoleLabel + " dashboard"
		return h.render(ctx, "dashboard", p)
	}
	p.Title = p.Current.Label
	return h.render(ctx, "section", p)
}

// profile is always fetched fresh from the API, so a revoked session is noticed here.
func (h screens) profile(ctx echo.Context) error {
	usr, ok := getContextUser(ctx)
	if !ok {
		return errUnauthorized
	}
	token, ok := getContextToken(ctx)
	if !ok {
		return errUnauthorized
	}

	profile, err := h.api.Profile(ctx.Request().Context(), token, usr.ID)
	if err != nil {
		return errors.Wrap(err, "fetching profile")
	}
	if profile.Role == "" {
		profile.Role = usr.Role
	}

	p := newPage("Profile", &usr)
	p.Form = profile
	return h.render(ctx, "profile", p)
}

func (h screens) render(ctx echo.Context, name string, p page) error {
	if wantsJSON(ctx) {
		return ctx.JSON(http.StatusOK, echo.Map{"user": p.User, "nav": p.Nav, "page": p.Title, "data": p.Form})
	}
	return ctx.Render(http.StatusOK, name, p)
}
