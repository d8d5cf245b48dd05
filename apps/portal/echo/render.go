package echoportal

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/portal/core/nav"
	"github.com/trezcool/masomo/portal/core/user"
)

//go:embed templates/*.html
var templateFS embed.FS

// page is the data every template receives.
type page struct {
	Title     string
	Status    int
	User      *user.User
	RoleLabel string
	Nav       []nav.Item
	Current   *nav.Item
	Error     string
	Fields    map[string]string
	Success   string
	Next      string
	Form      interface{}
}

func newPage(title string, usr *user.User) page {
	p := page{Title: title, User: usr}
	if usr != nil {
		p.RoleLabel = nav.Label(usr.Role)
		p.Nav = nav.Items(usr.Role)
	}
	return p
}

type templateRenderer struct {
	templates *template.Template
}

func newRenderer() *templateRenderer {
	return &templateRenderer{
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
