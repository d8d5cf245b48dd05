package echoportal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo/portal/storage/credential"
)

// authPrefix groups the pages anonymous visitors must always reach.
const authPrefix = "/auth"

// edgeGuard turns away requests to protected paths that carry no session cookie.
// It only checks that the cookie is present: decoding it and checking roles is left to requireRole.
func edgeGuard(opts credential.CookieOptions, prefixes []string, loginPath string, metrics *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			req := ctx.Request()
			if isAuthPage(req.URL.Path, loginPath) || !isProtected(req.URL.Path, prefixes) || credential.HasToken(opts, req) {
				return next(ctx)
			}
			metrics.edgeRedirect()
			return ctx.Redirect(http.StatusFound, loginURL(loginPath, req.URL.RequestURI()))
		}
	}
}

// isProtected reports whether path falls under one of prefixes, on a path segment boundary.
func isProtected(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// isAuthPage reports whether path is the login page or one of the pages under /auth.
func isAuthPage(path, loginPath string) bool {
	return path == loginPath || path == authPrefix || strings.HasPrefix(path, authPrefix+"/")
}

// loginURL returns the login page address, remembering where the visitor was going.
func loginURL(loginPath, next string) string {
	if next == "" || next == "/" {
		return loginPath
	}
	return loginPath + "?" + url.Values{"next": {next}}.Encode()
}

// safeNext only accepts local paths outside of the auth pages.
func safeNext(next, loginPath string) (string, bool) {
	u, err := url.Parse(next)
	if err != nil || next == "" || u.IsAbs() || u.Host != "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "", false
	}
	if isAuthPage(u.Path, loginPath) {
		return "", false
	}
	return u.RequestURI(), true
}
