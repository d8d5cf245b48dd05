package credential

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
)

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name   string
	Domain string
	Secure bool
	MaxAge time.Duration
}

func CookieOptionsFromConfig(conf *core.Config) CookieOptions {
	return CookieOptions{
		Name:   conf.Session.CookieName,
		Domain: conf.Session.CookieDomain,
		Secure: conf.Session.CookieSecure,
		MaxAge: conf.Session.MaxAge,
	}
}

// CookieStore keeps the token in an HttpOnly cookie, so that it travels with every request
// and is visible to the edge guard before any page handler runs.
// A CookieStore is bound to a single HTTP exchange.
type CookieStore struct {
	opts CookieOptions
	req  *http.Request
	w    http.ResponseWriter

	// writes made during this exchange, not yet visible in req
	mu      sync.Mutex
	written bool
	token   string
}

var _ session.CredentialStore = (*CookieStore)(nil)

func NewCookieStore(opts CookieOptions, req *http.Request, w http.ResponseWriter) *CookieStore {
	return &CookieStore{opts: opts, req: req, w: w}
}

// HasToken reports whether req carries a non-empty session cookie. It does not decode it.
func HasToken(opts CookieOptions, req *http.Request) bool {
	_, ok := readCookie(opts, req)
	return ok
}

func readCookie(opts CookieOptions, req *http.Request) (string, bool) {
	if req == nil {
		return "", false
	}
	c, err := req.Cookie(opts.Name)
	if err != nil {
		return "", false
	}
	token := strings.TrimSpace(c.Value)
	return token, token != ""
}

func (s *CookieStore) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.ErrEmptyToken
	}
	if s.w == nil {
		return ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, s.cookie(token, int(s.opts.MaxAge/time.Second)))
	s.written, s.token = true, token
	return nil
}

func (s *CookieStore) Load() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.written {
		return s.token, s.token != ""
	}
	return readCookie(s.opts, s.req)
}

func (s *CookieStore) Clear() error {
	if s.w == nil {
		return ErrUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	http.SetCookie(s.w, s.cookie("", -1))
	s.written, s.token = true, ""
	return nil
}

func (s *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     s.opts.Name,
		Value:    value,
		Path:     "/",
		Domain:   s.opts.Domain,
		MaxAge:   maxAge,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	} else if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}
