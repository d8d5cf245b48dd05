package echoportal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
	"github.com/trezcool/masomo/portal/storage/credential"
)

// Backend is the part of the Masomo API the portal uses.
type Backend interface {
	Login(ctx context.Context, creds user.Credentials) (backend.LoginResult, error)
	Register(ctx context.Context, na user.NewAccount) error
	RequestPasswordReset(ctx context.Context, email string) error
	Profile(ctx context.Context, token, id string) (user.User, error)
}

var _ Backend = (*backend.Client)(nil)

type Server struct {
	conf       *core.Config
	app        *echo.Echo
	logger     core.Logger
	api        Backend
	resolver   session.Resolver
	validate   *validator.Validate
	translator ut.Translator
	metrics    *Metrics
	cookies    credential.CookieOptions

	errors   chan error
	shutdown chan os.Signal
}

func NewServer(
	conf *core.Config,
	logger core.Logger,
	api Backend,
	resolver session.Resolver,
	validate *validator.Validate,
	translator ut.Translator,
	metrics *Metrics,
) *Server {
	s := &Server{
		conf:       conf,
		app:        echo.New(),
		logger:     logger,
		api:        api,
		resolver:   resolver,
		validate:   validate,
		translator: translator,
		metrics:    metrics,
		cookies:    credential.CookieOptionsFromConfig(conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Renderer = newRenderer()
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.conf.Session.LoginPath, s.logger)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Pre(edgeGuard(s.cookies, s.conf.Session.ProtectedPrefixes, s.conf.Session.LoginPath, s.metrics))
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(s.sessionMiddleware)

	s.app.GET("/", home)

	registerAuthRoutes(s.app.Group(authPrefix), s)
	registerScreens(s.app.Group("/dashboard"), s)
}

// Start serves until the listener fails; errors are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.Redirect(http.StatusFound, "/dashboard")
}
