package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/beneficiary"
	"github.com/trezcool/pmajay/core/dashboard"
	"github.com/trezcool/pmajay/core/fund"
	"github.com/trezcool/pmajay/core/message"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/progress"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
	"github.com/trezcool/pmajay/services/notify"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        user.ServiceInterface
		ProjectSvc     *project.Service
		MilestoneSvc   *milestone.Service
		BeneficiarySvc *beneficiary.Service
		FundSvc        *fund.Service
		ProgressSvc    *progress.Service
		MessageSvc     *message.Service
		DashboardSvc   *dashboard.Service
		Hub            *notifysvc.Hub
		Feed           notifysvc.Feed
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", s.home)
	s.app.GET("/health", s.health)

	api := s.app.Group("/api")
	jwt := s.auth.middleware()

	registerUserAPI(api, jwt, s.auth, s.deps)
	registerProjectAPI(api, jwt, s.auth, s.deps)
	registerMilestoneAPI(api, jwt, s.auth, s.deps)
	registerBeneficiaryAPI(api, jwt, s.auth, s.deps)
	registerFundAPI(api, jwt, s.auth, s.deps)
	registerProgressAPI(api, jwt, s.auth, s.deps)
	registerMessageAPI(api, jwt, s.auth, s.deps)
	registerNotificationAPI(api, s.auth, s.deps)
	registerDashboardAPI(api, jwt, s.auth, s.deps)
}

// Start blocks until the server stops. Failures are reported on Errors.
func (s *Server) Start() {
	s.deps.Logger.Info("API listening on " + s.deps.Conf.Server.Address)
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting requests, waits for in-flight ones and closes the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.deps.Conf.Build})
}
