package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
)

const metricsNamespace = "luna"

type (
	Deps struct {
		Conf        *core.Config
		Logger      core.Logger
		UserSvc     *user.Service
		FormSvc     *form.Service
		ResponseSvc *response.Service
		Validate    *validator.Validate
		Translator  ut.Translator
	}

	Server struct {
		app       *echo.Echo
		addr      string
		deps      *Deps
		registry  *prometheus.Registry
		submitted *prometheus.CounterVec
		errors    chan error
		shutdown  chan os.Signal
	}
)

// NewServer builds the API server. shutdown receives a signal whenever a handler
// hits a core.shutdown error; a nil channel disables that.
func NewServer(addr string, shutdown chan os.Signal, deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		addr:     addr,
		deps:     deps,
		registry: prometheus.NewRegistry(),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.setupMetrics()

	s.app.GET("/", home)
	s.app.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: s.registry}))

	api := s.app.Group("/api")
	jwt := jwtMiddleware(conf, s.deps.UserSvc)

	registerUserAPI(api, jwt, s.deps)
	registerFormAPI(api, jwt, s.deps)
	registerResponseAPI(api, jwt, s.deps)
}

func (s *Server) setupMetrics() {
	s.app.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metricsNamespace,
		Subsystem:  "http",
		Registerer: s.registry,
		Skipper: func(ctx echo.Context) bool {
			return ctx.Path() == "/metrics"
		},
	}))

	s.submitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "form_responses_submitted_total",
		Help:      "Number of form responses moved to the submitted state.",
	}, []string{"form"})
	s.registry.MustRegister(s.submitted)

	s.deps.ResponseSvc.OnSubmit(func(_ context.Context, frm form.Form, _ response.Response) {
		s.submitted.WithLabelValues(frm.ID).Inc()
	})
}

// Start listens on the server address; errors other than a shutdown are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// Shutdown stops the server gracefully, waiting for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	if s.shutdown == nil {
		return
	}
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Luna API!")
}
