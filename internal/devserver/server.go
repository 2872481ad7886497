// Package devserver is a local stand-in for the Rechart API server and the
// identity provider. It backs `rechart devserver` and the end-to-end tests
// of the client; it is not the production server.
package devserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rechart/rechart/internal/core/domain"
	"github.com/rechart/rechart/pkg/logger"
)

// Options configures a Server.
type Options struct {
	// JWTSecret signs the ID tokens the identity endpoints issue.
	JWTSecret string
	// APIKey, when set, must be passed as ?key= to the identity endpoints.
	APIKey string
	// TokenTTL is the lifetime of issued ID tokens. Defaults to one hour.
	TokenTTL time.Duration
	// CodeTTL is the lifetime of sign-in codes. Defaults to 15 minutes.
	CodeTTL time.Duration
	// Accounts pre-provisions principals by email. Unknown addresses get a
	// fresh free-tier workspace on first sign-in.
	Accounts map[string]domain.AuthUserInfo
	// OnLink is called with every sign-in link issued, in place of email.
	OnLink func(email, link string)
}

// Server wires the identity and dashboard endpoints onto one echo instance.
type Server struct {
	echo     *echo.Echo
	identity *identityHandler
	log      zerolog.Logger
}

// New builds the Server and registers all routes. It panics without a JWT
// secret.
func New(opts Options, log zerolog.Logger) *Server {
	if opts.JWTSecret == "" {
		logger.Fatal(log, "devserver: jwt secret is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = time.Hour
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = 15 * time.Minute
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	reg := prometheus.NewRegistry()
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "rechart",
		Subsystem:  "devserver",
		Registerer: reg,
	}))

	s := &Server{
		echo:     e,
		identity: newIdentityHandler(opts, log),
		log:      log,
	}

	// --- Health and metrics (no auth required) ---
	e.GET("/health", Liveness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: reg}))

	// --- Identity provider ---
	id := e.Group("/identity/v1", s.identity.requireAPIKey)
	id.POST("/signin-links", s.identity.SendSignInLink)
	id.POST("/signin", s.identity.SignIn)
	id.POST("/token", s.identity.Token)

	// --- Dashboard API ---
	dash := newDashboardHandler()
	api := e.Group("/api", Auth(opts.JWTSecret))
	api.GET("/datasources", dash.ListDataSources)
	api.GET("/apps", dash.ListApps)
	api.POST("/apps", dash.CreateApp)
	api.GET("/apps/:id", dash.GetApp)
	api.DELETE("/apps/:id", dash.DeleteApp)
	api.POST("/apps/:id/publish", dash.PublishApp, RequireTier(domain.TierPro))

	return s
}

// ServeHTTP makes Server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.log.Info().Str("addr", addr).Msg("devserver listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestLogger logs one line per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			log.Info().
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}
