package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postroom/postroom/auth"
	"github.com/postroom/postroom/service"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Logger  *slog.Logger
	Bind    string
	Version string
	// AdminPasswords enables the /admin routes when non-empty
	AdminPasswords []string
	// Registerer receives the HTTP request metrics; defaults to the global
	// prometheus registry
	Registerer prometheus.Registerer
}

type Server struct {
	posts    *service.PostService
	accounts *service.AccountService
	gate     *auth.Gate
	db       Pinger

	version string

	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

func NewServer(posts *service.PostService, accounts *service.AccountService, gate *auth.Gate, db Pinger, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if posts == nil || accounts == nil || gate == nil {
		return nil, errors.New("server needs post and account services and an auth gate")
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		posts:    posts,
		accounts: accounts,
		gate:     gate,
		db:       db,
		version:  config.Version,
		echo:     e,
		logger:   logger.With("system", "server"),
	}
	srv.httpd = &http.Server{
		Handler:        otelhttp.NewHandler(srv, "postroom"),
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Validator = newRequestValidator()
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	registerer := config.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "postroom",
		Registerer: registerer,
	}))
	// posts are capped at 1 MiB of text; JSON escaping can inflate that
	e.Use(middleware.BodyLimit("8M"))
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/", srv.WebHome)
	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())

	e.POST("/auth/signup", srv.HandleSignup)
	e.POST("/auth/login", srv.HandleLogin)

	pg := e.Group("/posts", gate.Middleware())
	pg.POST("", srv.HandleCreatePost)
	pg.GET("", srv.HandleListPosts)
	pg.GET("/stats", srv.HandlePostStats)
	pg.DELETE("/:id", srv.HandleDeletePost)

	if len(config.AdminPasswords) > 0 {
		admin := e.Group("/admin", auth.AdminMiddleware(config.AdminPasswords))
		admin.DELETE("/accounts/:id", srv.HandleAdminDeleteAccount)
		admin.POST("/cache/purge", srv.HandleAdminPurgeCache)
	} else {
		srv.logger.Info("no admin passwords configured, admin routes disabled")
	}

	return srv, nil
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	// Wait for a signal to exit.
	srv.logger.Info("registering OS exit signal handler")
	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)

		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}

		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
