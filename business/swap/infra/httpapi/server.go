// Package httpapi exposes the kiosk controls over HTTP and pushes view
// updates over a WebSocket.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fd1az/chswap-kiosk/business/swap/app"
	"github.com/fd1az/chswap-kiosk/internal/apperror"
	"github.com/fd1az/chswap-kiosk/internal/config"
	"github.com/fd1az/chswap-kiosk/internal/logger"
)

const (
	defaultPushInterval = time.Second
	maxBodyBytes        = 4 << 10
)

// ErrorClearer is implemented by controls that keep a dismissible error.
type ErrorClearer interface {
	ClearError()
}

// Server serves the kiosk API.
type Server struct {
	cfg        config.APIConfig
	controls   app.Controls
	logger     logger.LoggerInterface
	handler    http.Handler
	httpServer *http.Server
}

// NewServer builds the router. Nothing listens until Start.
func NewServer(cfg config.APIConfig, controls app.Controls, log logger.LoggerInterface) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = defaultPushInterval
	}

	s := &Server{
		cfg:      cfg,
		controls: controls,
		logger:   log,
	}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.requestLogger)
	mux.Use(s.recoverer)

	if cfg.RequestsPerMinute > 0 {
		mux.Use(httprate.Limit(
			cfg.RequestsPerMinute,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, r, apperror.New(apperror.CodeRateLimitExceeded))
			}),
		))
	}

	mux.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", s.getView)
		r.Post("/direction", s.postDirection)
		r.Post("/input", s.postInput)
		r.Post("/trigger", s.postTrigger)
		r.Post("/error/clear", s.postClearError)
		r.Get("/ws", s.streamView)
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperror.New(apperror.CodeNotFound, apperror.WithContext(r.URL.Path)))
	})

	s.handler = otelhttp.NewHandler(
		newCORSHandler(cfg.AllowedOrigins, mux),
		"chswap-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "kiosk api listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down kiosk api")
	return s.httpServer.Shutdown(ctx)
}
