// Package web serves the content generator as a browser form.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/abhisek/contentgen/internal/generate"
	"github.com/abhisek/contentgen/internal/metrics"
	"github.com/abhisek/contentgen/internal/templates"
)

// SessionCookie carries the id of the browser's controller.
const SessionCookie = "contentgen_session"

//go:embed templates/*.html
var pageFS embed.FS

// Options configures a Server.
type Options struct {
	// NewController builds the controller for a new browser session.
	NewController func() *generate.Controller
	Templates     *templates.Registry
	Logger        *zap.Logger

	SessionTTL  time.Duration
	MaxSessions int

	// Clock defaults to time.Now.
	Clock func() time.Time

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// ServiceName labels server spans.
const ServiceName = "contentgen"

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	engine    *gin.Engine
	sessions  *sessionTable
	templates *templates.Registry
	log       *zap.Logger
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 1000
	}
	if opts.Templates == nil {
		opts.Templates = templates.Default()
	}

	s := &Server{
		engine:    gin.New(),
		sessions:  newSessionTable(opts.SessionTTL, opts.MaxSessions, opts.Clock, opts.NewController),
		templates: opts.Templates,
		log:       opts.Logger,
	}

	s.engine.SetHTMLTemplate(template.Must(template.New("").Funcs(template.FuncMap{
		"seconds": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	}).ParseFS(pageFS, "templates/*.html")))

	s.engine.Use(tracing(opts.TracerProvider), traceHeader(), recovery(s.log), requestID(), accessLog(s.log), observe())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.index)
	s.engine.POST("/generate/text", s.generateText)
	s.engine.POST("/generate/image", s.generateImage)
	s.engine.GET("/export", s.export)
	s.engine.GET("/image", s.image)
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg HTTPConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return s.Serve(ctx, ln, cfg)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, cfg HTTPConfig) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}
