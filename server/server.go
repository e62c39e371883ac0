// Package server exposes the conversions over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wudi/scanpdf/convert"
	"github.com/wudi/scanpdf/observability"
	"github.com/wudi/scanpdf/store"
)

//go:embed templates/index.html
var defaultTemplates embed.FS

// Converter runs conversions; *convert.Converter implements it.
type Converter interface {
	FromImage(ctx context.Context, req convert.ImageRequest) (convert.Result, error)
	FromText(ctx context.Context, text string) (convert.Result, error)
	FromMarkdown(ctx context.Context, src string) (convert.Result, error)
	FromHTML(ctx context.Context, src string) (convert.Result, error)
	Open(ctx context.Context, id string) (convert.Result, error)
	EngineName() string
}

// History lists past conversions; *store.Store implements it.
type History interface {
	List(ctx context.Context, limit int) ([]store.Conversion, error)
	Get(ctx context.Context, id string) (store.Conversion, error)
}

type Config struct {
	StaticDir      string
	TemplatesDir   string
	MaxUploadBytes int64
	Languages      []string
}

type Server struct {
	cfg     Config
	conv    Converter
	history History
	logger  observability.Logger
	index   *template.Template
	static  bool
}

// New prepares the handlers. history may be nil, in which case the
// conversion listing is empty.
func New(cfg Config, conv Converter, history History, logger observability.Logger) (*Server, error) {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	index, err := loadIndex(cfg.TemplatesDir)
	if err != nil {
		return nil, err
	}
	static := false
	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			static = true
		}
	}
	return &Server{cfg: cfg, conv: conv, history: history, logger: logger, index: index, static: static}, nil
}

func loadIndex(dir string) (*template.Template, error) {
	if dir != "" {
		path := filepath.Join(dir, "index.html")
		if _, err := os.Stat(path); err == nil {
			t, err := template.ParseFiles(path)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			return t, nil
		}
	}
	return template.ParseFS(defaultTemplates, "templates/index.html")
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.indexPage)
	r.Get("/healthz", s.health)
	if s.static {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		r.Use(limitBody(s.cfg.MaxUploadBytes))
		r.Post("/upload/", s.upload)
		r.Post("/text/", s.formConversion("text", s.conv.FromText))
		r.Post("/markdown/", s.formConversion("markdown", s.conv.FromMarkdown))
		r.Post("/html/", s.formConversion("html", s.conv.FromHTML))
	})

	r.Route("/conversions", func(r chi.Router) {
		r.Get("/", s.listConversions)
		r.Get("/{id}", s.getConversion)
		r.Get("/{id}/pdf", s.conversionPDF)
	})
	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", observability.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type indexData struct {
	Languages   string
	MaxUploadMB int64
	Engine      string
	Static      bool
}

func (s *Server) indexPage(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Languages:   strings.Join(s.cfg.Languages, "+"),
		MaxUploadMB: s.cfg.MaxUploadBytes >> 20,
		Engine:      s.conv.EngineName(),
		Static:      s.static,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		s.logger.Error("render index", observability.Error("error", err))
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "ocr_engine": s.conv.EngineName()})
}
