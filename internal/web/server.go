package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/ryabkov82/crm-merge/internal/config"
	"github.com/ryabkov82/crm-merge/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"add":   func(a, b int) int { return a + b },
	"count": report.Count,
}

type Server struct {
	cfg  config.Config
	log  *slog.Logger
	tmpl *template.Template
}

func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Server{cfg: cfg, log: logger, tmpl: tmpl}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/healthz":
		s.handleHealth(w)
	case r.Method == http.MethodGet && r.URL.Path == "/":
		s.handleForm(w)
	case r.Method == http.MethodPost && r.URL.Path == "/process":
		s.handleProcess(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/process":
		s.handleAPIProcess(w, r)
	case r.URL.Path == "/process":
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) Run(ctx context.Context) error {
	var handler http.Handler = s
	if s.cfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(s, s.cfg.RequestTimeout, "request timed out")
	}
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("сервер запущен", slog.String("addr", s.cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}
