// Package server provides the HTTP API for scanning customer workbooks and
// generating blueprint bundles.
package server

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exportdocs/blueprint/internal/config"
	"github.com/exportdocs/blueprint/pkg/blueprint"
)

// Server is the HTTP server for the blueprint API.
type Server struct {
	cfg       *config.Config
	generator *blueprint.Generator
	router    *chi.Mux
	server    *http.Server

	// uploads maps live file tokens to their per-upload directories so the
	// upload can be removed once its scan session is consumed.
	uploadMu sync.Mutex
	uploads  map[string]string
}

// NewServer wires the router, middleware and handlers.
func NewServer(cfg *config.Config, generator *blueprint.Generator) *Server {
	s := &Server{
		cfg:       cfg,
		generator: generator,
		router:    chi.NewRouter(),
		uploads:   map[string]string{},
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api/blueprint", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Post("/generate", s.handleGenerate)
		r.Get("/options", s.handleOptions)
		r.Get("/bundles", s.handleListBundles)
		r.Get("/resolve", s.handleResolve)
	})
	s.router.Get("/healthz", s.handleHealth)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// trackUpload remembers where a scan session's upload lives.
func (s *Server) trackUpload(token, dir string) {
	s.uploadMu.Lock()
	s.uploads[token] = dir
	s.uploadMu.Unlock()
}

// releaseUpload removes the upload directory behind a finished session.
func (s *Server) releaseUpload(token string) {
	s.uploadMu.Lock()
	dir, ok := s.uploads[token]
	delete(s.uploads, token)
	s.uploadMu.Unlock()
	if ok {
		os.RemoveAll(dir)
	}
}

// Start begins serving and blocks until the listener fails or is closed.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
