// Package server sets up the HTTP router, middleware, and request handlers.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hmartell/chatbridge/internal/config"
	"github.com/hmartell/chatbridge/internal/fallback"
)

// Server holds the HTTP router and the dependencies that handlers need:
// the immutable config snapshot and the provider fallback chain. It's the
// Go equivalent of attaching services to an Express app.
type Server struct {
	router chi.Router
	cfg    *config.Config
	chain  *fallback.Chain
}

// New creates a Server, wires up routes and middleware, and returns it
// ready to use as an http.Handler. The convention is to name it New when
// the package name already tells you what you're constructing
// (server.New → "new server").
func New(cfg *config.Config, chain *fallback.Chain) *Server {
	s := &Server{cfg: cfg, chain: chain}
	s.routes()
	return s
}

// routes builds the chi router with all middleware and route definitions —
// conceptually the app.use() / app.post() block of an Express app, gathered
// in one method so the routing table is easy to scan.
func (s *Server) routes() {
	r := chi.NewRouter()

	// middleware.Logger prints a log line for every request, similar to
	// morgan('dev') in Express: method, path, status, duration.
	r.Use(middleware.Logger)

	// middleware.Recoverer catches panics in handlers and returns a 500
	// instead of crashing the whole process. Whatever goes wrong inside
	// a handler, the client gets a generic server error — never a stack
	// trace, never a dead process.
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)

	s.router = r
}

// ServeHTTP makes Server satisfy the http.Handler interface. Every incoming
// request flows through this method, and we just delegate to chi's router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
