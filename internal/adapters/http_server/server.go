package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct{ mux *chi.Mux }

const requestTimeout = 15 * time.Second

func New() *Server { return newServer(requestTimeout) }

func newServer(timeout time.Duration) *Server {
	m := chi.NewRouter()

	// middlewares must be registered before any route; Metrics and Logger sit
	// outside Timeout so they see the 503 a timed-out client receives
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(Metrics)
	m.Use(Logger(log.Logger))
	m.Use(Timeout(timeout))

	return &Server{mux: m}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches an extra handler (e.g. /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
}
