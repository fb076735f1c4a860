package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/siherrmann/recaller"
	"github.com/siherrmann/recaller/core/cache"
	"github.com/siherrmann/recaller/helper"
)

// Server exposes the recaller over HTTP. It holds one promotion session for
// its whole lifetime, so repeated requests about the same entities skip the
// promotion round trip.
type Server struct {
	recaller *recaller.Recaller
	session  *cache.Session
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server around the given recaller.
func New(r *recaller.Recaller, version string) *Server {
	s := &Server{
		recaller: r,
		session:  r.NewSession(),
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/ner", s.handleNER)
		r.Post("/ask", s.handleAsk)
		r.Post("/facts", s.handleRemember)

		r.Post("/sweep", s.handleSweep)
		r.Post("/commit", s.handleCommit)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/entities/related", s.handleRelatedEntities)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	longOK := s.recaller.LongTerm.DB.Instance.PingContext(r.Context()) == nil
	shortOK := s.recaller.ShortTerm.DB.Instance.PingContext(r.Context()) == nil

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"uptime":     time.Since(s.started).Seconds(),
		"long_term":  longOK,
		"short_term": shortOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	payload := map[string]string{"error": message}
	if err != nil {
		payload["detail"] = err.Error()
	}
	writeJSON(w, status, payload)
}

// statusForError maps the protocol error codes onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case helper.IsCode(err, helper.CodeInvalidInput):
		return http.StatusBadRequest
	case helper.IsCode(err, helper.CodeStoreUnavailable), helper.IsCode(err, helper.CodePartialPromotion):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
