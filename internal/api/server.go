// Package api exposes the retrieval engine over HTTP: a search endpoint
// applying the two-tier policy, a refresh endpoint reloading the persisted
// knowledge base, and a liveness probe.
package api

import (
	"net/http"
	"time"

	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/retrieval"
	"github.com/clinicapersonart-code/projeto-incial-sub001/internal/store"
)

// ServerConfig wires the server's collaborators.
type ServerConfig struct {
	Retriever      *retrieval.Retriever
	Base           *store.Base
	RequestTimeout time.Duration
}

// Server is the retrieval HTTP server.
type Server struct {
	handler http.Handler
}

func NewServer(cfg ServerConfig) *Server {
	h := &handlers{
		retriever: cfg.Retriever,
		base:      cfg.Base,
		timeout:   cfg.RequestTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", h.search)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("GET /healthz", h.health)

	return &Server{handler: withRecovery(withRequestLog(mux))}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
