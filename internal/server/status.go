// Package server exposes a read-only HTTP status surface for the bot. It
// serves the persisted position state; it never mutates anything.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/argo-bot/internal/logger"
	"github.com/rxtech-lab/argo-bot/internal/state"
	"go.uber.org/zap"
)

// StatusServer serves GET /healthz and GET /status/{symbol}.
type StatusServer struct {
	store   state.Store
	symbols map[string]bool
	logger  *logger.Logger
	server  *http.Server
}

// NewStatusServer creates a status server over the given state store. Only
// the listed symbols are served; anything else is a 404.
func NewStatusServer(addr string, store state.Store, symbols []string, log *logger.Logger) *StatusServer {
	known := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		known[symbol] = true
	}

	s := &StatusServer{
		store:   store,
		symbols: known,
		logger:  log,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status/{symbol}", s.handleStatus).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// ListenAndServe blocks serving requests until Shutdown is called.
func (s *StatusServer) ListenAndServe() error {
	s.logger.Info("status server listening", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *StatusServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	if !s.symbols[symbol] {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown symbol"})

		return
	}

	position, err := s.store.Load(symbol)
	if err != nil {
		s.logger.Error("failed to load position state for status request",
			zap.String("symbol", symbol),
			zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load state"})

		return
	}

	s.writeJSON(w, http.StatusOK, position)
}

func (s *StatusServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode status response", zap.Error(err))
	}
}
