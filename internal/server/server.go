package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	watchreader "github.com/menta2k/watch-reader"
	"github.com/menta2k/watch-reader/internal/logger"
)

const (
	_defaultReadTimeout     = 5 * time.Second
	_defaultShutdownTimeout = 3 * time.Second
)

//go:embed web
var webFS embed.FS

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the reader over HTTP and websocket
type Server struct {
	reader   *watchreader.Reader
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *logger.Logger
	router   *mux.Router

	// cycles started over HTTP outlive their request but not the server
	cycleCtx context.Context
}

// New creates the server and its routes
func New(reader *watchreader.Reader, hub *Hub, gatherer prometheus.Gatherer, logger *logger.Logger) *Server {
	s := &Server{
		reader:   reader,
		hub:      hub,
		gatherer: gatherer,
		logger:   logger,
		router:   mux.NewRouter(),
		cycleCtx: context.Background(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/read", s.handleRead).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	s.router.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	static, _ := fs.Sub(webFS, "web")
	s.router.PathPrefix("/").Handler(http.FileServer(http.FS(static))).Methods(http.MethodGet)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	s.cycleCtx = ctx

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: _defaultReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), _defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	cycleID, err := s.reader.Trigger(s.cycleCtx)
	switch {
	case errors.Is(err, watchreader.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, watchreader.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"cycle_id": cycleID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reader.Display().Current())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": watchreader.Version,
		"busy":    s.reader.Busy(),
	})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	connection, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade error: %v", err)
		return
	}
	connection.SetReadLimit(512)
	connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	connection.SetPongHandler(func(appData string) error {
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	initial, err := encodeStatus(s.reader.Display().Current())
	if err != nil {
		connection.Close()
		return
	}

	ctx := r.Context()
	s.hub.Register(ctx, connection, initial)
	defer s.hub.Unregister(context.Background(), connection)

	for {
		if _, _, err := connection.ReadMessage(); err != nil {
			return
		}
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
